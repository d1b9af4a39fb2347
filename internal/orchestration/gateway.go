// Package orchestration holds the gateway's process-wide state: the
// per-session turn serialization that keeps a reflection run and an
// operator's chat turn from racing each other, the pending-approval and
// pending-tool-loop tables a control command resolves against, and the
// inbox-driven reflection scheduler.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/nexus/internal/chatloop"
)

// ErrNoPending is returned when a control command targets a session with
// nothing paused.
var ErrNoPending = errors.New("orchestration: no pending decision for this session")

// maxTrackedSessions bounds the pending/mutex tables the way the teacher's
// dedupe cache bounds its own map: drop the oldest entry rather than grow
// unbounded across a long-lived process.
const maxTrackedSessions = 4096

// Gateway is the shared entrypoint a chat surface (console, future bot
// adapters) drives every operator turn through.
type Gateway struct {
	Loop   *chatloop.Loop
	Logger *slog.Logger

	mu       sync.Mutex
	turnLock map[string]*sync.Mutex
	order    []string // insertion order of turnLock, for bounded eviction

	pending map[string]*chatloop.Pending
}

// New builds a Gateway around an already-wired chat loop.
func New(loop *chatloop.Loop, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		Loop:     loop,
		Logger:   logger.With("component", "orchestration"),
		turnLock: make(map[string]*sync.Mutex),
		pending:  make(map[string]*chatloop.Pending),
	}
}

func sessionKey(operatorID, ghostName, sessionID string) string {
	return operatorID + ":" + ghostName + ":" + sessionID
}

// lockFor returns the mutex serializing turns for one (operator, ghost,
// session), creating it on first use and evicting the oldest tracked key
// once the table is full.
func (g *Gateway) lockFor(key string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.turnLock[key]; ok {
		return l
	}

	if len(g.order) >= maxTrackedSessions {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.turnLock, oldest)
	}

	l := &sync.Mutex{}
	g.turnLock[key] = l
	g.order = append(g.order, key)
	return l
}

// Chat runs one operator turn, serialized against any other turn (including
// a reflection run) on the same session, and tracks a pause for a later
// control command.
func (g *Gateway) Chat(ctx context.Context, req chatloop.Request) (chatloop.Result, error) {
	key := sessionKey(req.OperatorID, req.GhostName, req.SessionID)
	lock := g.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	res, err := g.Loop.Chat(ctx, req)
	if err != nil {
		return chatloop.Result{}, err
	}
	if res.CompactionHappened && res.Pending == nil {
		res.Text = appendCompactionNotice(g.Loop, res.Text)
	}
	g.trackPending(key, res)
	return res, nil
}

// appendCompactionNotice renders the "compaction happened" notification and
// appends it to the turn's text, falling back to the bare text if the
// content registry can't resolve the message (never hard-fails the turn
// over operator-facing copy).
func appendCompactionNotice(loop *chatloop.Loop, text string) string {
	notice, err := loop.Content.MessageText("compaction-happened", "", "", nil)
	if err != nil {
		return text
	}
	return text + "\n\n" + notice
}

func (g *Gateway) trackPending(key string, res chatloop.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if res.Pending != nil {
		g.pending[key] = res.Pending
	} else {
		delete(g.pending, key)
	}
}

// HandleControlCommand interprets an operator's raw reply as a control
// command ("approve", "deny", "steps N") against the session's pending
// decision. ok is false when content isn't a recognized control command, or
// there's nothing pending — the caller should fall through to a normal
// Chat call in either case.
func (g *Gateway) HandleControlCommand(ctx context.Context, operatorID, ghostName, sessionID, content string) (res chatloop.Result, ok bool, err error) {
	cmd, steps := ParseControlCommand(content)
	if cmd == ControlNone {
		return chatloop.Result{}, false, nil
	}

	key := sessionKey(operatorID, ghostName, sessionID)
	g.mu.Lock()
	pending, found := g.pending[key]
	g.mu.Unlock()
	if !found {
		return chatloop.Result{}, false, nil
	}

	lock := g.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	switch cmd {
	case ControlApprove:
		if pending.Kind != chatloop.PendingApproval {
			return chatloop.Result{}, false, nil
		}
		pending.ApproveToolCall()
		res, err = g.Loop.ResolveApproval(ctx, pending, true)
	case ControlDeny:
		if pending.Kind != chatloop.PendingApproval {
			return chatloop.Result{}, false, nil
		}
		res, err = g.Loop.ResolveApproval(ctx, pending, false)
	case ControlSteps:
		if pending.Kind != chatloop.PendingToolLoop {
			return chatloop.Result{}, false, nil
		}
		res, err = g.Loop.ResolveToolLoop(ctx, pending, steps)
	default:
		return chatloop.Result{}, false, fmt.Errorf("orchestration: unhandled control command %d", cmd)
	}
	if err != nil {
		return chatloop.Result{}, true, err
	}
	g.trackPending(key, res)
	return res, true, nil
}

// PendingFor reports the decision, if any, paused on a session.
func (g *Gateway) PendingFor(operatorID, ghostName, sessionID string) (*chatloop.Pending, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[sessionKey(operatorID, ghostName, sessionID)]
	return p, ok
}
