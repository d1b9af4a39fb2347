package orchestration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/chatloop"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

// reflectionCooldown is how long a ghost waits between reflection runs,
// matching the original's 30-minute scheduler interval.
const reflectionCooldown = 30 * time.Minute

// Reflector periodically curates a ghost's inbox captures into structured
// knowledge by running them through the chat loop against the reflection
// tool set, outside any operator-visible session.
type Reflector struct {
	Loop   *chatloop.Loop // must be built with tools.NewReflectionToolManager
	Gate   *Gateway       // serializes against the ghost's own chat turns
	Logger interface {
		Warn(msg string, args ...any)
		Info(msg string, args ...any)
	}

	mu       sync.Mutex
	nextDue  map[string]time.Time // ghost name -> earliest next run
	dueOrder []string
}

// NewReflector builds a Reflector around a chat loop wired with the
// reflection tool set.
func NewReflector(loop *chatloop.Loop, gate *Gateway) *Reflector {
	return &Reflector{
		Loop:    loop,
		Gate:    gate,
		Logger:  loop.Logger,
		nextDue: make(map[string]time.Time),
	}
}

// MaybeRun checks whether ghostName's inbox has pending captures and its
// cooldown has elapsed, and if so runs a reflection turn. Called on each
// tick of the gateway's reflection cron schedule.
func (r *Reflector) MaybeRun(ctx context.Context, operatorID, ghostName, sessionID, workspaceRoot string, now time.Time) error {
	r.mu.Lock()
	due, tracked := r.nextDue[ghostName]
	r.mu.Unlock()
	if tracked && now.Before(due) {
		return nil
	}

	items, err := readInboxItems(filepath.Join(workspaceRoot, "inbox"))
	if err != nil {
		return fmt.Errorf("orchestration: read inbox: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	prompt, err := r.Loop.Content.PromptText("reflection-task", "", map[string]string{
		"inbox_items": renderInboxItems(items),
	})
	if err != nil {
		return fmt.Errorf("orchestration: render reflection prompt: %w", err)
	}

	jobID := uuid.NewString()
	startedAt := time.Now()
	if err := r.Loop.Store.JobLogStart(ctx, &models.JobLog{
		ID:        jobID,
		Kind:      models.JobReflection,
		SessionID: sessionID,
		StartedAt: startedAt,
	}); err != nil {
		r.logWarn("reflection: failed to start job log", "ghost", ghostName, "error", err)
	}

	toolCtx := tools.NewToolContext(ghostName, workspaceRoot)
	res, chatErr := r.Gate.Chat(ctx, chatloop.Request{
		GhostID:    ghostName,
		GhostName:  ghostName,
		SessionID:  sessionID,
		OperatorID: operatorID,
		Content:    prompt,
		ToolCtx:    toolCtx,
	})

	r.setNextDue(ghostName, now.Add(reflectionCooldown))

	status := fmt.Sprintf("processed %d item(s)", len(items))
	if chatErr != nil {
		status = fmt.Sprintf("error: %v", chatErr)
	}
	if err := r.Loop.Store.JobLogFinish(ctx, jobID, status, res.Text, nil, time.Now()); err != nil {
		r.logWarn("reflection: failed to finish job log", "ghost", ghostName, "error", err)
	}
	if chatErr != nil {
		r.Loop.Metrics.RecordReflectionRun("error")
		return chatErr
	}
	r.Loop.Metrics.RecordReflectionRun("success")

	removeProcessedInboxItems(filepath.Join(workspaceRoot, "inbox"), items, r.logWarn)
	return nil
}

func (r *Reflector) setNextDue(ghostName string, due time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.nextDue[ghostName]; !exists {
		if len(r.dueOrder) >= maxTrackedSessions {
			oldest := r.dueOrder[0]
			r.dueOrder = r.dueOrder[1:]
			delete(r.nextDue, oldest)
		}
		r.dueOrder = append(r.dueOrder, ghostName)
	}
	r.nextDue[ghostName] = due
}

func (r *Reflector) logWarn(msg string, args ...any) {
	if r.Logger != nil {
		r.Logger.Warn(msg, args...)
	}
}

type inboxItem struct {
	filename string
	content  string
}

// readInboxItems reads every *.md file directly under dir, sorted by
// filename so reflection processes captures in the order they arrived.
func readInboxItems(dir string) ([]inboxItem, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var items []inboxItem
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		items = append(items, inboxItem{filename: e.Name(), content: string(data)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].filename < items[j].filename })
	return items, nil
}

func renderInboxItems(items []inboxItem) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "## Inbox Item %d — `%s`\n\n%s\n\n---\n\n", i+1, item.filename, item.content)
	}
	return b.String()
}

// removeProcessedInboxItems deletes the inbox files a completed reflection
// run consumed; a single file that fails to delete is logged, not fatal.
func removeProcessedInboxItems(dir string, items []inboxItem, warn func(msg string, args ...any)) {
	for _, item := range items {
		if err := os.Remove(filepath.Join(dir, item.filename)); err != nil {
			warn("reflection: failed to remove processed inbox file", "file", item.filename, "error", err)
		}
	}
}
