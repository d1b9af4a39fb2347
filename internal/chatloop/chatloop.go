// Package chatloop implements the session chat loop: persisting an
// operator's message, assembling the system prompt and tool-result history
// for a provider call, running the tool-use round trip to completion (or
// pausing it for operator approval or a step-limit extension), and
// recording usage.
package chatloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/budget"
	"github.com/haasonsaas/nexus/internal/content"
	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/promptcache"
	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

// ErrSessionNotFound is returned when a session doesn't exist or doesn't
// belong to the requesting operator.
var ErrSessionNotFound = errors.New("chatloop: session not found")

// DefaultMaxSteps is how many provider round trips a single chat turn runs
// before pausing and asking the operator to extend it with "steps N".
const DefaultMaxSteps = 25

// DefaultExtraSteps is how many additional round trips a bare "steps"/
// "max"/"limit" control command grants when it carries no explicit count.
const DefaultExtraSteps = 5

// historyLimit bounds how many persisted messages are pulled into a
// provider call; mirrors the teacher's 50-message window.
const historyLimit = 50

// compactionThreshold is the fraction of the context window at which
// history gets compacted before the provider call.
const compactionThreshold = 0.85

// Loop wires together the subsystems a chat turn touches: model resolution,
// prompt caching, token budgeting, tool dispatch, and persistence.
type Loop struct {
	Store    *storage.Store
	Registry *providers.Registry
	Breaker  *providers.CircuitBreaker
	Cache    *promptcache.Cache
	Content  *content.Registry
	ToolsMgr *tools.Manager
	Logger   *slog.Logger

	// Metrics and Tracer are both nil-safe; leave unset to run without
	// Prometheus/OTel wiring (e.g. in tests).
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	MaxSteps   int
	ExtraSteps int
}

// New builds a Loop with default step limits.
func New(store *storage.Store, registry *providers.Registry, breaker *providers.CircuitBreaker, cache *promptcache.Cache, contentReg *content.Registry, toolsMgr *tools.Manager, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		Store:      store,
		Registry:   registry,
		Breaker:    breaker,
		Cache:      cache,
		Content:    contentReg,
		ToolsMgr:   toolsMgr,
		Logger:     logger.With("component", "chatloop"),
		MaxSteps:   DefaultMaxSteps,
		ExtraSteps: DefaultExtraSteps,
	}
}

// Request is one operator turn.
type Request struct {
	GhostID    string
	GhostName  string
	SessionID  string
	OperatorID string
	// ModelChain overrides the registry's default alias chain for this
	// turn only; empty uses the registry default.
	ModelChain []string
	Content    string
	ToolCtx    *tools.ToolContext
}

// ToolCallSummary is a compact record of one tool invocation in a turn, for
// operator-facing verbose output.
type ToolCallSummary struct {
	Name    string
	Input   json.RawMessage
	IsError bool
}

// Usage aggregates token accounting across every provider round trip in a
// turn.
type Usage struct {
	InputTokens       int
	OutputTokens      int
	CacheReadTokens   int
	CacheCreateTokens int
	TurnCount         int
}

// Result is what a completed (or paused) chat turn returns.
type Result struct {
	Text               string
	ModelAlias         string
	Model              string
	Usage              Usage
	ToolCalls          []ToolCallSummary
	CompactionHappened bool

	// Pending is set instead of Text when the turn paused for an operator
	// decision: an approval, or a step-limit extension.
	Pending *Pending
}

// PendingKind distinguishes why a turn paused.
type PendingKind string

const (
	PendingApproval PendingKind = "approval"
	PendingToolLoop PendingKind = "tool_loop_limit"
)

// Pending snapshots everything needed to resume a paused turn once the
// operator replies "approve", "deny", or "steps N".
type Pending struct {
	Kind   PendingKind
	Reason tools.ApprovalReason // set when Kind == PendingApproval
	state  *iterationState
}

// ApproveToolCall grants the pending approval on the turn's tool context.
// Callers must call this before ResolveApproval(ctx, pending, true) so the
// re-run of the gated tool call succeeds.
func (p *Pending) ApproveToolCall() {
	if p.state != nil && p.state.toolCtx != nil {
		p.state.toolCtx.ApplyApproval(p.Reason)
	}
}

// Chat runs one full operator turn: persist the message, load history,
// assemble the system prompt, and drive the tool loop to completion or a
// pause point.
func (l *Loop) Chat(ctx context.Context, req Request) (Result, error) {
	ctx, span := l.Tracer.Start(ctx, "chatloop.Chat")
	defer span.End()
	l.Metrics.TurnStarted()
	defer l.Metrics.TurnFinished()

	session, err := l.Store.SessionGet(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, ErrSessionNotFound
		}
		observability.RecordSpanError(span, err)
		return Result{}, err
	}
	if session.OperatorID != req.OperatorID {
		return Result{}, ErrSessionNotFound
	}

	// Fetch history before the new message is persisted: the provider call
	// carries the new message separately from the prior history.
	history, err := l.Store.MessageHistory(ctx, req.SessionID, historyLimit)
	if err != nil {
		return Result{}, fmt.Errorf("chatloop: load history: %w", err)
	}

	operatorMsg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      models.RoleOperator,
		Content:   []models.ContentBlock{models.Text(req.Content)},
		CreatedAt: time.Now(),
	}
	if err := l.Store.MessageAppend(ctx, operatorMsg); err != nil {
		return Result{}, fmt.Errorf("chatloop: persist operator message: %w", err)
	}
	if err := l.Store.SessionTouch(ctx, req.SessionID, operatorMsg.CreatedAt); err != nil {
		l.Logger.Warn("session touch failed", "session", req.SessionID, "error", err)
	}

	entry, ok := l.Registry.Resolve(l.Breaker, req.ModelChain)
	if !ok {
		return Result{}, errors.New("chatloop: no available model in chain")
	}

	system, toolDefs, err := l.buildSystemPrompt(ctx, req, entry)
	if err != nil {
		return Result{}, fmt.Errorf("chatloop: build system prompt: %w", err)
	}

	b := budget.Compute(entry.Model, entry.ContextWindowOverride, system, toolDefs, history, compactionThreshold)
	compacted := false
	if b.NeedsCompaction {
		history, err = l.compactHistory(ctx, req.SessionID, entry, history)
		if err != nil {
			return Result{}, fmt.Errorf("chatloop: compact history: %w", err)
		}
		compacted = true
	}

	state := &iterationState{
		session:    session,
		ghostID:    req.GhostID,
		modelEntry: entry,
		toolCtx:    req.ToolCtx,
		system:     system,
		toolDefs:   toolDefs,
		history:    history,
		newMessage: operatorMsg,
		stepsLeft:  l.MaxSteps,
	}

	res, err := l.runLoop(ctx, state)
	if err != nil {
		return Result{}, err
	}
	res.CompactionHappened = compacted
	return res, nil
}

// ResolveApproval resumes a turn paused on Pending.Kind == PendingApproval.
// Callers granting approval must have already applied it to the pending
// tool context (tools.ToolContext.ApplyApproval) before calling this with
// approved=true, so the re-run of the gated tool call succeeds.
func (l *Loop) ResolveApproval(ctx context.Context, pending *Pending, approved bool) (Result, error) {
	if pending == nil || pending.Kind != PendingApproval {
		return Result{}, errors.New("chatloop: no pending approval")
	}
	state := pending.state
	state.approvalReason = nil

	if !approved {
		call := state.pendingCalls[0]
		state.results = append(state.results, models.ToolResult(call.ToolUse.ID, pending.Reason.DenialMessage(), true))
		for _, remaining := range state.pendingCalls[1:] {
			state.results = append(state.results, models.ToolResult(remaining.ToolUse.ID, "Error: skipped, a preceding tool call in this turn was denied.", true))
		}
		state.pendingCalls = nil
		if err := l.persistToolResults(ctx, state); err != nil {
			return Result{}, err
		}
		return l.runLoop(ctx, state)
	}

	if err := l.executeRemaining(ctx, state); err != nil {
		return Result{}, err
	}
	if state.approvalReason != nil {
		return l.pendingApprovalResult(state), nil
	}
	if err := l.persistToolResults(ctx, state); err != nil {
		return Result{}, err
	}
	return l.runLoop(ctx, state)
}

// ResolveToolLoop resumes a turn paused on Pending.Kind == PendingToolLoop,
// granting it extra provider round trips (extra <= 0 uses l.ExtraSteps).
func (l *Loop) ResolveToolLoop(ctx context.Context, pending *Pending, extra int) (Result, error) {
	if pending == nil || pending.Kind != PendingToolLoop {
		return Result{}, errors.New("chatloop: no pending tool-loop extension")
	}
	if extra <= 0 {
		extra = l.ExtraSteps
	}
	pending.state.stepsLeft = extra
	return l.runLoop(ctx, pending.state)
}
