package chatloop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/observability"
	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

// iterationState is the mutable state threaded through one operator turn,
// across however many provider round trips it takes (and however many
// operator-approval pauses interrupt it).
type iterationState struct {
	session    *models.Session
	ghostID    string
	modelEntry providers.ModelEntry
	toolCtx    *tools.ToolContext

	system   models.SystemPrompt
	toolDefs []models.ToolDefinition
	history  []*models.Message

	// newMessage is the operator's (or, on a retried call, nothing) message
	// not yet folded into history; consumed on the first provider call of
	// the turn.
	newMessage *models.Message

	stepsLeft int

	// assistantBlocks is the most recent provider response's content; it is
	// cleared once persistAssistantMessage has stored it, before any of the
	// tool calls it requested run.
	assistantBlocks []models.ContentBlock
	// pendingCalls holds ToolUse blocks awaiting execution for the current
	// iteration; element 0 is the one currently blocked on approval, if any.
	pendingCalls []models.ContentBlock
	// results holds ToolResult blocks already computed for this iteration.
	results []models.ContentBlock
	// approvalReason is set by executeRemaining when a tool call pauses the
	// turn for operator approval.
	approvalReason *tools.ApprovalReason

	usage     Usage
	toolCalls []ToolCallSummary
}

// runLoop drives provider round trips until the turn completes, pauses for
// approval, or exhausts its step budget.
func (l *Loop) runLoop(ctx context.Context, state *iterationState) (Result, error) {
	for state.stepsLeft > 0 {
		state.stepsLeft--
		state.usage.TurnCount++

		resp, err := l.callProvider(ctx, state)
		if err != nil {
			return Result{}, err
		}
		state.usage.InputTokens += resp.Usage.InputTokens
		state.usage.OutputTokens += resp.Usage.OutputTokens
		state.usage.CacheReadTokens += resp.Usage.CacheReadTokens
		state.usage.CacheCreateTokens += resp.Usage.CacheCreateTokens

		state.assistantBlocks = resp.Content
		toolUses := extractToolUses(resp.Content)
		if len(toolUses) == 0 {
			return l.finalize(ctx, state, resp)
		}

		// Persist the assistant's ToolUse message before dispatching any of
		// the calls it requested: if one of them pauses the turn for
		// approval, storage must already hold this message (§4.7 step 7d,
		// §8 scenario 3) rather than waiting on the tool batch to resolve.
		if err := l.persistAssistantMessage(ctx, state); err != nil {
			return Result{}, err
		}

		state.pendingCalls = toolUses
		state.results = nil
		if err := l.executeRemaining(ctx, state); err != nil {
			return Result{}, err
		}
		if state.approvalReason != nil {
			return l.pendingApprovalResult(state), nil
		}
		if err := l.persistToolResults(ctx, state); err != nil {
			return Result{}, err
		}
	}

	return l.pendingToolLoopResult(state), nil
}

// callProvider sends the current history (plus, on the first round trip of
// a turn, the new operator message) to the resolved model and classifies
// any failure against the circuit breaker.
func (l *Loop) callProvider(ctx context.Context, state *iterationState) (providers.ProviderResponse, error) {
	ctx, span := l.Tracer.Start(ctx, "chatloop.callProvider")
	defer span.End()

	limit := historyLimit
	newMsg := state.newMessage
	started := time.Now()

	resp, err := state.modelEntry.Provider.SendConversation(ctx, &state.system, state.history, state.toolDefs, newMsg, &limit, "")
	elapsed := time.Since(started).Seconds()
	if err != nil {
		reason := providers.ClassifyError(err)
		if pErr, ok := providers.GetProviderError(err); ok {
			reason = pErr.Reason
		}
		l.Breaker.RecordFailure(state.modelEntry.Alias, reason.Cooldown())
		l.Metrics.RecordLLMRequest(state.modelEntry.Alias, state.modelEntry.ProviderName, state.modelEntry.Model, "error", elapsed, 0, 0, 0, 0)
		l.Metrics.RecordError("chatloop", string(reason))
		l.Metrics.SetCircuitBreakerState(state.modelEntry.Alias, 1)
		wrapped := fmt.Errorf("chatloop: provider %s: %w", state.modelEntry.Provider.Name(), err)
		observability.RecordSpanError(span, wrapped)
		return providers.ProviderResponse{}, wrapped
	}

	l.Metrics.RecordLLMRequest(state.modelEntry.Alias, state.modelEntry.ProviderName, state.modelEntry.Model, "success", elapsed,
		resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.CacheReadTokens, resp.Usage.CacheCreateTokens)

	if newMsg != nil {
		state.history = append(state.history, newMsg)
		state.newMessage = nil
	}
	return resp, nil
}

// executeRemaining runs state.pendingCalls in order, stopping (without
// error) the moment one requires operator approval. Side effects of calls
// already executed in this pass stand; nothing is persisted until the whole
// batch resolves.
func (l *Loop) executeRemaining(ctx context.Context, state *iterationState) error {
	for len(state.pendingCalls) > 0 {
		call := state.pendingCalls[0]
		tu := call.ToolUse

		started := time.Now()
		result, err := l.ToolsMgr.Execute(ctx, tu.Name, tu.Input, state.toolCtx)
		elapsed := time.Since(started).Seconds()
		if err != nil {
			l.Metrics.RecordToolExecution(tu.Name, "error", elapsed)
			return fmt.Errorf("chatloop: tool %s: %w", tu.Name, err)
		}
		if result.IsError {
			if reason, ok := tools.ParseApprovalReason(result.Content); ok {
				state.approvalReason = &reason
				l.Metrics.RecordToolExecution(tu.Name, "pending_approval", elapsed)
				return nil
			}
		}

		status := "success"
		if result.IsError {
			status = "error"
		}
		l.Metrics.RecordToolExecution(tu.Name, status, elapsed)
		state.results = append(state.results, models.ToolResult(tu.ID, result.Content, result.IsError))
		state.toolCalls = append(state.toolCalls, ToolCallSummary{Name: tu.Name, Input: tu.Input, IsError: result.IsError})
		state.pendingCalls = state.pendingCalls[1:]
	}
	return nil
}

// persistAssistantMessage persists the assistant's ToolUse-bearing message
// and folds it into history. Called unconditionally once per provider round
// trip that requests tools, before any of those tools run, so a pause for
// approval never leaves this message missing from storage.
func (l *Loop) persistAssistantMessage(ctx context.Context, state *iterationState) error {
	assistantMsg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: state.session.ID,
		Role:      models.RoleGhost,
		Content:   state.assistantBlocks,
		Model:     state.modelEntry.Model,
		CreatedAt: time.Now(),
	}
	if err := l.Store.MessageAppend(ctx, assistantMsg); err != nil {
		return fmt.Errorf("chatloop: persist assistant message: %w", err)
	}
	state.history = append(state.history, assistantMsg)
	state.assistantBlocks = nil
	return nil
}

// persistToolResults persists the operator-role message carrying every
// ToolResult collected for the current iteration's batch, now that every
// pending call in it has resolved, and folds it into history for the next
// round trip.
func (l *Loop) persistToolResults(ctx context.Context, state *iterationState) error {
	if len(state.results) > 0 {
		resultMsg := &models.Message{
			ID:        uuid.NewString(),
			SessionID: state.session.ID,
			Role:      models.RoleOperator,
			Content:   state.results,
			CreatedAt: time.Now(),
		}
		if err := l.Store.MessageAppend(ctx, resultMsg); err != nil {
			return fmt.Errorf("chatloop: persist tool results: %w", err)
		}
		state.history = append(state.history, resultMsg)
	}

	state.pendingCalls = nil
	state.results = nil
	return nil
}

// finalize persists the turn's final (tool-free) assistant message, records
// usage, and reports success on the circuit breaker.
func (l *Loop) finalize(ctx context.Context, state *iterationState, resp providers.ProviderResponse) (Result, error) {
	finalMsg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: state.session.ID,
		Role:      models.RoleGhost,
		Content:   resp.Content,
		Model:     state.modelEntry.Model,
		CreatedAt: time.Now(),
	}
	if err := l.Store.MessageAppend(ctx, finalMsg); err != nil {
		return Result{}, fmt.Errorf("chatloop: persist final message: %w", err)
	}

	usageRow := &models.UsageLog{
		ID:                uuid.NewString(),
		GhostID:           state.ghostID,
		SessionID:         state.session.ID,
		MessageID:         finalMsg.ID,
		Model:             state.modelEntry.Model,
		InputTokens:       state.usage.InputTokens,
		OutputTokens:      state.usage.OutputTokens,
		CacheReadTokens:   state.usage.CacheReadTokens,
		CacheCreateTokens: state.usage.CacheCreateTokens,
		CreatedAt:         time.Now(),
	}
	if err := l.Store.UsageRecord(ctx, usageRow); err != nil {
		l.Logger.Warn("usage record failed", "session", state.session.ID, "error", err)
	}

	l.Breaker.RecordSuccess(state.modelEntry.Alias)
	l.Metrics.SetCircuitBreakerState(state.modelEntry.Alias, 0)

	return Result{
		Text:       extractText(resp.Content),
		ModelAlias: state.modelEntry.Alias,
		Model:      state.modelEntry.Model,
		Usage:      state.usage,
		ToolCalls:  state.toolCalls,
	}, nil
}

func (l *Loop) pendingApprovalResult(state *iterationState) Result {
	return Result{
		Usage:     state.usage,
		ToolCalls: state.toolCalls,
		Pending: &Pending{
			Kind:   PendingApproval,
			Reason: *state.approvalReason,
			state:  state,
		},
	}
}

func (l *Loop) pendingToolLoopResult(state *iterationState) Result {
	return Result{
		Usage:     state.usage,
		ToolCalls: state.toolCalls,
		Pending: &Pending{
			Kind:  PendingToolLoop,
			state: state,
		},
	}
}

func extractToolUses(blocks []models.ContentBlock) []models.ContentBlock {
	var out []models.ContentBlock
	for _, b := range blocks {
		if b.IsToolUse() {
			out = append(out, b)
		}
	}
	return out
}

func extractText(blocks []models.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.IsText() {
			if t := strings.TrimSpace(b.PlainText()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// compactKeepMessages is how many of the newest messages survive a
// compaction verbatim; everything older is folded into the auxiliary
// summary that replaces them.
const compactKeepMessages = 10

// compactHistory replaces the oldest messages in history with a single
// synthesized summary message, keeping the newest compactKeepMessages
// verbatim, when the turn's token budget says the provider call would
// otherwise run over its context window.
func (l *Loop) compactHistory(ctx context.Context, sessionID string, entry providers.ModelEntry, history []*models.Message) ([]*models.Message, error) {
	if len(history) <= compactKeepMessages {
		return history, nil
	}
	toCompact := history[:len(history)-compactKeepMessages]
	kept := history[len(history)-compactKeepMessages:]

	summary, err := l.summarize(ctx, entry, toCompact)
	if err != nil {
		return nil, err
	}

	summaryMsg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleGhost,
		Content:   []models.ContentBlock{models.Text(summary)},
		CreatedAt: time.Now(),
	}

	out := make([]*models.Message, 0, len(kept)+1)
	out = append(out, summaryMsg)
	out = append(out, kept...)
	return out, nil
}

// summarize issues an auxiliary provider call over the history being
// dropped, asking the model to condense it into a single brief that
// replaces it in the history sent to the main provider call.
func (l *Loop) summarize(ctx context.Context, entry providers.ModelEntry, toCompact []*models.Message) (string, error) {
	promptText, err := l.Content.PromptText("compaction-summary", entry.ProviderName, nil)
	if err != nil {
		return "", fmt.Errorf("chatloop: load compaction prompt: %w", err)
	}
	system := models.SystemPrompt{Blocks: []models.PromptBlock{{Content: promptText}}}

	resp, err := entry.Provider.SendConversation(ctx, &system, toCompact, nil, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("chatloop: summarize history: %w", err)
	}
	summary := extractText(resp.Content)
	if summary == "" {
		summary = "(summary unavailable)"
	}
	return summary, nil
}
