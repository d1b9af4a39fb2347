package providers

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// StopReason is why a provider stopped generating.
type StopReason string

const (
	StopEndTurn   StopReason = "stop"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopOther     StopReason = "other"
)

// Usage is the token accounting for a single provider request.
type Usage struct {
	InputTokens       int
	OutputTokens      int
	CacheReadTokens   int
	CacheCreateTokens int
}

// ProviderResponse is the neutral shape every adapter normalizes its wire
// response into.
type ProviderResponse struct {
	ID         string
	Model      string
	Content    []models.ContentBlock
	Usage      Usage
	StopReason StopReason
}

// Provider is the contract the session chat loop drives every hosted LLM
// through. Implementations never touch storage directly; they only convert
// between the neutral content-block model and their own wire format.
type Provider interface {
	// Name is the provider identifier used for routing, logging and error
	// classification (e.g. "anthropic", "openai").
	Name() string

	// CurrentModel returns the model identifier this adapter instance was
	// constructed with.
	CurrentModel() string

	// SendConversation issues one request to the provider. system may be
	// nil (no system prompt). newMessage, when non-nil, is appended to
	// history as the newest operator turn before dispatch — adapters that
	// stream incrementally still return the aggregated ProviderResponse.
	// messageLimit, when non-nil, caps how much of the tail of history is
	// sent (oldest-first truncation). toolChoice, when non-empty, is
	// passed through to providers that support forcing a specific tool.
	SendConversation(
		ctx context.Context,
		system *models.SystemPrompt,
		history []*models.Message,
		tools []models.ToolDefinition,
		newMessage *models.Message,
		messageLimit *int,
		toolChoice string,
	) (ProviderResponse, error)
}

// truncateHistory returns the tail of history bounded by limit (nil or <=0
// means no truncation).
func truncateHistory(history []*models.Message, limit *int) []*models.Message {
	if limit == nil || *limit <= 0 || *limit >= len(history) {
		return history
	}
	return history[len(history)-*limit:]
}

// withNewMessage appends newMessage to history if non-nil, without
// mutating the caller's slice.
func withNewMessage(history []*models.Message, newMessage *models.Message) []*models.Message {
	if newMessage == nil {
		return history
	}
	out := make([]*models.Message, 0, len(history)+1)
	out = append(out, history...)
	out = append(out, newMessage)
	return out
}
