// Package budget estimates provider token usage without a tokenizer, so the
// chat loop can decide to compact history before a provider rejects the
// request for being too large.
//
// Every estimate uses a chars/3.5 heuristic, which overestimates for
// multi-byte text (safe direction) and is within the usual ~20% margin
// tokenizers disagree by across providers.
package budget

import (
	"math"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

const (
	charsPerToken       = 3.5
	perMessageOverhead  = 4
	perToolOverhead     = 20
	defaultContextWindow = 200_000
)

// EstimateTokens approximates the token count of raw text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / charsPerToken))
}

// EstimateSystemTokens sums the estimate across every system prompt block.
func EstimateSystemTokens(prompt models.SystemPrompt) int {
	total := 0
	for _, b := range prompt.Blocks {
		total += EstimateTokens(b.Content)
	}
	return total
}

// EstimateHistoryTokens sums a per-message overhead plus the estimate for
// every content block across a message history.
func EstimateHistoryTokens(messages []*models.Message) int {
	total := 0
	for _, msg := range messages {
		total += perMessageOverhead
		for _, block := range msg.Content {
			switch {
			case block.IsText():
				total += EstimateTokens(block.Text.Text)
			case block.IsToolUse():
				total += EstimateTokens(block.ToolUse.ID)
				total += EstimateTokens(block.ToolUse.Name)
				total += EstimateTokens(string(block.ToolUse.Input))
			case block.IsToolResult():
				total += EstimateTokens(block.ToolResult.ToolUseID)
				total += EstimateTokens(block.ToolResult.Content)
			}
		}
	}
	return total
}

// EstimateToolTokens sums a per-tool schema overhead across tool
// definitions.
func EstimateToolTokens(tools []models.ToolDefinition) int {
	total := 0
	for _, t := range tools {
		total += perToolOverhead
		total += EstimateTokens(t.Name)
		total += EstimateTokens(t.Description)
		total += EstimateTokens(t.SchemaJSON)
	}
	return total
}

// ContextWindowForModel looks up a model's max input tokens by matching
// well-known substrings in its id; an unrecognized model id falls back to
// 200,000, a safe default for modern frontier models.
func ContextWindowForModel(model string) int {
	normalized := strings.ToLower(model)

	switch {
	case strings.Contains(normalized, "claude"):
		return 200_000
	case strings.Contains(normalized, "gemini"):
		if strings.Contains(normalized, "pro") || strings.Contains(normalized, "flash") {
			return 1_000_000
		}
		return 128_000
	case strings.Contains(normalized, "gpt-4"):
		return 128_000
	case strings.Contains(normalized, "deepseek"):
		return 128_000
	case strings.Contains(normalized, "qwen"):
		return 128_000
	case strings.Contains(normalized, "kimi"):
		return 128_000
	default:
		return defaultContextWindow
	}
}

// Budget is the breakdown for a single request's worth of context.
type Budget struct {
	ContextWindow   int
	SystemTokens    int
	ToolTokens      int
	HistoryTokens   int
	TotalEstimated  int
	Remaining       int
	NeedsCompaction bool
}

// Compute assembles a Budget for one request. contextWindowOverride, when
// nonzero, takes precedence over ContextWindowForModel(model). threshold is
// the fraction of the context window at which compaction should trigger
// (the chat loop defaults this to 0.85).
func Compute(model string, contextWindowOverride int, system models.SystemPrompt, tools []models.ToolDefinition, history []*models.Message, threshold float64) Budget {
	contextWindow := contextWindowOverride
	if contextWindow == 0 {
		contextWindow = ContextWindowForModel(model)
	}

	systemTokens := EstimateSystemTokens(system)
	toolTokens := EstimateToolTokens(tools)
	historyTokens := EstimateHistoryTokens(history)
	total := systemTokens + toolTokens + historyTokens

	remaining := contextWindow - total
	if remaining < 0 {
		remaining = 0
	}

	return Budget{
		ContextWindow:   contextWindow,
		SystemTokens:    systemTokens,
		ToolTokens:      toolTokens,
		HistoryTokens:   historyTokens,
		TotalEstimated:  total,
		Remaining:       remaining,
		NeedsCompaction: float64(total) > float64(contextWindow)*threshold,
	}
}
