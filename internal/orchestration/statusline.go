package orchestration

import (
	"fmt"

	"github.com/haasonsaas/nexus/internal/chatloop"
)

// FormatWithStatusline appends an operator-facing summary line to a
// completed turn's text: model alias, abbreviated token counts, tool call
// count, and turn count, in backticks under an em-rule. Loop's Result never
// includes it itself; the console REPL appends it to every completed turn,
// with no per-operator setting to turn it off.
func FormatWithStatusline(text string, res chatloop.Result) string {
	toolsPart := ""
	if n := len(res.ToolCalls); n > 0 {
		plural := "s"
		if n == 1 {
			plural = ""
		}
		toolsPart = fmt.Sprintf(" | %d tool%s", n, plural)
	}

	tokensPart := fmt.Sprintf(" | %s↑ %s↓", formatTokenCount(res.Usage.InputTokens), formatTokenCount(res.Usage.OutputTokens))

	turnsPart := ""
	if res.Usage.TurnCount > 1 {
		turnsPart = fmt.Sprintf(" | %d turns", res.Usage.TurnCount)
	}

	return fmt.Sprintf("%s\n─\n`%s%s%s%s`", text, res.ModelAlias, tokensPart, toolsPart, turnsPart)
}

// formatTokenCount abbreviates a token count the way an operator statusline
// reads best: bare below 1000, "k" below a million, "M" above.
func formatTokenCount(count int) string {
	switch {
	case count >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(count)/1_000_000.0)
	case count >= 1_000:
		return fmt.Sprintf("%.1fk", float64(count)/1_000.0)
	default:
		return fmt.Sprintf("%d", count)
	}
}
