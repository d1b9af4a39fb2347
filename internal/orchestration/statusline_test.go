package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haasonsaas/nexus/internal/chatloop"
)

func TestFormatWithStatusline_NoToolsSingleTurn(t *testing.T) {
	res := chatloop.Result{
		ModelAlias: "primary",
		Usage:      chatloop.Usage{InputTokens: 500, OutputTokens: 120, TurnCount: 1},
	}
	got := FormatWithStatusline("Hello.", res)
	assert.Equal(t, "Hello.\n─\n`primary | 500↑ 120↓`", got)
}

func TestFormatWithStatusline_ToolsAndMultipleTurns(t *testing.T) {
	res := chatloop.Result{
		ModelAlias: "primary",
		Usage:      chatloop.Usage{InputTokens: 1500, OutputTokens: 2_500_000, TurnCount: 3},
		ToolCalls: []chatloop.ToolCallSummary{
			{Name: "list_dir"},
			{Name: "read_file"},
		},
	}
	got := FormatWithStatusline("Done.", res)
	assert.Equal(t, "Done.\n─\n`primary | 1.5k↑ 2.5M↓ | 2 tools | 3 turns`", got)
}

func TestFormatTokenCount(t *testing.T) {
	assert.Equal(t, "42", formatTokenCount(42))
	assert.Equal(t, "1.5k", formatTokenCount(1500))
	assert.Equal(t, "2.0M", formatTokenCount(2_000_000))
}
