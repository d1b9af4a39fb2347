package budget

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestEstimateTokensBasic(t *testing.T) {
	assert.Equal(t, 2, EstimateTokens("hello!!"))
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 10, EstimateTokens(strings.Repeat("a", 35)))
}

func TestEstimateTokensUnicode(t *testing.T) {
	tokens := EstimateTokens("こんにちは") // 15 bytes in UTF-8
	assert.GreaterOrEqual(t, tokens, 4)
}

func TestContextWindowKnownModels(t *testing.T) {
	assert.Equal(t, 200_000, ContextWindowForModel("claude-sonnet-4-5-20250929"))
	assert.Equal(t, 200_000, ContextWindowForModel("claude-opus-4-6"))
	assert.Equal(t, 1_000_000, ContextWindowForModel("google/gemini-pro-1.5"))
	assert.Equal(t, 128_000, ContextWindowForModel("gpt-4-turbo"))
	assert.Equal(t, 128_000, ContextWindowForModel("deepseek/deepseek-r1"))
}

func TestContextWindowFallback(t *testing.T) {
	assert.Equal(t, 200_000, ContextWindowForModel("unknown-model-xyz"))
}

func TestComputeBudgetNoCompaction(t *testing.T) {
	system := models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "Short system prompt"}}}
	history := []*models.Message{
		{Role: models.RoleOperator, Content: []models.ContentBlock{models.Text("Hello")}},
	}

	b := Compute("claude-sonnet-4-5-20250929", 0, system, nil, history, 0.85)

	require.Equal(t, 200_000, b.ContextWindow)
	assert.Positive(t, b.SystemTokens)
	assert.Positive(t, b.HistoryTokens)
	assert.False(t, b.NeedsCompaction)
	assert.Positive(t, b.Remaining)
}

func TestComputeBudgetTriggersCompaction(t *testing.T) {
	system := models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "System"}}}
	history := []*models.Message{
		{Role: models.RoleOperator, Content: []models.ContentBlock{models.Text(strings.Repeat("x", 700_000))}},
	}

	b := Compute("claude-sonnet-4-5-20250929", 0, system, nil, history, 0.85)
	assert.True(t, b.NeedsCompaction)
}

func TestContextWindowOverride(t *testing.T) {
	system := models.SystemPrompt{Blocks: []models.PromptBlock{{Content: "System"}}}
	b := Compute("claude-sonnet-4-5-20250929", 50_000, system, nil, nil, 0.85)
	assert.Equal(t, 50_000, b.ContextWindow)
}

func TestEstimateSystemTokens(t *testing.T) {
	system := models.SystemPrompt{Blocks: []models.PromptBlock{
		{Content: "First block"},
		{Content: "Second block"},
	}}
	assert.Equal(t, 8, EstimateSystemTokens(system))
}

func TestEstimateHistoryWithToolBlocks(t *testing.T) {
	input, err := json.Marshal(map[string]string{"command": "ls"})
	require.NoError(t, err)

	history := []*models.Message{
		{
			Role: models.RoleGhost,
			Content: []models.ContentBlock{
				models.Text("Let me check"),
				models.ToolUse("tu_1", "shell", input),
			},
		},
		{
			Role:    models.RoleOperator,
			Content: []models.ContentBlock{models.ToolResult("tu_1", "file1.txt\nfile2.txt", false)},
		},
	}

	tokens := EstimateHistoryTokens(history)
	assert.Positive(t, tokens)
	assert.Greater(t, tokens, 8)
}
