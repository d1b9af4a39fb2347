package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/nexus/pkg/models"
)

// fakeProvider is a minimal Provider used across this package's tests.
type fakeProvider struct {
	name  string
	model string
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) CurrentModel() string  { return f.model }
func (f *fakeProvider) SendConversation(ctx context.Context, system *models.SystemPrompt, history []*models.Message, tools []models.ToolDefinition, newMessage *models.Message, messageLimit *int, toolChoice string) (ProviderResponse, error) {
	return ProviderResponse{Model: f.model, Content: []models.ContentBlock{models.Text("ok")}, StopReason: StopEndTurn}, nil
}

func TestRegistryResolvePicksFirstAvailable(t *testing.T) {
	cb := NewCircuitBreaker()
	reg, err := NewRegistry([]ModelEntry{
		{Alias: "primary", Provider: &fakeProvider{name: "anthropic", model: "claude-sonnet-4-5"}},
		{Alias: "fallback", Provider: &fakeProvider{name: "openai", model: "gpt-4o"}},
	}, []string{"primary", "fallback"})
	require.NoError(t, err)

	entry, ok := reg.Resolve(cb, nil)
	require.True(t, ok)
	assert.Equal(t, "primary", entry.Alias)

	cb.RecordFailure("primary", RateLimited)
	entry, ok = reg.Resolve(cb, nil)
	require.True(t, ok)
	assert.Equal(t, "fallback", entry.Alias)
}

func TestRegistryResolveAllCooledDown(t *testing.T) {
	cb := NewCircuitBreaker()
	reg, err := NewRegistry([]ModelEntry{
		{Alias: "only", Provider: &fakeProvider{name: "anthropic", model: "claude-sonnet-4-5"}},
	}, []string{"only"})
	require.NoError(t, err)

	cb.RecordFailure("only", ServerError)
	_, ok := reg.Resolve(cb, nil)
	assert.False(t, ok)
}

func TestNewRegistryRejectsUnknownChainAlias(t *testing.T) {
	_, err := NewRegistry([]ModelEntry{
		{Alias: "primary", Provider: &fakeProvider{}},
	}, []string{"primary", "ghost-alias"})
	assert.Error(t, err)
}

func TestNewRegistryRejectsMissingProvider(t *testing.T) {
	_, err := NewRegistry([]ModelEntry{{Alias: "primary"}}, nil)
	assert.Error(t, err)
}

func TestTruncateHistoryKeepsTail(t *testing.T) {
	history := []*models.Message{
		{ID: "1"}, {ID: "2"}, {ID: "3"},
	}
	limit := 2
	truncated := truncateHistory(history, &limit)
	require.Len(t, truncated, 2)
	assert.Equal(t, "2", truncated[0].ID)
	assert.Equal(t, "3", truncated[1].ID)

	assert.Equal(t, history, truncateHistory(history, nil))
}

func TestWithNewMessageAppendsWithoutMutating(t *testing.T) {
	history := []*models.Message{{ID: "1"}}
	extended := withNewMessage(history, &models.Message{ID: "2"})
	require.Len(t, extended, 2)
	require.Len(t, history, 1)
	assert.Equal(t, "2", extended[1].ID)

	assert.Equal(t, history, withNewMessage(history, nil))
}
