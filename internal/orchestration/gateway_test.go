package orchestration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/nexus/internal/chatloop"
	"github.com/haasonsaas/nexus/internal/content"
	"github.com/haasonsaas/nexus/internal/promptcache"
	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

type scriptedProvider struct {
	name      string
	model     string
	responses []providers.ProviderResponse
	calls     int
}

func (p *scriptedProvider) Name() string         { return p.name }
func (p *scriptedProvider) CurrentModel() string { return p.model }

func (p *scriptedProvider) SendConversation(ctx context.Context, system *models.SystemPrompt, history []*models.Message, toolDefs []models.ToolDefinition, newMessage *models.Message, messageLimit *int, toolChoice string) (providers.ProviderResponse, error) {
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func newTestGateway(t *testing.T, provider providers.Provider, toolsMgr *tools.Manager) (*Gateway, *storage.Store, string, string) {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, storage.Config{Driver: "sqlite3"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry, err := providers.NewRegistry([]providers.ModelEntry{
		{Alias: "primary", Provider: provider, ProviderName: provider.Name(), Model: provider.CurrentModel()},
	}, []string{"primary"})
	require.NoError(t, err)

	contentReg := content.NewRegistry(content.Config{})
	require.NoError(t, contentReg.Load())

	loop := chatloop.New(store, registry, providers.NewCircuitBreaker(), promptcache.New(store), contentReg, toolsMgr, nil)
	gw := New(loop, nil)

	session := &models.Session{ID: "session-1", GhostID: "ghost-1", OperatorID: "operator-1", CreatedAt: time.Now(), LastActiveAt: time.Now(), Active: true}
	require.NoError(t, store.SessionCreate(ctx, session))

	return gw, store, session.ID, "operator-1"
}

func TestGateway_ApproveResumesPendingTurn(t *testing.T) {
	importInput, _ := json.Marshal(map[string]any{
		"title":   "Go Concurrency",
		"sources": []map[string]string{{"type": "web", "url": "https://example.com"}},
	})
	provider := &scriptedProvider{
		name:  "anthropic",
		model: "claude-test",
		responses: []providers.ProviderResponse{
			{Content: []models.ContentBlock{models.ToolUse("call-1", "reference_import", importInput)}, StopReason: providers.StopToolUse},
			{Content: []models.ContentBlock{models.Text("Imported.")}, StopReason: providers.StopEndTurn},
		},
	}
	gw, _, sessionID, operatorID := newTestGateway(t, provider, tools.NewChatToolManager(nil))

	res, err := gw.Chat(context.Background(), chatloop.Request{
		GhostID: "ghost-1", GhostName: "Nyx", SessionID: sessionID, OperatorID: operatorID,
		Content: "import that", ToolCtx: tools.NewToolContext("Nyx", t.TempDir()),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Pending)

	out, handled, err := gw.HandleControlCommand(context.Background(), operatorID, "Nyx", sessionID, "approve")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Nil(t, out.Pending)
	assert.Equal(t, "Imported.", out.Text)

	_, stillPending := gw.PendingFor(operatorID, "Nyx", sessionID)
	assert.False(t, stillPending)
}

func TestGateway_UnrecognizedContentFallsThrough(t *testing.T) {
	provider := &scriptedProvider{name: "anthropic", model: "claude-test"}
	gw, _, sessionID, operatorID := newTestGateway(t, provider, tools.NewChatToolManager(nil))

	_, handled, err := gw.HandleControlCommand(context.Background(), operatorID, "Nyx", sessionID, "just chatting")
	require.NoError(t, err)
	assert.False(t, handled)
}
