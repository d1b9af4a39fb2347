package orchestration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

func writeInboxFile(t *testing.T, workspace, name, content string) {
	t.Helper()
	dir := filepath.Join(workspace, "inbox")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReflector_SkipsWhenInboxEmpty(t *testing.T) {
	provider := &scriptedProvider{name: "anthropic", model: "claude-test"}
	gw, _, sessionID, operatorID := newTestGateway(t, provider, tools.NewReflectionToolManager(nil))
	reflector := NewReflector(gw.Loop, gw)

	workspace := t.TempDir()
	err := reflector.MaybeRun(context.Background(), operatorID, "Nyx", sessionID, workspace, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, provider.calls)
}

func TestReflector_ProcessesInboxAndRemovesFiles(t *testing.T) {
	provider := &scriptedProvider{
		name:  "anthropic",
		model: "claude-test",
		responses: []providers.ProviderResponse{
			{Content: []models.ContentBlock{models.Text("Filed 2 notes.")}, StopReason: providers.StopEndTurn},
		},
	}
	gw, _, sessionID, operatorID := newTestGateway(t, provider, tools.NewReflectionToolManager(nil))
	reflector := NewReflector(gw.Loop, gw)

	workspace := t.TempDir()
	writeInboxFile(t, workspace, "001-capture.md", "Learned about channels.")
	writeInboxFile(t, workspace, "002-capture.md", "Learned about generics.")

	err := reflector.MaybeRun(context.Background(), operatorID, "Nyx", sessionID, workspace, time.Now())
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(workspace, "inbox"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	last, err := gw.Loop.Store.LastJobOfKind(context.Background(), models.JobReflection)
	require.NoError(t, err)
	assert.Equal(t, sessionID, last.SessionID)
}

func TestReflector_RespectsCooldown(t *testing.T) {
	provider := &scriptedProvider{
		name:  "anthropic",
		model: "claude-test",
		responses: []providers.ProviderResponse{
			{Content: []models.ContentBlock{models.Text("Done.")}, StopReason: providers.StopEndTurn},
		},
	}
	gw, _, sessionID, operatorID := newTestGateway(t, provider, tools.NewReflectionToolManager(nil))
	reflector := NewReflector(gw.Loop, gw)

	workspace := t.TempDir()
	writeInboxFile(t, workspace, "001-capture.md", "Something.")

	now := time.Now()
	require.NoError(t, reflector.MaybeRun(context.Background(), operatorID, "Nyx", sessionID, workspace, now))
	assert.Equal(t, 1, provider.calls)

	writeInboxFile(t, workspace, "002-capture.md", "Something else.")
	require.NoError(t, reflector.MaybeRun(context.Background(), operatorID, "Nyx", sessionID, workspace, now.Add(5*time.Minute)))
	assert.Equal(t, 1, provider.calls, "cooldown should have suppressed the second run")
}
