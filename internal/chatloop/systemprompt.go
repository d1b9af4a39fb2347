package chatloop

import (
	"context"
	"strings"

	"github.com/haasonsaas/nexus/internal/promptcache"
	"github.com/haasonsaas/nexus/internal/providers"
	"github.com/haasonsaas/nexus/internal/tools"
	"github.com/haasonsaas/nexus/pkg/models"
)

// buildSystemPrompt assembles the per-turn system blocks and tool
// definitions, reusing a cached build when the ghost, workspace, provider
// and tool set haven't changed since the last turn.
func (l *Loop) buildSystemPrompt(ctx context.Context, req Request, entry providers.ModelEntry) (models.SystemPrompt, []models.ToolDefinition, error) {
	toolDefs := toolDefinitions(l.ToolsMgr)

	workspaceRoot := ""
	if req.ToolCtx != nil {
		workspaceRoot = req.ToolCtx.WorkspaceRoot
	}

	var sig strings.Builder
	for _, td := range toolDefs {
		sig.WriteString(td.Name)
		sig.WriteByte(';')
	}

	fp := promptcache.Fingerprint(
		[2]string{"ghost_name", req.GhostName},
		[2]string{"workspace_root", workspaceRoot},
		[2]string{"provider", entry.ProviderName},
		[2]string{"tools", sig.String()},
	)

	system, err := l.Cache.GetOrBuild(ctx, req.SessionID, req.GhostID, fp, func(ctx context.Context) (models.SystemPrompt, error) {
		return l.renderSystemPrompt(req, entry, workspaceRoot)
	})
	if err != nil {
		return models.SystemPrompt{}, nil, err
	}
	return system, toolDefs, nil
}

// renderSystemPrompt resolves the shared base prompt (with a
// provider-scoped override where one exists), the ghost's workspace
// context, and any tool-specific usage guidance into one ordered set of
// blocks. The ghost context block carries a cache-control breakpoint since
// it's the last thing that changes turn to turn.
func (l *Loop) renderSystemPrompt(req Request, entry providers.ModelEntry, workspaceRoot string) (models.SystemPrompt, error) {
	base, err := l.Content.PromptText("system-base", entry.ProviderName, nil)
	if err != nil {
		return models.SystemPrompt{}, err
	}

	ghostCtx, err := l.Content.PromptText("ghost-context", "", map[string]string{
		"ghost_name":     req.GhostName,
		"workspace_root": workspaceRoot,
	})
	if err != nil {
		return models.SystemPrompt{}, err
	}

	blocks := []models.PromptBlock{
		{Content: base},
		{Content: ghostCtx, CacheControl: true},
	}

	for _, t := range l.ToolsMgr.Tools() {
		if p := strings.TrimSpace(t.Prompt()); p != "" {
			blocks = append(blocks, models.PromptBlock{Content: p})
		}
	}

	return models.SystemPrompt{Blocks: blocks}, nil
}

func toolDefinitions(mgr *tools.Manager) []models.ToolDefinition {
	ts := mgr.Tools()
	defs := make([]models.ToolDefinition, 0, len(ts))
	for _, t := range ts {
		defs = append(defs, models.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			SchemaJSON:  string(t.Schema()),
		})
	}
	return defs
}
