package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/knowledge"
	"github.com/haasonsaas/nexus/pkg/models"
)

type knowledgeSearchTool struct{}

func newKnowledgeSearchTool() Tool { return knowledgeSearchTool{} }

func (knowledgeSearchTool) Name() string { return "knowledge_search" }

func (knowledgeSearchTool) Description() string {
	return "Hybrid lexical+semantic search over shared, reference, and this ghost's private notes. Returns the most relevant notes with a snippet and linked neighbors."
}

func (knowledgeSearchTool) Prompt() string { return "" }

func (knowledgeSearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Natural-language query."},
			"scopes": {
				"type": "array",
				"items": {"type": "string", "enum": ["shared", "ghost-private", "ghost-projects", "ghost-diary", "shared-reference"]},
				"description": "Restrict to these scopes. Omit to search every scope visible to this ghost."
			},
			"limit": {"type": "integer", "minimum": 1, "maximum": 50, "description": "Maximum results. Defaults to the engine's configured limit."}
		},
		"required": ["query"],
		"additionalProperties": false
	}`)
}

func (t knowledgeSearchTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	if tc.Knowledge == nil {
		return errf("knowledge engine not available")
	}

	var args struct {
		Query  string   `json:"query"`
		Scopes []string `json:"scopes"`
		Limit  int      `json:"limit"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	scopes := make([]models.Scope, 0, len(args.Scopes))
	for _, s := range args.Scopes {
		scopes = append(scopes, models.Scope(s))
	}

	results, err := tc.Knowledge.Search(ctx, args.Query,
		knowledge.ScopeSelector{Scopes: scopes, Ghost: tc.GhostName},
		knowledge.SearchOptions{Limit: args.Limit})
	if err != nil {
		return errf(fmt.Sprintf("search failed: %v", err))
	}
	if len(results) == 0 {
		return ok("No matching notes found.")
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [%d] %s (scope=%s, score=%.3f)\n   %s\n", i+1, r.Note.ID, r.Note.Title, r.Note.Scope, r.Score, r.Snippet)
		var linked []string
		for _, n := range r.Outgoing {
			linked = append(linked, n.Title)
		}
		for _, n := range r.Incoming {
			linked = append(linked, n.Title)
		}
		if len(linked) > 0 {
			fmt.Fprintf(&b, "   linked: %s\n", strings.Join(linked, ", "))
		}
	}
	return ok(b.String())
}
