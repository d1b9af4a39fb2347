package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

type knowledgeGetTool struct{}

func newKnowledgeGetTool() Tool { return knowledgeGetTool{} }

func (knowledgeGetTool) Name() string { return "knowledge_get" }

func (knowledgeGetTool) Description() string {
	return "Fetches a single note's full body by id or by scope+title, bypassing search ranking."
}

func (knowledgeGetTool) Prompt() string { return "" }

func (knowledgeGetTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"note_id": {"type": "integer", "description": "Note id, if known."},
			"scope": {"type": "string", "enum": ["shared", "ghost-private", "ghost-projects", "ghost-diary", "shared-reference"], "description": "Required with title when note_id is omitted."},
			"title": {"type": "string", "description": "Exact note title, used with scope when note_id is omitted."}
		},
		"additionalProperties": false
	}`)
}

func (knowledgeGetTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	if tc.Knowledge == nil {
		return errf("knowledge engine not available")
	}

	var args struct {
		NoteID int64  `json:"note_id"`
		Scope  string `json:"scope"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	var note *models.Note
	var err error
	switch {
	case args.NoteID != 0:
		note, err = tc.Knowledge.GetNote(ctx, args.NoteID)
	case args.Scope != "" && args.Title != "":
		owner := ""
		scope := models.Scope(args.Scope)
		if scope == models.ScopeGhostPrivate || scope == models.ScopeGhostProjects || scope == models.ScopeGhostDiary {
			owner = tc.GhostName
		}
		note, err = tc.Knowledge.GetNoteByTitle(ctx, scope, owner, args.Title)
	default:
		return errf("provide either note_id, or both scope and title")
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errf("note not found")
		}
		return errf(fmt.Sprintf("lookup failed: %v", err))
	}

	chunks, err := tc.Knowledge.GetNoteChunks(ctx, note.ID)
	if err != nil {
		return errf(fmt.Sprintf("failed to load note body: %v", err))
	}

	var body strings.Builder
	for _, c := range chunks {
		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(c.Content)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s (scope=%s, archetype=%s, trust=%d, version=%d)\n\n", note.ID, note.Title, note.Scope, note.Archetype, note.TrustScore, note.Version)
	if len(note.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(note.Tags, ", "))
	}
	b.WriteString(body.String())
	return ok(b.String())
}
