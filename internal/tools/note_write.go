package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/internal/knowledge"
	"github.com/haasonsaas/nexus/pkg/models"
)

type noteWriteTool struct{}

func newNoteWriteTool() Tool { return noteWriteTool{} }

func (noteWriteTool) Name() string { return "note_write" }

func (noteWriteTool) Description() string {
	return "Creates, updates, validates, comments on, or deletes a knowledge note."
}

func (noteWriteTool) Prompt() string { return "" }

func (noteWriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["create", "update", "validate", "comment", "delete"]},
			"note_id": {"type": "integer", "description": "Required for update/validate/comment/delete."},
			"scope": {"type": "string", "enum": ["shared", "ghost-private", "ghost-projects", "ghost-diary"], "description": "Required for create."},
			"title": {"type": "string", "description": "Required for create."},
			"body": {"type": "string", "description": "Required for create/update."},
			"tags": {"type": "array", "items": {"type": "string"}},
			"archetype": {"type": "string"},
			"trust_score": {"type": "integer", "minimum": 0, "maximum": 10},
			"comment": {"type": "string", "description": "Required for comment."}
		},
		"required": ["action"],
		"additionalProperties": false
	}`)
}

func (noteWriteTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	if tc.Knowledge == nil {
		return errf("knowledge engine not available")
	}

	var args struct {
		Action     string   `json:"action"`
		NoteID     int64    `json:"note_id"`
		Scope      string   `json:"scope"`
		Title      string   `json:"title"`
		Body       string   `json:"body"`
		Tags       []string `json:"tags"`
		Archetype  string   `json:"archetype"`
		TrustScore int      `json:"trust_score"`
		Comment    string   `json:"comment"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	switch args.Action {
	case "create":
		if args.Scope == "" || args.Title == "" || args.Body == "" {
			return errf("create requires scope, title, and body")
		}
		owner := ""
		scope := models.Scope(args.Scope)
		if scope == models.ScopeGhostPrivate || scope == models.ScopeGhostProjects || scope == models.ScopeGhostDiary {
			owner = tc.GhostName
		}
		note, err := tc.Knowledge.CreateNote(ctx, knowledge.NoteCreateRequest{
			Scope:      scope,
			OwnerGhost: owner,
			Title:      args.Title,
			Body:       args.Body,
			Tags:       args.Tags,
			Archetype:  args.Archetype,
			TrustScore: args.TrustScore,
			Ghost:      tc.GhostName,
			Model:      "ghost",
		})
		if err != nil {
			return errf(fmt.Sprintf("create failed: %v", err))
		}
		return ok(fmt.Sprintf("Created note %q (id=%d).", note.Title, note.ID))

	case "update":
		if args.NoteID == 0 || args.Body == "" {
			return errf("update requires note_id and body")
		}
		note, err := tc.Knowledge.UpdateNote(ctx, args.NoteID, args.Body)
		if err != nil {
			return errf(fmt.Sprintf("update failed: %v", err))
		}
		return ok(fmt.Sprintf("Updated note %q (id=%d, version=%d).", note.Title, note.ID, note.Version))

	case "validate":
		if args.NoteID == 0 {
			return errf("validate requires note_id")
		}
		if err := tc.Knowledge.ValidateNote(ctx, args.NoteID, tc.GhostName); err != nil {
			return errf(fmt.Sprintf("validate failed: %v", err))
		}
		return ok(fmt.Sprintf("Validated note %d.", args.NoteID))

	case "comment":
		if args.NoteID == 0 || args.Comment == "" {
			return errf("comment requires note_id and comment")
		}
		if err := tc.Knowledge.CommentNote(ctx, args.NoteID, args.Comment); err != nil {
			return errf(fmt.Sprintf("comment failed: %v", err))
		}
		return ok(fmt.Sprintf("Commented on note %d.", args.NoteID))

	case "delete":
		if args.NoteID == 0 {
			return errf("delete requires note_id")
		}
		if err := tc.Knowledge.DeleteNote(ctx, args.NoteID); err != nil {
			return errf(fmt.Sprintf("delete failed: %v", err))
		}
		return ok(fmt.Sprintf("Deleted note %d.", args.NoteID))

	default:
		return errf(fmt.Sprintf("unknown action %q", args.Action))
	}
}
