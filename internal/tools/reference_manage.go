package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/pkg/models"
)

type referenceManageTool struct{}

func newReferenceManageTool() Tool { return referenceManageTool{} }

func (referenceManageTool) Name() string { return "reference_manage" }

func (referenceManageTool) Description() string {
	return "Updates a reference topic's metadata (tags), marks one of its files active/problematic/obsolete, or deletes the whole topic."
}

func (referenceManageTool) Prompt() string { return "" }

func (referenceManageTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["update_tags", "set_file_status", "delete_topic"]},
			"topic": {"type": "string", "description": "Title of the reference topic."},
			"tags": {"type": "array", "items": {"type": "string"}, "description": "Required for update_tags."},
			"path": {"type": "string", "description": "Required for set_file_status: the file's rel_path within the topic."},
			"status": {"type": "string", "enum": ["active", "problematic", "obsolete"], "description": "Required for set_file_status."}
		},
		"required": ["action", "topic"],
		"additionalProperties": false
	}`)
}

func (referenceManageTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	if tc.Knowledge == nil {
		return errf("knowledge engine not available")
	}

	var args struct {
		Action string   `json:"action"`
		Topic  string   `json:"topic"`
		Tags   []string `json:"tags"`
		Path   string   `json:"path"`
		Status string   `json:"status"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	switch args.Action {
	case "update_tags":
		topic, _, err := tc.Knowledge.ReferenceFiles(ctx, args.Topic)
		if err != nil {
			return errf(fmt.Sprintf("topic lookup failed: %v", err))
		}
		if err := tc.Knowledge.SetNoteTags(ctx, topic.ID, args.Tags); err != nil {
			return errf(fmt.Sprintf("update failed: %v", err))
		}
		return ok(fmt.Sprintf("Updated tags on topic %q.", args.Topic))

	case "set_file_status":
		if args.Path == "" || args.Status == "" {
			return errf("set_file_status requires path and status")
		}
		status := models.ReferenceStatus(args.Status)
		if err := tc.Knowledge.SetReferenceFileStatus(ctx, args.Topic, args.Path, status); err != nil {
			return errf(fmt.Sprintf("status update failed: %v", err))
		}
		return ok(fmt.Sprintf("Marked %s in topic %q as %s.", args.Path, args.Topic, args.Status))

	case "delete_topic":
		topic, files, err := tc.Knowledge.ReferenceFiles(ctx, args.Topic)
		if err != nil {
			return errf(fmt.Sprintf("topic lookup failed: %v", err))
		}
		for _, f := range files {
			if err := tc.Knowledge.DeleteNote(ctx, f.FileNoteID); err != nil {
				return errf(fmt.Sprintf("failed to delete file %s: %v", f.RelPath, err))
			}
		}
		if err := tc.Knowledge.DeleteNote(ctx, topic.ID); err != nil {
			return errf(fmt.Sprintf("failed to delete topic: %v", err))
		}
		return ok(fmt.Sprintf("Deleted topic %q and %d file(s).", args.Topic, len(files)))

	default:
		return errf(fmt.Sprintf("unknown action %q", args.Action))
	}
}
