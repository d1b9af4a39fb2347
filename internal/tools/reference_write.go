package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/nexus/pkg/models"
)

type referenceWriteTool struct{}

func newReferenceWriteTool() Tool { return referenceWriteTool{} }

func (referenceWriteTool) Name() string { return "reference_write" }

func (referenceWriteTool) Description() string {
	return "Adds or replaces a single hand-authored file under an existing shared-reference topic. The topic must already exist; use reference_import to create one."
}

func (referenceWriteTool) Prompt() string { return "" }

func (referenceWriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"topic": {"type": "string", "description": "Title of the existing reference topic."},
			"path": {"type": "string", "description": "File path relative to the topic, e.g. 'notes/caveats.md'."},
			"content": {"type": "string"},
			"role": {"type": "string", "enum": ["docs", "code"], "description": "Defaults to docs."}
		},
		"required": ["topic", "path", "content"],
		"additionalProperties": false
	}`)
}

func (referenceWriteTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	if tc.Knowledge == nil {
		return errf("knowledge engine not available")
	}

	var args struct {
		Topic   string `json:"topic"`
		Path    string `json:"path"`
		Content string `json:"content"`
		Role    string `json:"role"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	role := models.ReferenceRoleDocs
	if args.Role == string(models.ReferenceRoleCode) {
		role = models.ReferenceRoleCode
	}

	id, err := tc.Knowledge.SaveReferenceFile(ctx, args.Topic, args.Path, args.Content, role)
	if err != nil {
		return errf(fmt.Sprintf("save failed: %v", err))
	}
	return ok(fmt.Sprintf("Saved %s under topic %q (note id=%d).", args.Path, args.Topic, id))
}
