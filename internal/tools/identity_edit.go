package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// identityEditTool maintains the ghost's identity.md, the durable
// self-description a reflection job revises between sessions. There is no
// Rust counterpart for this one: the original ships identity purely as
// static config, but the knowledge layer already treats ghost-private notes
// as editable, so a reflection job needs a direct way to revise the one note
// that isn't just another piece of knowledge.
type identityEditTool struct{}

func newIdentityEditTool() Tool { return identityEditTool{} }

func (identityEditTool) Name() string { return "identity_edit" }

func (identityEditTool) Description() string {
	return "Writes or appends to this ghost's identity.md, its durable self-description."
}

func (identityEditTool) Prompt() string { return "" }

func (identityEditTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string"},
			"action": {"type": "string", "enum": ["write", "append"], "description": "Defaults to append."}
		},
		"required": ["content"],
		"additionalProperties": false
	}`)
}

func (identityEditTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Content string `json:"content"`
		Action  string `json:"action"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}
	if args.Action == "" {
		args.Action = "append"
	}

	path := filepath.Join(tc.WorkspaceRoot, "identity.md")

	if args.Action == "append" {
		existing, err := os.ReadFile(path)
		if err == nil && len(existing) > 0 {
			args.Content = string(existing) + "\n\n---\n\n" + args.Content
		}
	}

	if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
		return errf(fmt.Sprintf("failed to write identity.md: %v", err))
	}
	return ok("Updated identity.md.")
}
