package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

const createFilePrompt = `## Creating Files

The create_file tool FAILS if the file already exists, to prevent accidental
overwrites. Parent directories must already exist; create them with
run_shell_command first if needed. To edit an existing file, use replace.`

type createFileTool struct{}

func newCreateFileTool() Tool { return createFileTool{} }

func (createFileTool) Name() string { return "create_file" }

func (createFileTool) Description() string {
	return "Creates a new file with the given content. Fails if the file already exists. Parent directories must exist."
}

func (createFileTool) Prompt() string { return createFilePrompt }

func (createFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "Path where the file should be created."},
			"content": {"type": "string", "description": "Content to write to the file."}
		},
		"required": ["file_path", "content"],
		"additionalProperties": false
	}`)
}

func (createFileTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	resolved, err := ResolveLocalPath(tc, args.FilePath)
	if err != nil {
		return errf(err.Error())
	}

	if _, statErr := os.Stat(resolved); statErr == nil {
		return errf(fmt.Sprintf("file %q already exists. Use the replace tool to modify existing files.", resolved))
	}

	if err := os.WriteFile(resolved, []byte(args.Content), 0o644); err != nil {
		return errf(fmt.Sprintf("failed to create file %q: %v", resolved, err))
	}

	lines := 0
	if args.Content != "" {
		lines = strings.Count(args.Content, "\n") + 1
	}
	return ok(fmt.Sprintf("Successfully created file %q (%d bytes, %d lines).", resolved, len(args.Content), lines))
}
