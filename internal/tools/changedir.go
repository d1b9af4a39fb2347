package tools

import (
	"context"
	"encoding/json"
	"os"
)

type changeDirectoryTool struct{}

func newChangeDirectoryTool() Tool { return changeDirectoryTool{} }

func (changeDirectoryTool) Name() string { return "change_directory" }

func (changeDirectoryTool) Description() string {
	return "Changes the current working directory for subsequent tool calls in this session."
}

func (changeDirectoryTool) Prompt() string { return "" }

func (changeDirectoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory to change into (absolute or relative to the current working directory)."}
		},
		"required": ["path"],
		"additionalProperties": false
	}`)
}

func (changeDirectoryTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}

	resolved, err := ResolveLocalPath(tc, args.Path)
	if err != nil {
		return errf(err.Error())
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return errf("cannot change directory: " + err.Error())
	}
	if !info.IsDir() {
		return errf(resolved + " is not a directory")
	}

	tc.SetCwd(resolved)
	return ok("Current directory is now " + resolved)
}
