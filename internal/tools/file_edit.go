package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type fileEditTool struct{}

func newFileEditTool() Tool { return fileEditTool{} }

func (fileEditTool) Name() string { return "replace" }

func (fileEditTool) Description() string {
	return "Replaces text within a file. By default, replaces a single occurrence; set expected_replacements to replace more. old_string must match the file content exactly, including whitespace."
}

func (fileEditTool) Prompt() string { return "" }

func (fileEditTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "Path to the file to modify."},
			"old_string": {"type": "string", "description": "The exact literal text to replace."},
			"new_string": {"type": "string", "description": "The new text to insert in place of old_string."},
			"expected_replacements": {"type": "integer", "minimum": 1, "description": "Number of replacements expected. Defaults to 1."}
		},
		"required": ["file_path", "old_string", "new_string"],
		"additionalProperties": false
	}`)
}

func (fileEditTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		FilePath              string `json:"file_path"`
		OldString             string `json:"old_string"`
		NewString             string `json:"new_string"`
		ExpectedReplacements  int    `json:"expected_replacements"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}
	if args.ExpectedReplacements == 0 {
		args.ExpectedReplacements = 1
	}

	resolved, err := ResolveLocalPath(tc, args.FilePath)
	if err != nil {
		return errf(err.Error())
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return errf(fmt.Sprintf("failed to read file %q: %v", resolved, err))
	}
	content := string(raw)

	occurrences := strings.Count(content, args.OldString)
	if occurrences == 0 {
		return errf(fmt.Sprintf("could not find old_string in file %q. Ensure exact match including whitespace.", resolved))
	}
	if occurrences != args.ExpectedReplacements {
		return errf(fmt.Sprintf(
			"found %d occurrences of old_string, but expected %d. Set expected_replacements, or add more context to old_string to target a specific occurrence.",
			occurrences, args.ExpectedReplacements))
	}

	newContent := strings.ReplaceAll(content, args.OldString, args.NewString)
	if err := os.WriteFile(resolved, []byte(newContent), 0o644); err != nil {
		return errf(fmt.Sprintf("failed to write file %q: %v", resolved, err))
	}

	return ok(fmt.Sprintf("Replaced %d occurrence(s) in %q.", occurrences, resolved))
}
