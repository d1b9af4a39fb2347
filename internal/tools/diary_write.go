package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var diaryDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type diaryWriteTool struct{}

func newDiaryWriteTool() Tool { return diaryWriteTool{} }

func (diaryWriteTool) Name() string { return "diary_write" }

func (diaryWriteTool) Description() string {
	return "Writes or appends to this ghost's diary entry for a given date (YYYY-MM-DD)."
}

func (diaryWriteTool) Prompt() string { return "" }

func (diaryWriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Entry date, YYYY-MM-DD."},
			"content": {"type": "string"},
			"action": {"type": "string", "enum": ["write", "append"], "description": "write replaces the entry, append adds below a separator. Defaults to append."}
		},
		"required": ["date", "content"],
		"additionalProperties": false
	}`)
}

func (diaryWriteTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Date    string `json:"date"`
		Content string `json:"content"`
		Action  string `json:"action"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}
	if !diaryDatePattern.MatchString(args.Date) {
		return errf(fmt.Sprintf("date %q must be in YYYY-MM-DD format", args.Date))
	}
	if args.Action == "" {
		args.Action = "append"
	}

	path := filepath.Join(tc.WorkspaceRoot, "diary", args.Date+".md")

	if args.Action == "append" {
		existing, err := os.ReadFile(path)
		if err == nil && len(existing) > 0 {
			args.Content = string(existing) + "\n\n---\n\n" + args.Content
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errf(fmt.Sprintf("failed to create diary directory: %v", err))
	}
	if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
		return errf(fmt.Sprintf("failed to write diary entry: %v", err))
	}
	return ok(fmt.Sprintf("Wrote diary entry for %s.", args.Date))
}
