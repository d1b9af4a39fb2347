package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type readFileTool struct{}

func newReadFileTool() Tool { return readFileTool{} }

func (readFileTool) Name() string { return "read_file" }

func (readFileTool) Description() string {
	return "Reads the contents of a file. Returns the file content with line numbers. Supports reading specific line ranges with offset and limit."
}

func (readFileTool) Prompt() string { return "" }

func (readFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"file_path": {"type": "string", "description": "Path to the file to read."},
			"offset": {"type": "integer", "minimum": 1, "description": "Line number to start reading from (1-indexed). Defaults to 1."},
			"limit": {"type": "integer", "minimum": 1, "maximum": 10000, "description": "Maximum number of lines to read. Defaults to 1000."}
		},
		"required": ["file_path"],
		"additionalProperties": false
	}`)
}

func (readFileTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		FilePath string `json:"file_path"`
		Offset   int    `json:"offset"`
		Limit    int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}
	if args.Offset == 0 {
		args.Offset = 1
	}
	if args.Limit == 0 {
		args.Limit = 1000
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
	if content == "" {
		return ok(fmt.Sprintf("file %q is empty.", resolved))
	}
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	total := len(lines)

	start := args.Offset - 1
	if start >= total {
		return errf(fmt.Sprintf("offset %d is beyond file length (%d lines)", args.Offset, total))
	}
	end := start + args.Limit
	if end > total {
		end = total
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- File: %s (lines %d-%d of %d) ---\n", resolved, start+1, end, total)
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%6d | %s\n", i+1, lines[i])
	}
	if end < total {
		fmt.Fprintf(&b, "\n... (%d more lines, use offset=%d to continue)\n", total-end, end+1)
	}
	return ok(b.String())
}
