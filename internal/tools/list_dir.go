package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

type listDirTool struct{}

func newListDirTool() Tool { return listDirTool{} }

func (listDirTool) Name() string { return "list_dir" }

func (listDirTool) Description() string {
	return "Lists the contents of a directory. Shows files and subdirectories with type indicators and file sizes."
}

func (listDirTool) Prompt() string { return "" }

func (listDirTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path to the directory to list."}
		},
		"required": ["path"],
		"additionalProperties": false
	}`)
}

func (listDirTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
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

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return errf(fmt.Sprintf("failed to read directory %q: %v", resolved, err))
	}

	var dirs []string
	var files []struct {
		name string
		size int64
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		} else {
			files = append(files, struct {
				name string
				size int64
			}{e.Name(), info.Size()})
		}
	}
	sort.Strings(dirs)
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	var b strings.Builder
	fmt.Fprintf(&b, "Contents of %q:\n\n", resolved)
	if len(dirs) == 0 && len(files) == 0 {
		b.WriteString("(empty directory)\n")
		return ok(b.String())
	}
	for _, d := range dirs {
		fmt.Fprintf(&b, "[DIR]  %s/\n", d)
	}
	for _, f := range files {
		fmt.Fprintf(&b, "[FILE] %-30s (%s)\n", f.name, formatSize(f.size))
	}
	fmt.Fprintf(&b, "\nTotal: %d directories, %d files\n", len(dirs), len(files))
	return ok(b.String())
}

func formatSize(bytes int64) string {
	units := []string{"bytes", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0 bytes"
	}
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", bytes, units[0])
	}
	return fmt.Sprintf("%.1f %s", size, units[unit])
}
