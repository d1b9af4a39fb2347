package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

const findFilesPrompt = `## Finding Files

find_files locates files by glob pattern, recursively by default, skipping
.git and dotfiles. Use "*.go" for a bare extension match anywhere in the
tree, or a path-qualified pattern like "cmd/*.go" to scope the search. A
"**/" segment is dropped before matching, so "**/*.go" matches at any depth
but "cmd/**/*.go" matches only files directly under cmd.`

type findFilesTool struct{}

func newFindFilesTool() Tool { return findFilesTool{} }

func (findFilesTool) Name() string { return "find_files" }

func (findFilesTool) Description() string {
	return "Finds files matching a glob pattern. Skips .git and dotfiles. Returns a list of file paths."
}

func (findFilesTool) Prompt() string { return findFilesPrompt }

func (findFilesTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "File name pattern, e.g. '*.go' or 'cmd/*.go'."},
			"path": {"type": "string", "description": "Directory to search in. Defaults to the current working directory."}
		},
		"required": ["pattern"],
		"additionalProperties": false
	}`)
}

func (findFilesTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}
	if args.Path == "" {
		args.Path = "."
	}

	resolved, err := ResolveLocalPath(tc, args.Path)
	if err != nil {
		return errf(err.Error())
	}

	var matches []string
	walkErr := filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if name == ".git" || strings.HasPrefix(name, ".") && p != resolved {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(resolved, p)
		if err != nil {
			rel = p
		}
		if matchesGlob(args.Pattern, rel, name) {
			matches = append(matches, rel)
		}
		return nil
	})
	if walkErr != nil {
		return errf(fmt.Sprintf("failed to search %q: %v", resolved, walkErr))
	}

	sort.Strings(matches)
	if len(matches) == 0 {
		return ok(fmt.Sprintf("No files matching %q under %q.", args.Pattern, resolved))
	}
	return ok(fmt.Sprintf("%d match(es):\n%s", len(matches), strings.Join(matches, "\n")))
}

// matchesGlob matches a bare pattern ("*.go") against just the basename. A
// path-qualified pattern (containing "/" or a leading "**") has every "**/"
// and a leading "**" removed, then is matched against the relative path and,
// failing that, the basename; "**" itself spans no directory levels.
func matchesGlob(pattern, relPath, base string) bool {
	if !strings.ContainsAny(pattern, "/") && !strings.HasPrefix(pattern, "**") {
		matched, _ := filepath.Match(pattern, base)
		return matched
	}
	normalized := strings.ReplaceAll(pattern, "**/", "")
	normalized = strings.TrimPrefix(normalized, "**")
	matched, _ := filepath.Match(normalized, relPath)
	if matched {
		return true
	}
	matched, _ = filepath.Match(normalized, base)
	return matched
}
