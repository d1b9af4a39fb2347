package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const grepSearchPrompt = `## Searching Code

search finds a regex pattern across files under a directory, skipping .git
and dotfiles. Case-insensitive by default; set case_sensitive to true for
exact-case matches. Use glob to restrict which files are scanned.`

const maxSearchMatches = 200

type grepSearchTool struct{}

func newGrepSearchTool() Tool { return grepSearchTool{} }

func (grepSearchTool) Name() string { return "search" }

func (grepSearchTool) Description() string {
	return "Searches for a regex pattern in files under a directory. Returns matching lines with file paths and line numbers."
}

func (grepSearchTool) Prompt() string { return grepSearchPrompt }

func (grepSearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Regular expression to search for."},
			"path": {"type": "string", "description": "Directory to search in. Defaults to the current working directory."},
			"glob": {"type": "string", "description": "Only search files whose name matches this glob, e.g. '*.go'."},
			"case_sensitive": {"type": "boolean", "description": "Match case exactly. Defaults to false."}
		},
		"required": ["pattern"],
		"additionalProperties": false
	}`)
}

func (grepSearchTool) Execute(ctx context.Context, tc *ToolContext, input json.RawMessage) (Result, error) {
	var args struct {
		Pattern       string `json:"pattern"`
		Path          string `json:"path"`
		Glob          string `json:"glob"`
		CaseSensitive bool   `json:"case_sensitive"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return errf("invalid input: " + err.Error())
	}
	if args.Path == "" {
		args.Path = "."
	}

	pattern := args.Pattern
	if !args.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errf("invalid pattern: " + err.Error())
	}

	resolved, err := ResolveLocalPath(tc, args.Path)
	if err != nil {
		return errf(err.Error())
	}

	var b strings.Builder
	count := 0
	walkErr := filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil || count >= maxSearchMatches {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if name == ".git" || (strings.HasPrefix(name, ".") && p != resolved) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if args.Glob != "" {
			if matched, _ := filepath.Match(args.Glob, name); !matched {
				return nil
			}
		}

		f, err := os.Open(p)
		if err != nil {
			return nil
		}
		defer f.Close()

		rel, relErr := filepath.Rel(resolved, p)
		if relErr != nil {
			rel = p
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() && count < maxSearchMatches {
			lineNo++
			line := scanner.Text()
			if re.MatchString(line) {
				fmt.Fprintf(&b, "%s:%d: %s\n", rel, lineNo, line)
				count++
			}
		}
		return nil
	})
	if walkErr != nil {
		return errf(fmt.Sprintf("failed to search %q: %v", resolved, walkErr))
	}

	if count == 0 {
		return ok(fmt.Sprintf("No matches for %q under %q.", args.Pattern, resolved))
	}
	suffix := ""
	if count >= maxSearchMatches {
		suffix = fmt.Sprintf("\n... (capped at %d matches)\n", maxSearchMatches)
	}
	return ok(fmt.Sprintf("%d match(es):\n%s%s", count, b.String(), suffix))
}
