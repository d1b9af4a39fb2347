package fetch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// docExtensions and codeExtensions decide which files a git source pulls in
// when the caller didn't ask for everything: a source's Role (docs or code)
// filters what a shallow clone actually ingests rather than every vendored
// asset in the tree.
var (
	docExtensions  = map[string]bool{".md": true, ".mdx": true, ".rst": true, ".txt": true}
	codeExtensions = map[string]bool{
		".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
		".rs": true, ".java": true, ".c": true, ".h": true, ".cpp": true, ".rb": true,
	}
)

// Git performs a shallow clone of repoURL (optionally at ref), then returns
// every file under pathFilter (or the whole tree, if empty) matching the
// given extension set. The clone is removed before returning.
func Git(ctx context.Context, repoURL, ref, pathFilter string, extensions map[string]bool) ([]File, error) {
	dir, err := os.MkdirTemp("", "knowledge-git-*")
	if err != nil {
		return nil, fmt.Errorf("fetch: temp clone dir: %w", err)
	}
	defer os.RemoveAll(dir)

	args := []string{"clone", "--depth", "1", "--single-branch"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, repoURL, dir)

	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("fetch: git clone %s: %w: %s", repoURL, err, strings.TrimSpace(string(out)))
	}

	root := dir
	if pathFilter != "" {
		root = filepath.Join(dir, pathFilter)
	}

	var files []File
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if extensions != nil && !extensions[ext] {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		files = append(files, File{
			Path:      rel,
			Content:   string(content),
			SourceURL: repoURL,
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("fetch: walk clone of %s: %w", repoURL, walkErr)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("fetch: git source %s (filter %q) produced no files", repoURL, pathFilter)
	}
	return files, nil
}

// ExtensionsForRole returns the default extension allow-list for a source
// role: docs pulls markdown/text, code pulls recognized source extensions.
// An unrecognized role pulls everything.
func ExtensionsForRole(role string) map[string]bool {
	switch role {
	case "docs":
		return docExtensions
	case "code":
		return codeExtensions
	default:
		return nil
	}
}
