package content

import (
	"strings"
)

// normalizeIncludePath resolves a relative include path against a conceptual
// prompts root, popping a segment on ".." and dropping "." / empty segments.
// It never produces a path above the root: excess ".." segments are simply
// absorbed once the stack is empty.
func normalizeIncludePath(path string) string {
	stack := []string{}
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ".", "":
			// skip
		default:
			stack = append(stack, part)
		}
	}
	return strings.Join(stack, "/")
}

// readEmbeddedPrompt resolves an {{ include "..." }} path against the
// embedded prompts bundle: a bare filename is looked up directly, anything
// else is normalized against the bundle root first.
func readEmbeddedPrompt(path string) (string, error) {
	if data, err := promptsFS.ReadFile(promptsRoot + "/" + path); err == nil {
		return string(data), nil
	}
	normalized := normalizeIncludePath(path)
	data, err := promptsFS.ReadFile(promptsRoot + "/" + normalized)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
