package content

import (
	"fmt"
	"regexp"
	"sort"
)

var (
	varPattern     = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
	includePattern = regexp.MustCompile(`\{\{\s*include\s+"([^"]+)"\s*\}\}`)
)

const maxIncludeDepth = 8

// resolveIncludes expands every `{{ include "path" }}` directive in text
// against read, recursively, up to maxIncludeDepth. It never escapes
// whatever root read enforces — that boundary is read's job.
func resolveIncludes(text string, read func(path string) (string, error)) (string, error) {
	for depth := 0; depth < maxIncludeDepth; depth++ {
		matches := includePattern.FindAllStringSubmatchIndex(text, -1)
		if len(matches) == 0 {
			return text, nil
		}
		// Replace from the end so earlier indices stay valid.
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			path := text[m[2]:m[3]]
			included, err := read(path)
			if err != nil {
				return "", fmt.Errorf("%w: include %q: %v", ErrInvalid, path, err)
			}
			text = text[:m[0]] + included + text[m[1]:]
		}
	}
	return "", fmt.Errorf("%w: include nesting exceeds %d levels", ErrInvalid, maxIncludeDepth)
}

// usedVars returns the set of plain {{name}} references in text, excluding
// the include directive which is handled separately and resolved earlier.
func usedVars(text string) []string {
	seen := map[string]bool{}
	for _, m := range varPattern.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// validateVars enforces fail-closed variable hygiene: every variable the
// text references must be declared, and every declared variable must be
// referenced somewhere in the text.
func validateVars(id string, declared, used []string) error {
	declaredSet := map[string]bool{}
	for _, d := range declared {
		declaredSet[d] = true
	}
	usedSet := map[string]bool{}
	for _, u := range used {
		usedSet[u] = true
	}
	for _, u := range used {
		if !declaredSet[u] {
			return fmt.Errorf("%w: %s references undeclared variable %q", ErrInvalid, id, u)
		}
	}
	for _, d := range declared {
		if !usedSet[d] {
			return fmt.Errorf("%w: %s declares unused variable %q", ErrInvalid, id, d)
		}
	}
	return nil
}

// render substitutes every {{name}} with vars[name]; names absent from vars
// are left untouched since validateVars already guaranteed the template
// only references declared (and therefore always-supplied) variables.
func render(text string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(text, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

func pairsToMap(pairs [][2]string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p[0]] = p[1]
	}
	return out
}
