package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// noteFrontMatter is the "+++ ... +++" header of a note markdown file,
// matching the delimiter convention internal/content uses for prompt
// templates.
type noteFrontMatter struct {
	Title          string   `toml:"title"`
	Archetype      string   `toml:"archetype"`
	TrustScore     int      `toml:"trust_score"`
	Tags           []string `toml:"tags"`
	Parent         string   `toml:"parent"`
	CreatedByGhost string   `toml:"created_by_ghost"`
	CreatedByModel string   `toml:"created_by_model"`
}

// parsedNote is a note file split into its front matter, body, and the
// wiki-style [[links]] found in the body.
type parsedNote struct {
	Front noteFrontMatter
	Body  string
	Links []string
}

// parseNote splits "+++\n...toml...\n+++\nbody" and extracts [[links]] from
// the body. A file with no front matter delimiter is treated as a bare body
// with zero-value front matter (the diary-entry case).
func parseNote(raw string) (parsedNote, error) {
	front, body, hasFront := splitFrontMatter(raw)
	var fm noteFrontMatter
	if hasFront {
		if err := toml.Unmarshal([]byte(front), &fm); err != nil {
			return parsedNote{}, fmt.Errorf("knowledge: front matter: %w", err)
		}
	} else {
		body = raw
	}
	if fm.TrustScore == 0 {
		fm.TrustScore = 5
	}
	return parsedNote{Front: fm, Body: body, Links: extractLinks(body)}, nil
}

func splitFrontMatter(text string) (front, body string, ok bool) {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "+++" {
		return "", text, false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "+++" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", text, false
}

var linkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)

// extractLinks finds every [[Target]] or [[Target|alias]] wiki-link in body
// and returns the target titles, in order of appearance, deduplicated.
func extractLinks(body string) []string {
	matches := linkPattern.FindAllStringSubmatch(body, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		target := strings.TrimSpace(m[1])
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}

// contentHash is the SHA-256 hex digest used to detect unchanged notes
// during reconciliation and unchanged chunk content during re-embedding.
func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
