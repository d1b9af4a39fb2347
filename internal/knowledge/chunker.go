package knowledge

import (
	"path/filepath"
	"regexp"
	"strings"
)

// RawChunk is a chunk of a document's content before it is persisted, still
// carrying its position-derived title but none of the storage identifiers.
type RawChunk struct {
	Title   string
	Content string
}

const (
	defaultChunkSize = 1200
	minChunkSize     = 80
)

// chunkMarkdown splits markdown body text on heading and paragraph
// boundaries: each `#`-prefixed line starts a new section, and within a
// section, blank-line-delimited paragraphs are merged up to a target chunk
// size. A document with no headings produces a single untitled section.
func chunkMarkdown(body string) []RawChunk {
	sections := splitMarkdownSections(body)
	var chunks []RawChunk
	for _, sec := range sections {
		chunks = append(chunks, mergeParagraphs(sec.title, sec.paragraphs)...)
	}
	if len(chunks) == 0 && strings.TrimSpace(body) != "" {
		chunks = append(chunks, RawChunk{Content: strings.TrimSpace(body)})
	}
	return chunks
}

var headingPattern = regexp.MustCompile(`^#{1,6}\s+(.*)$`)

type markdownSection struct {
	title      string
	paragraphs []string
}

func splitMarkdownSections(body string) []markdownSection {
	lines := strings.Split(body, "\n")
	var sections []markdownSection
	current := markdownSection{}
	var para strings.Builder

	flushPara := func() {
		text := strings.TrimSpace(para.String())
		if text != "" {
			current.paragraphs = append(current.paragraphs, text)
		}
		para.Reset()
	}

	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flushPara()
			if current.title != "" || len(current.paragraphs) > 0 {
				sections = append(sections, current)
			}
			current = markdownSection{title: strings.TrimSpace(m[1])}
			continue
		}
		if strings.TrimSpace(line) == "" {
			flushPara()
			continue
		}
		if para.Len() > 0 {
			para.WriteByte('\n')
		}
		para.WriteString(line)
	}
	flushPara()
	if current.title != "" || len(current.paragraphs) > 0 {
		sections = append(sections, current)
	}
	return sections
}

// mergeParagraphs accumulates a section's paragraphs into chunks no larger
// than defaultChunkSize; a final chunk shorter than minChunkSize is merged
// into the chunk before it rather than emitted on its own.
func mergeParagraphs(title string, paragraphs []string) []RawChunk {
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []RawChunk
	var builder strings.Builder

	flush := func() {
		text := strings.TrimSpace(builder.String())
		if text != "" {
			chunks = append(chunks, RawChunk{Title: title, Content: text})
		}
		builder.Reset()
	}

	for _, p := range paragraphs {
		if builder.Len() > 0 && builder.Len()+len(p)+2 > defaultChunkSize {
			flush()
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(p)
	}
	flush()

	// Merge a final runt chunk into its predecessor so titles don't end on a
	// fragment too small to carry useful lexical signal.
	if len(chunks) > 1 && len(chunks[len(chunks)-1].Content) < minChunkSize {
		last := chunks[len(chunks)-1]
		chunks = chunks[:len(chunks)-1]
		chunks[len(chunks)-1].Content += "\n\n" + last.Content
	}

	return chunks
}

// codeTopLevelPattern maps a language identifier to the regexp matching the
// start of a top-level declaration, used as a chunk boundary.
var codeTopLevelPattern = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^func\s|^type\s|^var\s|^const\s`),
	"python":     regexp.MustCompile(`^def\s|^class\s`),
	"javascript": regexp.MustCompile(`^function\s|^class\s|^export\s`),
	"typescript": regexp.MustCompile(`^function\s|^class\s|^export\s|^interface\s`),
	"rust":       regexp.MustCompile(`^pub\s|^fn\s|^impl\s|^struct\s|^enum\s|^trait\s`),
	"java":       regexp.MustCompile(`^(public|private|protected)\s.*\s(class|interface)\s|^\s*(public|private|protected).*\(`),
}

var extToLanguage = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".rs":   "rust",
	".java": "java",
}

// chunkCode splits source code on top-level declaration boundaries for
// languages it recognizes from path's extension. For an unrecognized
// extension, or when no boundary is ever found, it falls back to a single
// whole-file chunk — this is the "failure to parse" case the knowledge
// ingestion pipeline requires.
func chunkCode(content, path string) []RawChunk {
	lang, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return []RawChunk{{Title: "file", Content: content}}
	}
	pattern := codeTopLevelPattern[lang]

	lines := strings.Split(content, "\n")
	var boundaries []int
	for i, line := range lines {
		if pattern.MatchString(line) {
			boundaries = append(boundaries, i)
		}
	}
	if len(boundaries) == 0 {
		return []RawChunk{{Title: "file", Content: content}}
	}

	var chunks []RawChunk
	if boundaries[0] > 0 {
		preamble := strings.TrimSpace(strings.Join(lines[:boundaries[0]], "\n"))
		if preamble != "" {
			chunks = append(chunks, RawChunk{Title: "preamble", Content: preamble})
		}
	}
	for i, start := range boundaries {
		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1]
		}
		body := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
		if body == "" {
			continue
		}
		title := strings.TrimSpace(lines[start])
		if len(title) > 80 {
			title = title[:80]
		}
		chunks = append(chunks, RawChunk{Title: title, Content: body})
	}
	return chunks
}

// chunkFile dispatches to the markdown or code chunker by extension.
func chunkFile(content, path string) []RawChunk {
	if strings.ToLower(filepath.Ext(path)) == ".md" {
		return chunkMarkdown(content)
	}
	return chunkCode(content, path)
}

// withContextPrefix prepends "[prefix]" to a chunk's content, used when
// ingesting a reference file under a topic so queries about the topic match
// chunks whose raw text never mentions it. The source chunk is untouched.
func withContextPrefix(c RawChunk, prefix string) RawChunk {
	if prefix == "" {
		return c
	}
	return RawChunk{Title: c.Title, Content: prefix + "\n\n" + c.Content}
}

// withTagPrefixes prepends a "[tags: a, b]" line to the first chunk of a
// tagged note.
func withTagPrefixes(chunks []RawChunk, tags []string) []RawChunk {
	if len(chunks) == 0 || len(tags) == 0 {
		return chunks
	}
	prefix := "[tags: " + strings.Join(tags, ", ") + "]"
	out := make([]RawChunk, len(chunks))
	copy(out, chunks)
	out[0] = RawChunk{Title: out[0].Title, Content: prefix + "\n\n" + out[0].Content}
	return out
}
