package knowledge

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

const (
	archetypeReferenceCode       = "reference-code"
	archetypeReferenceTopic      = "reference-topic"
	archetypeReferenceCollection = "reference-collection"
)

// ingestResult is a parsed-and-chunked file, not yet written to storage.
// ParentTitle carries the front matter's "parent" reference by title; the
// caller resolves it to a note id once the parent is known to exist, the
// same deferred-resolution approach storage.LinkPut/ResolveLinks use for
// [[wiki links]].
type ingestResult struct {
	Note        *models.Note
	Chunks      []RawChunk
	Links       []string
	ParentTitle string
}

// ingestMarkdown ingests a note file (shared, ghost-private, ghost-projects,
// or shared-reference "_index.md" collection) from its front matter and
// body.
func ingestMarkdown(scope models.Scope, ownerGhost, path, raw string) (ingestResult, error) {
	parsed, err := parseNote(raw)
	if err != nil {
		return ingestResult{}, err
	}

	note := &models.Note{
		Title:      parsed.Front.Title,
		Archetype:  parsed.Front.Archetype,
		Path:       path,
		Scope:      scope,
		OwnerGhost: ownerGhost,
		TrustScore: parsed.Front.TrustScore,
		CreatedBy: models.CreatedBy{
			Ghost: parsed.Front.CreatedByGhost,
			Model: parsed.Front.CreatedByModel,
			Time:  time.Now(),
		},
		Tags:        parsed.Front.Tags,
		ContentHash: contentHash(raw),
	}
	if note.Title == "" {
		note.Title = titleFromPath(path)
	}
	if strings.HasSuffix(strings.ToLower(path), "_index.md") && note.Archetype == "" {
		note.Archetype = archetypeReferenceCollection
	}

	chunks := withTagPrefixes(chunkMarkdown(parsed.Body), parsed.Front.Tags)

	return ingestResult{
		Note:        note,
		Chunks:      chunks,
		Links:       parsed.Links,
		ParentTitle: parsed.Front.Parent,
	}, nil
}

// ingestReferenceTopic ingests a reference topic's own topic.md, the note
// that anchors a set of imported reference files.
func ingestReferenceTopic(path, raw string) (ingestResult, error) {
	res, err := ingestMarkdown(models.ScopeSharedReference, "", path, raw)
	if err != nil {
		return ingestResult{}, err
	}
	if res.Note.Archetype == "" {
		res.Note.Archetype = archetypeReferenceTopic
	}
	return res, nil
}

// ingestReferenceFile ingests one file fetched into a reference topic: a
// synthetic, system-authored note with high default trust, chunked by
// extension (markdown heading/paragraph chunker, or the code chunker
// falling back to a whole-file chunk). When contextPrefix is non-empty
// (typically "[TopicTitle]" or "[TopicTitle/subdir]") it is prepended to
// every chunk's content before hashing, so queries about the topic find
// file chunks whose raw text never mentions it; the file on disk is left
// untouched.
func ingestReferenceFile(path, raw, title string, role models.ReferenceRole, contextPrefix string) ingestResult {
	archetype := archetypeReferenceDocs
	if role == models.ReferenceRoleCode {
		archetype = archetypeReferenceCode
	}

	note := &models.Note{
		Title:      title,
		Archetype:  archetype,
		Path:       path,
		Scope:      models.ScopeSharedReference,
		TrustScore: 10,
		CreatedBy: models.CreatedBy{
			Ghost: "system",
			Model: "system",
			Time:  time.Now(),
		},
		ContentHash: contentHash(raw),
	}

	chunks := chunkFile(raw, path)
	if contextPrefix != "" {
		enriched := make([]RawChunk, len(chunks))
		for i, c := range chunks {
			enriched[i] = withContextPrefix(c, contextPrefix)
		}
		chunks = enriched
	}

	return ingestResult{Note: note, Chunks: chunks}
}

var diaryFilenamePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.md$`)

// ingestDiaryEntry ingests a ghost's diary page. The filename must be
// YYYY-MM-DD.md; the note title is the date itself and the note is
// reconciled under a deterministic path so re-ingesting the same file
// upserts rather than duplicates.
func ingestDiaryEntry(ownerGhost, path, raw string) (ingestResult, error) {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	m := diaryFilenamePattern.FindStringSubmatch(base)
	if m == nil {
		return ingestResult{}, fmt.Errorf("knowledge: diary filename %q is not YYYY-MM-DD.md", base)
	}
	date := m[1]

	note := &models.Note{
		Title:      date,
		Path:       path,
		Scope:      models.ScopeGhostDiary,
		OwnerGhost: ownerGhost,
		TrustScore: 10,
		CreatedBy: models.CreatedBy{
			Ghost: ownerGhost,
			Model: "unknown",
			Time:  time.Now(),
		},
		ContentHash: contentHash(raw),
	}

	return ingestResult{
		Note:   note,
		Chunks: chunkMarkdown(raw),
		Links:  extractLinks(raw),
	}, nil
}

func titleFromPath(path string) string {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	return strings.TrimSuffix(base, ".md")
}
