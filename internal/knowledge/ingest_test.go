package knowledge

import (
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/pkg/models"
)

func TestIngestMarkdown_DefaultsTitleFromPath(t *testing.T) {
	res, err := ingestMarkdown(models.ScopeShared, "", "runbooks/deploy.md", "no front matter here")
	if err != nil {
		t.Fatalf("ingestMarkdown: %v", err)
	}
	if res.Note.Title != "deploy" {
		t.Errorf("Title = %q, want %q", res.Note.Title, "deploy")
	}
}

func TestIngestMarkdown_IndexFileDefaultsToCollectionArchetype(t *testing.T) {
	res, err := ingestMarkdown(models.ScopeSharedReference, "", "topics/foo/_index.md", "anchor body")
	if err != nil {
		t.Fatalf("ingestMarkdown: %v", err)
	}
	if res.Note.Archetype != archetypeReferenceCollection {
		t.Errorf("Archetype = %q, want %q", res.Note.Archetype, archetypeReferenceCollection)
	}
}

func TestIngestMarkdown_ExplicitArchetypeNotOverridden(t *testing.T) {
	raw := "+++\narchetype = \"custom\"\n+++\nbody"
	res, err := ingestMarkdown(models.ScopeShared, "", "notes/_index.md", raw)
	if err != nil {
		t.Fatalf("ingestMarkdown: %v", err)
	}
	if res.Note.Archetype != "custom" {
		t.Errorf("Archetype = %q, want explicit value preserved", res.Note.Archetype)
	}
}

func TestIngestMarkdown_TagPrefixOnlyOnFirstChunk(t *testing.T) {
	raw := "+++\ntags = [\"ops\"]\n+++\n# One\n\nfirst\n\n# Two\n\nsecond"
	res, err := ingestMarkdown(models.ScopeShared, "", "n.md", raw)
	if err != nil {
		t.Fatalf("ingestMarkdown: %v", err)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(res.Chunks), res.Chunks)
	}
	if !strings.HasPrefix(res.Chunks[0].Content, "[tags: ops]") {
		t.Errorf("first chunk should carry the tag prefix, got %q", res.Chunks[0].Content)
	}
	if strings.Contains(res.Chunks[1].Content, "[tags:") {
		t.Errorf("second chunk should not carry the tag prefix, got %q", res.Chunks[1].Content)
	}
}

func TestIngestReferenceFile_ContextPrefixAppliedToEveryChunk(t *testing.T) {
	raw := "# One\n\nfirst\n\n# Two\n\nsecond"
	res := ingestReferenceFile("docs/guide.md", raw, "my-topic/docs/guide.md", models.ReferenceRoleDocs, "[My Topic]")
	if len(res.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(res.Chunks))
	}
	for i, c := range res.Chunks {
		if !strings.HasPrefix(c.Content, "[My Topic]\n\n") {
			t.Errorf("chunk %d missing context prefix: %q", i, c.Content)
		}
	}
	if res.Note.TrustScore != 10 {
		t.Errorf("TrustScore = %d, want 10 for a system-authored reference file", res.Note.TrustScore)
	}
	if res.Note.Archetype != archetypeReferenceDocs {
		t.Errorf("Archetype = %q, want %q", res.Note.Archetype, archetypeReferenceDocs)
	}
}

func TestIngestReferenceFile_CodeRoleArchetype(t *testing.T) {
	res := ingestReferenceFile("pkg/x.go", "func A() {}", "topic/pkg/x.go", models.ReferenceRoleCode, "")
	if res.Note.Archetype != archetypeReferenceCode {
		t.Errorf("Archetype = %q, want %q", res.Note.Archetype, archetypeReferenceCode)
	}
}

func TestIngestDiaryEntry_RejectsBadFilename(t *testing.T) {
	if _, err := ingestDiaryEntry("atlas", "diary/notes.md", "body"); err == nil {
		t.Error("expected an error for a non-YYYY-MM-DD filename")
	}
}

func TestIngestDiaryEntry_AcceptsDatedFilename(t *testing.T) {
	res, err := ingestDiaryEntry("atlas", "diary/2026-01-15.md", "today's entry with [[A Note]]")
	if err != nil {
		t.Fatalf("ingestDiaryEntry: %v", err)
	}
	if res.Note.Title != "2026-01-15" {
		t.Errorf("Title = %q", res.Note.Title)
	}
	if res.Note.Scope != models.ScopeGhostDiary {
		t.Errorf("Scope = %q, want ghost-diary", res.Note.Scope)
	}
	if res.Note.OwnerGhost != "atlas" {
		t.Errorf("OwnerGhost = %q", res.Note.OwnerGhost)
	}
	if len(res.Links) != 1 || res.Links[0] != "A Note" {
		t.Errorf("Links = %+v", res.Links)
	}
}

func TestIngestReferenceTopic_DefaultsArchetype(t *testing.T) {
	res, err := ingestReferenceTopic("topics/foo/topic.md", "+++\ntitle = \"Foo\"\n+++\ndescription")
	if err != nil {
		t.Fatalf("ingestReferenceTopic: %v", err)
	}
	if res.Note.Archetype != archetypeReferenceTopic {
		t.Errorf("Archetype = %q, want %q", res.Note.Archetype, archetypeReferenceTopic)
	}
	if res.Note.Scope != models.ScopeSharedReference {
		t.Errorf("Scope = %q", res.Note.Scope)
	}
}

func TestTitleFromPath(t *testing.T) {
	cases := map[string]string{
		"a/b/c.md": "c",
		"top.md":   "top",
	}
	for path, want := range cases {
		if got := titleFromPath(path); got != want {
			t.Errorf("titleFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
