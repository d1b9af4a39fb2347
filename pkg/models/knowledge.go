package models

import "time"

// Scope partitions the note universe.
type Scope string

const (
	ScopeShared          Scope = "shared"
	ScopeGhostPrivate    Scope = "ghost-private"
	ScopeGhostProjects   Scope = "ghost-projects"
	ScopeGhostDiary      Scope = "ghost-diary"
	ScopeSharedReference Scope = "shared-reference"
)

// AllScopes lists every partition, used when a search is not scope-restricted.
func AllScopes() []Scope {
	return []Scope{ScopeShared, ScopeGhostPrivate, ScopeGhostProjects, ScopeGhostDiary, ScopeSharedReference}
}

// CreatedBy records the provenance of a note.
type CreatedBy struct {
	Ghost string    `json:"ghost"`
	Model string    `json:"model"`
	Time  time.Time `json:"time"`
}

// Note is a knowledge-store entry backed by a markdown file on disk.
type Note struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Archetype        string     `json:"archetype"`
	Path             string     `json:"path"`
	Scope            Scope      `json:"scope"`
	OwnerGhost       string     `json:"owner_ghost,omitempty"` // empty for shared notes
	TrustScore       int        `json:"trust_score"`
	CreatedBy        CreatedBy  `json:"created_by"`
	LastValidatedAt  *time.Time `json:"last_validated_at,omitempty"`
	LastValidatedBy  string     `json:"last_validated_by,omitempty"`
	Version          int        `json:"version"`
	ParentID         *int64     `json:"parent_id,omitempty"`
	Comments         []string   `json:"comments,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	ContentHash      string     `json:"content_hash"`
}

// Chunk is a retrieval unit over a note's body.
type Chunk struct {
	ID               int64  `json:"id"`
	NoteID           int64  `json:"note_id"`
	Index            int    `json:"index"`
	Title            string `json:"title"`
	Content          string `json:"content"` // may carry a [Topic/subdir] prefix
	ContentHash      string `json:"content_hash"`
	EmbeddingModel   string `json:"embedding_model"`
	EmbeddingDim     int    `json:"embedding_dim"`
}

// ReferenceRole distinguishes documentation from code within a topic.
type ReferenceRole string

const (
	ReferenceRoleDocs ReferenceRole = "docs"
	ReferenceRoleCode ReferenceRole = "code"
)

// ReferenceStatus influences a reference file's search ranking.
type ReferenceStatus string

const (
	ReferenceActive      ReferenceStatus = "active"
	ReferenceProblematic ReferenceStatus = "problematic"
	ReferenceObsolete    ReferenceStatus = "obsolete"
)

// ReferenceFile links an ingested external file to its topic note.
type ReferenceFile struct {
	TopicID    int64           `json:"topic_id"` // note id of the topic
	FileNoteID int64           `json:"file_note_id"`
	RelPath    string          `json:"rel_path"`
	Role       ReferenceRole   `json:"role"`
	SourceURL  string          `json:"source_url"`
	SourceType string          `json:"source_type"` // git, web, crawl
	FetchedAt  time.Time       `json:"fetched_at"`
	Status     ReferenceStatus `json:"status"`
}

// Link is a (source, target-by-title) edge, resolved lazily to a target id
// within the same owner scope.
type Link struct {
	SourceID    int64  `json:"source_id"`
	TargetTitle string `json:"target_title"`
	TargetID    *int64 `json:"target_id,omitempty"`
}

// NoteSummary is a hydrated search hit.
type NoteSummary struct {
	Note      *Note    `json:"note"`
	ChunkID   int64    `json:"chunk_id"`
	Snippet   string   `json:"snippet"`
	Score     float64  `json:"score"`
	Outgoing  []*Note  `json:"outgoing,omitempty"`
	Incoming  []*Note  `json:"incoming,omitempty"`
	Parents   []*Note  `json:"parents,omitempty"`
	TagNotes  []*Note  `json:"tag_notes,omitempty"`
}

// TopicSource describes one external source to import into a reference topic.
type TopicSource struct {
	Type       string `json:"type"` // git, web, crawl
	URL        string `json:"url"`
	Ref        string `json:"ref,omitempty"`
	PathFilter string `json:"path_filter,omitempty"`
	Role       ReferenceRole `json:"role,omitempty"`
	CrawlDepth int    `json:"crawl_depth,omitempty"`
	CrawlPages int    `json:"crawl_pages,omitempty"`
}

// TopicCreateRequest is phase-1 input to the reference-topic importer.
type TopicCreateRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Sources     []TopicSource `json:"sources"`
	Tags        []string      `json:"tags,omitempty"`
	TrustScore  int           `json:"trust_score"`
}

// TopicApprovalSummary is returned to the caller as the approval payload.
type TopicApprovalSummary struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}
