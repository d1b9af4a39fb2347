package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/internal/knowledge/fetch"
	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

// NoteCreateRequest is the caller-facing input to CreateNote: everything a
// ghost supplies when authoring a note directly (as opposed to a file
// reconciled off disk).
type NoteCreateRequest struct {
	Scope      models.Scope
	OwnerGhost string
	Title      string
	Body       string
	Tags       []string
	Archetype  string
	TrustScore int
	Ghost      string
	Model      string
}

// CreateNote writes a new note, chunking and embedding its body the same
// way a reconciled file would be.
func (e *Engine) CreateNote(ctx context.Context, req NoteCreateRequest) (*models.Note, error) {
	trust := req.TrustScore
	if trust == 0 {
		trust = 5
	}

	note := &models.Note{
		Title:      req.Title,
		Archetype:  req.Archetype,
		Path:       req.Title + ".md",
		Scope:      req.Scope,
		OwnerGhost: req.OwnerGhost,
		TrustScore: trust,
		CreatedBy: models.CreatedBy{
			Ghost: req.Ghost,
			Model: req.Model,
			Time:  time.Now(),
		},
		Tags:        req.Tags,
		ContentHash: contentHash(req.Body),
	}

	id, err := e.store.NoteCreate(ctx, note)
	if err != nil {
		return nil, err
	}

	chunks := withTagPrefixes(chunkMarkdown(req.Body), req.Tags)
	if err := e.embedAndStore(ctx, id, chunks); err != nil {
		return nil, err
	}
	for _, target := range extractLinks(req.Body) {
		if err := e.store.LinkPut(ctx, id, target); err != nil {
			return nil, err
		}
	}
	if _, err := e.store.ResolveLinks(ctx, req.Scope, req.OwnerGhost); err != nil {
		return nil, err
	}

	return e.store.NoteGet(ctx, id)
}

// UpdateNote rewrites a note's body: it re-chunks, re-embeds, and bumps the
// note's version and content hash. Tags and trust score are left as they
// are; use CreateNote's sibling operations for those.
func (e *Engine) UpdateNote(ctx context.Context, id int64, body string) (*models.Note, error) {
	note, err := e.store.NoteGet(ctx, id)
	if err != nil {
		return nil, err
	}

	hash := contentHash(body)
	if hash == note.ContentHash {
		return note, nil
	}
	if err := e.store.NoteUpdateContent(ctx, id, hash); err != nil {
		return nil, err
	}

	chunks := withTagPrefixes(chunkMarkdown(body), note.Tags)
	if err := e.embedAndStore(ctx, id, chunks); err != nil {
		return nil, err
	}
	for _, target := range extractLinks(body) {
		if err := e.store.LinkPut(ctx, id, target); err != nil {
			return nil, err
		}
	}
	if _, err := e.store.ResolveLinks(ctx, note.Scope, note.OwnerGhost); err != nil {
		return nil, err
	}

	return e.store.NoteGet(ctx, id)
}

// ValidateNote records that a ghost has reviewed a note and found it still
// accurate.
func (e *Engine) ValidateNote(ctx context.Context, id int64, by string) error {
	return e.store.NoteValidate(ctx, id, by, time.Now())
}

// CommentNote appends a free-form comment to a note (e.g. a dissenting
// opinion from a ghost who didn't write it).
func (e *Engine) CommentNote(ctx context.Context, id int64, comment string) error {
	return e.store.NoteComment(ctx, id, comment)
}

// DeleteNote removes a note and everything that hangs off it.
func (e *Engine) DeleteNote(ctx context.Context, id int64) error {
	return e.store.NoteDelete(ctx, id)
}

// SetNoteTags replaces a note's tag set outright.
func (e *Engine) SetNoteTags(ctx context.Context, noteID int64, tags []string) error {
	return e.replaceTags(ctx, noteID, tags)
}

// GetNote fetches a single note's metadata by id; the body is not included
// (GetNoteChunks returns it as chunks).
func (e *Engine) GetNote(ctx context.Context, id int64) (*models.Note, error) {
	return e.store.NoteGet(ctx, id)
}

// GetNoteChunks returns a note's chunks in index order, the pieces a
// knowledge_get call joins back into the note's full body.
func (e *Engine) GetNoteChunks(ctx context.Context, id int64) ([]*models.Chunk, error) {
	return e.store.ChunksForNote(ctx, id)
}

// GetNoteByTitle fetches a note by its scope, owner, and title.
func (e *Engine) GetNoteByTitle(ctx context.Context, scope models.Scope, ownerGhost, title string) (*models.Note, error) {
	return e.store.NoteGetByTitle(ctx, scope, ownerGhost, title)
}

// SaveReferenceFile adds (or replaces) a single file under an existing
// reference topic without going through the fetch pipeline — a ghost
// hand-authoring a note directly into a topic's file set. The topic must
// already exist: creating one implicitly here would bypass the two-phase
// approval every other path into shared-reference goes through.
func (e *Engine) SaveReferenceFile(ctx context.Context, topicTitle, relPath, content string, role models.ReferenceRole) (int64, error) {
	topic, err := e.store.NoteGetByTitle(ctx, models.ScopeSharedReference, "", topicTitle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, fmt.Errorf("knowledge: reference topic %q does not exist, create it first", topicTitle)
		}
		return 0, err
	}

	f := fetch.File{Path: relPath, Content: content}
	return e.upsertReferenceFile(ctx, topic.ID, topicTitle, slugify(topicTitle), f, role, "manual")
}
