package knowledge

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/storage"
	"github.com/haasonsaas/nexus/pkg/models"
)

// reconcileMetaKey names the meta-table row tracking when a scope/owner
// partition was last walked, so a burst of searches doesn't re-walk the
// filesystem on every call.
func reconcileMetaKey(scope models.Scope, owner string) string {
	if owner == "" {
		return "last_reconcile_" + string(scope)
	}
	return "last_reconcile_" + string(scope) + "_" + owner
}

// scopeRoot resolves the filesystem directory backing a scope/owner
// partition. Ghost-owned scopes live under a per-ghost subdirectory of the
// scope's configured root; shared scopes use the root directly. An
// unconfigured scope returns "", meaning there is nothing on disk to
// reconcile against (a pure API-driven deployment, or a scope the caller
// never wired up).
func (e *Engine) scopeRoot(scope models.Scope, owner string) string {
	root, ok := e.cfg.Roots[scope]
	if !ok || root == "" {
		return ""
	}
	if isGhostScope(scope) && owner != "" {
		return filepath.Join(root, owner)
	}
	return root
}

// reconcileIfStale walks a scope/owner partition's filesystem root when its
// last reconciliation is older than cfg.ReconcileInterval, re-ingesting any
// file whose content hash has changed.
func (e *Engine) reconcileIfStale(ctx context.Context, scope models.Scope, owner string) error {
	root := e.scopeRoot(scope, owner)
	if root == "" {
		return nil
	}

	key := reconcileMetaKey(scope, owner)
	if last, ok, err := e.store.MetaGet(ctx, key); err != nil {
		return err
	} else if ok {
		if t, err := time.Parse(time.RFC3339, last); err == nil && time.Since(t) < e.cfg.ReconcileInterval {
			return nil
		}
	}

	if err := e.reconcileScope(ctx, scope, owner, root); err != nil {
		return err
	}
	return e.store.MetaSet(ctx, key, time.Now().UTC().Format(time.RFC3339))
}

func (e *Engine) reconcileScope(ctx context.Context, scope models.Scope, owner, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".md") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if ferr := e.reconcileFile(ctx, scope, owner, rel, string(raw)); ferr != nil {
			e.logger.Warn("reconcile file failed", "path", rel, "error", ferr)
		}
		return nil
	})
}

// reconcileFile ingests a single file and upserts it. A malformed file logs
// and is skipped rather than aborting the whole walk: one bad diary entry
// shouldn't hide every other note from search.
func (e *Engine) reconcileFile(ctx context.Context, scope models.Scope, owner, relPath, raw string) error {
	var (
		res ingestResult
		err error
	)
	switch {
	case scope == models.ScopeGhostDiary:
		res, err = ingestDiaryEntry(owner, relPath, raw)
	case strings.HasSuffix(strings.ToLower(relPath), "_index.md"):
		res, err = ingestMarkdown(scope, owner, relPath, raw)
	case scope == models.ScopeSharedReference && strings.EqualFold(filepath.Base(relPath), "topic.md"):
		res, err = ingestReferenceTopic(relPath, raw)
	default:
		res, err = ingestMarkdown(scope, owner, relPath, raw)
	}
	if err != nil {
		return err
	}
	return e.upsertIngested(ctx, res)
}

// upsertIngested writes an ingested file's note, tags, parent, links, and
// chunks. Unchanged content (matching content hash) is a no-op: re-embedding
// an untouched file on every reconcile pass would be pure waste.
func (e *Engine) upsertIngested(ctx context.Context, res ingestResult) error {
	existing, err := e.store.NoteGetByTitle(ctx, res.Note.Scope, res.Note.OwnerGhost, res.Note.Title)
	var noteID int64
	switch {
	case err == nil:
		if existing.ContentHash == res.Note.ContentHash {
			return nil
		}
		noteID = existing.ID
		if err := e.store.NoteUpdateContent(ctx, noteID, res.Note.ContentHash); err != nil {
			return err
		}
		if err := e.replaceTags(ctx, noteID, res.Note.Tags); err != nil {
			return err
		}
	case errors.Is(err, storage.ErrNotFound):
		id, err := e.store.NoteCreate(ctx, res.Note)
		if err != nil {
			return err
		}
		noteID = id
	default:
		return err
	}

	if res.ParentTitle != "" {
		if parent, err := e.store.NoteGetByTitle(ctx, res.Note.Scope, res.Note.OwnerGhost, res.ParentTitle); err == nil {
			if err := e.setParent(ctx, noteID, parent.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	for _, target := range res.Links {
		if err := e.store.LinkPut(ctx, noteID, target); err != nil {
			return err
		}
	}
	if _, err := e.store.ResolveLinks(ctx, res.Note.Scope, res.Note.OwnerGhost); err != nil {
		return err
	}

	return e.embedAndStore(ctx, noteID, res.Chunks)
}

// embedAndStore turns raw chunks into embedded, persisted chunk rows in one
// atomic swap.
func (e *Engine) embedAndStore(ctx context.Context, noteID int64, raw []RawChunk) error {
	if len(raw) == 0 {
		return nil
	}
	contents := make([]string, len(raw))
	for i, c := range raw {
		contents[i] = c.Content
	}
	vectors, err := e.embedChunks(ctx, contents)
	if err != nil {
		return err
	}

	model, dim := "", 0
	if e.embedder != nil {
		model, dim = e.embedder.Model(), e.embedder.Dimension()
	}

	chunks := make([]*models.Chunk, len(raw))
	for i, c := range raw {
		chunk := &models.Chunk{
			Title:       c.Title,
			Content:     c.Content,
			ContentHash: contentHash(c.Content),
		}
		if vectors[i] != nil {
			chunk.EmbeddingModel, chunk.EmbeddingDim = model, dim
		}
		chunks[i] = chunk
	}

	_, err = e.store.ReplaceChunks(ctx, noteID, chunks, vectors)
	return err
}

func (e *Engine) replaceTags(ctx context.Context, noteID int64, tags []string) error {
	if _, err := e.store.DB().ExecContext(ctx, "DELETE FROM tags WHERE note_id = ?", noteID); err != nil {
		return err
	}
	for _, t := range tags {
		if _, err := e.store.DB().ExecContext(ctx, "INSERT OR IGNORE INTO tags(note_id, tag) VALUES (?, ?)", noteID, t); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) setParent(ctx context.Context, noteID, parentID int64) error {
	_, err := e.store.DB().ExecContext(ctx, "UPDATE notes SET parent_id = ? WHERE id = ?", parentID, noteID)
	return err
}
