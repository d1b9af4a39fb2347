package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// NoteCreate inserts a note along with its tags. Outgoing links are recorded
// separately with LinkPut and resolved to target ids by ResolveLinks.
func (s *Store) NoteCreate(ctx context.Context, n *models.Note) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	comments, err := json.Marshal(n.Comments)
	if err != nil {
		return 0, fmt.Errorf("marshal comments: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO notes(
			title, archetype, path, scope, owner_ghost, trust_score,
			created_by_ghost, created_by_model, created_by_time,
			last_validated_at, last_validated_by, version, parent_id, comments_json, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.Title, n.Archetype, n.Path, n.Scope, n.OwnerGhost, n.TrustScore,
		n.CreatedBy.Ghost, n.CreatedBy.Model, n.CreatedBy.Time,
		n.LastValidatedAt, n.LastValidatedBy, firstNonZero(n.Version, 1), n.ParentID, string(comments), n.ContentHash)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, fmt.Errorf("insert note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	n.ID = id

	for _, tag := range n.Tags {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags(note_id, tag) VALUES (?, ?)", id, tag); err != nil {
			return 0, fmt.Errorf("insert tag: %w", err)
		}
	}

	return id, tx.Commit()
}

func firstNonZero(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// NoteGet loads a note by id, including its tags.
func (s *Store) NoteGet(ctx context.Context, id int64) (*models.Note, error) {
	n, err := s.scanNote(ctx, s.db.QueryRowContext(ctx, noteSelect+"WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	return n, s.hydrateTags(ctx, n)
}

// NoteGetByTitle resolves a note within a scope/owner namespace.
func (s *Store) NoteGetByTitle(ctx context.Context, scope models.Scope, ownerGhost, title string) (*models.Note, error) {
	n, err := s.scanNote(ctx, s.db.QueryRowContext(ctx,
		noteSelect+"WHERE scope = ? AND owner_ghost = ? AND title = ?", scope, ownerGhost, title))
	if err != nil {
		return nil, err
	}
	return n, s.hydrateTags(ctx, n)
}

const noteSelect = `
	SELECT id, title, archetype, path, scope, owner_ghost, trust_score,
		created_by_ghost, created_by_model, created_by_time,
		last_validated_at, last_validated_by, version, parent_id, comments_json, content_hash
	FROM notes
`

func (s *Store) scanNote(ctx context.Context, row *sql.Row) (*models.Note, error) {
	n := &models.Note{}
	var comments string
	var parentID sql.NullInt64
	var createdByTime sql.NullTime
	var lastValidatedAt sql.NullTime
	var lastValidatedBy sql.NullString
	if err := row.Scan(
		&n.ID, &n.Title, &n.Archetype, &n.Path, &n.Scope, &n.OwnerGhost, &n.TrustScore,
		&n.CreatedBy.Ghost, &n.CreatedBy.Model, &createdByTime,
		&lastValidatedAt, &lastValidatedBy, &n.Version, &parentID, &comments, &n.ContentHash,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if createdByTime.Valid {
		n.CreatedBy.Time = createdByTime.Time
	}
	if lastValidatedAt.Valid {
		t := lastValidatedAt.Time
		n.LastValidatedAt = &t
	}
	n.LastValidatedBy = lastValidatedBy.String
	if parentID.Valid {
		v := parentID.Int64
		n.ParentID = &v
	}
	if err := json.Unmarshal([]byte(comments), &n.Comments); err != nil {
		return nil, fmt.Errorf("unmarshal comments for note %d: %w", n.ID, err)
	}
	return n, nil
}

func (s *Store) hydrateTags(ctx context.Context, n *models.Note) error {
	rows, err := s.db.QueryContext(ctx, "SELECT tag FROM tags WHERE note_id = ? ORDER BY tag", n.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	n.Tags = nil
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return err
		}
		n.Tags = append(n.Tags, tag)
	}
	return rows.Err()
}

// NoteUpdateContent bumps a note's version and content hash after its backing
// file has been rewritten; trust score and tags are left to the caller.
func (s *Store) NoteUpdateContent(ctx context.Context, id int64, contentHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET content_hash = ?, version = version + 1 WHERE id = ?
	`, contentHash, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// NoteValidate records a ghost's validation pass over a note.
func (s *Store) NoteValidate(ctx context.Context, id int64, by string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET last_validated_at = ?, last_validated_by = ? WHERE id = ?
	`, at, by, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// NoteComment appends a free-form comment to a note.
func (s *Store) NoteComment(ctx context.Context, id int64, comment string) error {
	n, err := s.NoteGet(ctx, id)
	if err != nil {
		return err
	}
	n.Comments = append(n.Comments, comment)
	data, err := json.Marshal(n.Comments)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "UPDATE notes SET comments_json = ? WHERE id = ?", string(data), id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// NoteDelete removes a note and everything that hangs off it: tags, links,
// chunks (and their FTS/vector rows), reference_files.
func (s *Store) NoteDelete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var chunkIDs []int64
	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE note_id = ?", id)
	if err != nil {
		return err
	}
	for rows.Next() {
		var cid int64
		if err := rows.Scan(&cid); err != nil {
			rows.Close()
			return err
		}
		chunkIDs = append(chunkIDs, cid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, cid := range chunkIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vectors WHERE chunk_id = ?", cid); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks_fts WHERE rowid = ?", cid); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE note_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE note_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM links WHERE source_id = ? OR target_id = ?", id, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM reference_files WHERE topic_id = ? OR file_note_id = ?", id, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// NotesByScope lists every note visible in a scope, optionally restricted to
// a single ghost's private partitions.
func (s *Store) NotesByScope(ctx context.Context, scope models.Scope, ownerGhost string) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, noteSelect+"WHERE scope = ? AND owner_ghost = ? ORDER BY title", scope, ownerGhost)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Note
	for rows.Next() {
		n := &models.Note{}
		var comments string
		var parentID sql.NullInt64
		var createdByTime sql.NullTime
		var lastValidatedAt sql.NullTime
		var lastValidatedBy sql.NullString
		if err := rows.Scan(
			&n.ID, &n.Title, &n.Archetype, &n.Path, &n.Scope, &n.OwnerGhost, &n.TrustScore,
			&n.CreatedBy.Ghost, &n.CreatedBy.Model, &createdByTime,
			&lastValidatedAt, &lastValidatedBy, &n.Version, &parentID, &comments, &n.ContentHash,
		); err != nil {
			return nil, err
		}
		if createdByTime.Valid {
			n.CreatedBy.Time = createdByTime.Time
		}
		if lastValidatedAt.Valid {
			t := lastValidatedAt.Time
			n.LastValidatedAt = &t
		}
		n.LastValidatedBy = lastValidatedBy.String
		if parentID.Valid {
			v := parentID.Int64
			n.ParentID = &v
		}
		if err := json.Unmarshal([]byte(comments), &n.Comments); err != nil {
			return nil, fmt.Errorf("unmarshal comments for note %d: %w", n.ID, err)
		}
		if err := s.hydrateTags(ctx, n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// LinkPut records an outgoing link by title (an existing link with the same
// title is left as is); the target id is left nil until ResolveLinks finds
// a matching note.
func (s *Store) LinkPut(ctx context.Context, sourceID int64, targetTitle string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO links(source_id, target_title, target_id) VALUES (?, ?, NULL)
		ON CONFLICT(source_id, target_title) DO NOTHING
	`, sourceID, targetTitle)
	return err
}

// ResolveLinks fills in target_id for every unresolved link whose title now
// matches a note in the same scope/owner namespace as the source.
func (s *Store) ResolveLinks(ctx context.Context, scope models.Scope, ownerGhost string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE links SET target_id = (
			SELECT n2.id FROM notes n2
			WHERE n2.scope = ? AND n2.owner_ghost = ? AND n2.title = links.target_title
		)
		WHERE target_id IS NULL
		AND source_id IN (SELECT id FROM notes WHERE scope = ? AND owner_ghost = ?)
	`, scope, ownerGhost, scope, ownerGhost)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// OutgoingLinks returns the notes a note links to (resolved only).
func (s *Store) OutgoingLinks(ctx context.Context, sourceID int64) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_id FROM links WHERE source_id = ? AND target_id IS NOT NULL
	`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.notesByIDs(ctx, ids)
}

// IncomingLinks returns the notes that link to a note.
func (s *Store) IncomingLinks(ctx context.Context, targetID int64) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source_id FROM links WHERE target_id = ?", targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return s.notesByIDs(ctx, ids)
}

func (s *Store) notesByIDs(ctx context.Context, ids []int64) ([]*models.Note, error) {
	out := make([]*models.Note, 0, len(ids))
	for _, id := range ids {
		n, err := s.NoteGet(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
