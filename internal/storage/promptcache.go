package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/haasonsaas/nexus/pkg/models"
)

// PromptCacheGet returns the durable cache row for a session, if present.
func (s *Store) PromptCacheGet(ctx context.Context, sessionID string) (*models.PromptCacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, ghost_id, blocks, fingerprint, cached_at
		FROM prompt_cache WHERE session_id = ?
	`, sessionID)
	e := &models.PromptCacheEntry{}
	var fingerprint int64
	if err := row.Scan(&e.SessionID, &e.GhostID, &e.Blocks, &fingerprint, &e.CachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Fingerprint = uint64(fingerprint)
	return e, nil
}

// PromptCachePut upserts the durable cache row for a session. The fingerprint
// is stored as its int64 bit pattern: database/sql rejects uint64 values with
// the high bit set.
func (s *Store) PromptCachePut(ctx context.Context, e *models.PromptCacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_cache(session_id, ghost_id, blocks, fingerprint, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			ghost_id = excluded.ghost_id,
			blocks = excluded.blocks,
			fingerprint = excluded.fingerprint,
			cached_at = excluded.cached_at
	`, e.SessionID, e.GhostID, e.Blocks, int64(e.Fingerprint), e.CachedAt)
	return err
}

// PromptCacheInvalidate deletes the durable cache row for a session.
func (s *Store) PromptCacheInvalidate(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM prompt_cache WHERE session_id = ?", sessionID)
	return err
}
