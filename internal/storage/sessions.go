package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// SessionCreate inserts a new session row.
func (s *Store) SessionCreate(ctx context.Context, sess *models.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, ghost_id, operator_id, created_at, last_active_at, active)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sess.ID, sess.GhostID, sess.OperatorID, sess.CreatedAt, sess.LastActiveAt, boolToInt(sess.Active))
	return err
}

// SessionGet fetches a session by id.
func (s *Store) SessionGet(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ghost_id, operator_id, created_at, last_active_at, active
		FROM sessions WHERE id = ?
	`, id)
	sess := &models.Session{}
	var active int
	if err := row.Scan(&sess.ID, &sess.GhostID, &sess.OperatorID, &sess.CreatedAt, &sess.LastActiveAt, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sess.Active = active != 0
	return sess, nil
}

// SessionTouch bumps last_active_at, used once per chat turn.
func (s *Store) SessionTouch(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE sessions SET last_active_at = ? WHERE id = ?", at, id)
	return err
}

// ActiveSessionForGhost returns the most recently active session for a ghost,
// if one is still marked active.
func (s *Store) ActiveSessionForGhost(ctx context.Context, ghostID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ghost_id, operator_id, created_at, last_active_at, active
		FROM sessions WHERE ghost_id = ? AND active = 1
		ORDER BY last_active_at DESC LIMIT 1
	`, ghostID)
	sess := &models.Session{}
	var active int
	if err := row.Scan(&sess.ID, &sess.GhostID, &sess.OperatorID, &sess.CreatedAt, &sess.LastActiveAt, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sess.Active = active != 0
	return sess, nil
}
