package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

// GhostCreate inserts a ghost, enforcing unique (operator_id, name).
func (s *Store) GhostCreate(ctx context.Context, g *models.Ghost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ghosts(id, name, operator_id, created_at) VALUES (?, ?, ?, ?)
	`, g.ID, g.Name, g.OperatorID, g.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// GhostGet fetches a ghost by id.
func (s *Store) GhostGet(ctx context.Context, id string) (*models.Ghost, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, operator_id, created_at FROM ghosts WHERE id = ?
	`, id)
	g := &models.Ghost{}
	if err := row.Scan(&g.ID, &g.Name, &g.OperatorID, &g.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// GhostGetByName resolves a ghost within an operator's namespace.
func (s *Store) GhostGetByName(ctx context.Context, operatorID, name string) (*models.Ghost, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, operator_id, created_at FROM ghosts WHERE operator_id = ? AND name = ?
	`, operatorID, name)
	g := &models.Ghost{}
	if err := row.Scan(&g.ID, &g.Name, &g.OperatorID, &g.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}

// GhostsForOperator lists every ghost owned by an operator.
func (s *Store) GhostsForOperator(ctx context.Context, operatorID string) ([]*models.Ghost, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, operator_id, created_at FROM ghosts WHERE operator_id = ? ORDER BY created_at
	`, operatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Ghost
	for rows.Next() {
		g := &models.Ghost{}
		if err := rows.Scan(&g.ID, &g.Name, &g.OperatorID, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
