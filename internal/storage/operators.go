package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// OperatorCreate inserts a new operator, defaulting to pending/standard.
func (s *Store) OperatorCreate(ctx context.Context, op *models.Operator) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}
	if op.AccessLevel == "" {
		op.AccessLevel = models.AccessStandard
	}
	if op.Status == "" {
		op.Status = models.OperatorPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators(id, display_name, access_level, status, welcomed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, op.ID, op.DisplayName, op.AccessLevel, op.Status, boolToInt(op.Welcomed), op.CreatedAt)
	return err
}

// OperatorGet fetches an operator by id.
func (s *Store) OperatorGet(ctx context.Context, id string) (*models.Operator, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, access_level, status, welcomed, created_at
		FROM operators WHERE id = ?
	`, id)
	op := &models.Operator{}
	var welcomed int
	if err := row.Scan(&op.ID, &op.DisplayName, &op.AccessLevel, &op.Status, &welcomed, &op.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	op.Welcomed = welcomed != 0
	return op, nil
}

// OperatorSetStatus transitions an operator's status (approve/deny, external to the core).
func (s *Store) OperatorSetStatus(ctx context.Context, id string, status models.OperatorStatus) error {
	res, err := s.db.ExecContext(ctx, "UPDATE operators SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
