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

// JobLogStart inserts a job run row in-flight (FinishedAt left zero).
func (s *Store) JobLogStart(ctx context.Context, j *models.JobLog) error {
	todos, err := json.Marshal(j.TODOs)
	if err != nil {
		return fmt.Errorf("marshal todos: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_log(id, kind, session_id, transcript, todos_json, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
	`, j.ID, j.Kind, j.SessionID, j.Transcript, string(todos), j.Status, j.StartedAt)
	return err
}

// JobLogFinish records a job's completion.
func (s *Store) JobLogFinish(ctx context.Context, id string, status, transcript string, todos []string, finishedAt time.Time) error {
	data, err := json.Marshal(todos)
	if err != nil {
		return fmt.Errorf("marshal todos: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_log SET status = ?, transcript = ?, todos_json = ?, finished_at = ? WHERE id = ?
	`, status, transcript, string(data), finishedAt, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// LastJobOfKind returns the most recently started job of a kind.
func (s *Store) LastJobOfKind(ctx context.Context, kind models.JobKind) (*models.JobLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, session_id, transcript, todos_json, status, started_at, finished_at
		FROM job_log WHERE kind = ? ORDER BY started_at DESC LIMIT 1
	`, kind)
	j := &models.JobLog{}
	var todos string
	var finishedAt sql.NullTime
	if err := row.Scan(&j.ID, &j.Kind, &j.SessionID, &j.Transcript, &todos, &j.Status, &j.StartedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if finishedAt.Valid {
		j.FinishedAt = finishedAt.Time
	}
	if err := json.Unmarshal([]byte(todos), &j.TODOs); err != nil {
		return nil, fmt.Errorf("unmarshal todos for job %s: %w", j.ID, err)
	}
	return j, nil
}
