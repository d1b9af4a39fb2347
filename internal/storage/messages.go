package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/haasonsaas/nexus/pkg/models"
)

// MessageAppend inserts a message at the next sequence number for its
// session, inside a single transaction so sequence numbers never race.
func (s *Store) MessageAppend(ctx context.Context, msg *models.Message) error {
	contentJSON, err := json.Marshal(msg.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var next int64
	row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(sequence_no), -1) + 1 FROM messages WHERE session_id = ?", msg.SessionID)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	msg.SequenceNo = next

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages(id, session_id, sequence_no, role, content_json, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, msg.SequenceNo, msg.Role, string(contentJSON), msg.Model, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return tx.Commit()
}

// MessageHistory returns every message for a session in sequence order,
// optionally limited to the most recent `limit` (0 = unbounded).
func (s *Store) MessageHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, session_id, sequence_no, role, content_json, model, created_at
		FROM messages WHERE session_id = ? ORDER BY sequence_no`
	args := []interface{}{sessionID}
	if limit > 0 {
		query = `
			SELECT * FROM (
				SELECT id, session_id, sequence_no, role, content_json, model, created_at
				FROM messages WHERE session_id = ? ORDER BY sequence_no DESC LIMIT ?
			) ORDER BY sequence_no`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		m := &models.Message{}
		var contentJSON string
		var model sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SequenceNo, &m.Role, &contentJSON, &model, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Model = model.String
		if err := json.Unmarshal([]byte(contentJSON), &m.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content for message %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MessageGet fetches a single message by id.
func (s *Store) MessageGet(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, sequence_no, role, content_json, model, created_at
		FROM messages WHERE id = ?
	`, id)
	m := &models.Message{}
	var contentJSON string
	var model sql.NullString
	if err := row.Scan(&m.ID, &m.SessionID, &m.SequenceNo, &m.Role, &contentJSON, &model, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.Model = model.String
	if err := json.Unmarshal([]byte(contentJSON), &m.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content for message %s: %w", m.ID, err)
	}
	return m, nil
}
