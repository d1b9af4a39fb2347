package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/haasonsaas/nexus/pkg/models"
)

// ReferenceFilePut records (or replaces) an ingested file's membership in a
// reference topic.
func (s *Store) ReferenceFilePut(ctx context.Context, rf *models.ReferenceFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reference_files(topic_id, file_note_id, rel_path, role, source_url, source_type, fetched_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(topic_id, file_note_id) DO UPDATE SET
			rel_path = excluded.rel_path,
			role = excluded.role,
			source_url = excluded.source_url,
			source_type = excluded.source_type,
			fetched_at = excluded.fetched_at,
			status = excluded.status
	`, rf.TopicID, rf.FileNoteID, rf.RelPath, rf.Role, rf.SourceURL, rf.SourceType, rf.FetchedAt, rf.Status)
	return err
}

// ReferenceFilesForTopic lists every file ingested under a reference topic.
func (s *Store) ReferenceFilesForTopic(ctx context.Context, topicID int64) ([]*models.ReferenceFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic_id, file_note_id, rel_path, role, source_url, source_type, fetched_at, status
		FROM reference_files WHERE topic_id = ? ORDER BY rel_path
	`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ReferenceFile
	for rows.Next() {
		rf := &models.ReferenceFile{}
		if err := rows.Scan(&rf.TopicID, &rf.FileNoteID, &rf.RelPath, &rf.Role, &rf.SourceURL, &rf.SourceType, &rf.FetchedAt, &rf.Status); err != nil {
			return nil, err
		}
		out = append(out, rf)
	}
	return out, rows.Err()
}

// ReferenceFileSetStatus updates a single ingested file's standing (e.g.
// marking it problematic or obsolete after a reconciliation pass).
func (s *Store) ReferenceFileSetStatus(ctx context.Context, topicID, fileNoteID int64, status models.ReferenceStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reference_files SET status = ? WHERE topic_id = ? AND file_note_id = ?
	`, status, topicID, fileNoteID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ReferenceFileGet fetches the membership row for a single file note.
func (s *Store) ReferenceFileGet(ctx context.Context, topicID, fileNoteID int64) (*models.ReferenceFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT topic_id, file_note_id, rel_path, role, source_url, source_type, fetched_at, status
		FROM reference_files WHERE topic_id = ? AND file_note_id = ?
	`, topicID, fileNoteID)
	rf := &models.ReferenceFile{}
	if err := row.Scan(&rf.TopicID, &rf.FileNoteID, &rf.RelPath, &rf.Role, &rf.SourceURL, &rf.SourceType, &rf.FetchedAt, &rf.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rf, nil
}
