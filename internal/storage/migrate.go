package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// migrations is the forward-only list of schema migrations, applied in
// order on every Open before any query runs.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY
	)`,

	`CREATE TABLE IF NOT EXISTS operators (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		access_level TEXT NOT NULL DEFAULT 'standard',
		status TEXT NOT NULL DEFAULT 'pending',
		welcomed INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS ghosts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		operator_id TEXT NOT NULL REFERENCES operators(id),
		created_at TIMESTAMP NOT NULL,
		UNIQUE(operator_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		ghost_id TEXT NOT NULL REFERENCES ghosts(id),
		operator_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_active_at TIMESTAMP NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_ghost ON sessions(ghost_id)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		sequence_no INTEGER NOT NULL,
		role TEXT NOT NULL,
		content_json TEXT NOT NULL,
		model TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_session_seq ON messages(session_id, sequence_no)`,

	`CREATE TABLE IF NOT EXISTS usage_log (
		id TEXT PRIMARY KEY,
		ghost_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		message_id TEXT,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cache_read_tokens INTEGER NOT NULL DEFAULT 0,
		cache_create_tokens INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_session ON usage_log(session_id)`,

	`CREATE TABLE IF NOT EXISTS prompt_cache (
		session_id TEXT PRIMARY KEY,
		ghost_id TEXT NOT NULL,
		blocks TEXT NOT NULL,
		fingerprint INTEGER NOT NULL,
		cached_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		archetype TEXT NOT NULL DEFAULT '',
		path TEXT NOT NULL,
		scope TEXT NOT NULL,
		owner_ghost TEXT NOT NULL DEFAULT '',
		trust_score INTEGER NOT NULL DEFAULT 5,
		created_by_ghost TEXT NOT NULL DEFAULT '',
		created_by_model TEXT NOT NULL DEFAULT '',
		created_by_time TIMESTAMP,
		last_validated_at TIMESTAMP,
		last_validated_by TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		parent_id INTEGER,
		comments_json TEXT NOT NULL DEFAULT '[]',
		content_hash TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_scope_owner ON notes(scope, owner_ghost)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_scope_owner_title ON notes(scope, owner_ghost, title)`,

	`CREATE TABLE IF NOT EXISTS tags (
		note_id INTEGER NOT NULL REFERENCES notes(id),
		tag TEXT NOT NULL,
		PRIMARY KEY (note_id, tag)
	)`,

	`CREATE TABLE IF NOT EXISTS links (
		source_id INTEGER NOT NULL REFERENCES notes(id),
		target_title TEXT NOT NULL,
		target_id INTEGER,
		PRIMARY KEY (source_id, target_title)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id)`,

	`CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		note_id INTEGER NOT NULL REFERENCES notes(id),
		idx INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		embedding_model TEXT NOT NULL DEFAULT '',
		embedding_dim INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_note ON chunks(note_id, idx)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		content, content='chunks', content_rowid='id'
	)`,

	`CREATE TABLE IF NOT EXISTS vectors (
		chunk_id INTEGER PRIMARY KEY REFERENCES chunks(id),
		embedding BLOB NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS reference_files (
		topic_id INTEGER NOT NULL REFERENCES notes(id),
		file_note_id INTEGER NOT NULL REFERENCES notes(id),
		rel_path TEXT NOT NULL,
		role TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		source_type TEXT NOT NULL DEFAULT '',
		fetched_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		PRIMARY KEY (topic_id, file_note_id)
	)`,

	`CREATE TABLE IF NOT EXISTS job_log (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		session_id TEXT NOT NULL,
		transcript TEXT NOT NULL DEFAULT '',
		todos_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, migrations[0]); err != nil {
		return fmt.Errorf("bootstrap migrations table: %w", err)
	}

	for i, stmt := range migrations {
		version := i + 1
		var applied int
		row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version)
		if err := row.Scan(&applied); err != nil {
			return fmt.Errorf("check migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations(version) VALUES (?)", version); err != nil {
			return fmt.Errorf("record migration %d: %w", version, err)
		}
	}

	return tx.Commit()
}

// MetaGet reads a key from the ad-hoc meta table.
func (s *Store) MetaGet(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// MetaSet upserts a key in the ad-hoc meta table.
func (s *Store) MetaSet(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
