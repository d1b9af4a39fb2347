// Package storage implements the embedded relational store: operators,
// ghosts, sessions, messages, usage logs, prompt cache, notes, chunks and
// their derived indices, all in a single SQLite database file.
//
// Two drivers are supported interchangeably via Config.Driver: "sqlite3"
// (github.com/mattn/go-sqlite3, CGO, fastest) and "sqlite" (modernc.org/
// sqlite, pure Go, used when CGO is unavailable).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

var (
	// ErrNotFound is returned when a lookup by id finds no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists is returned when an insert hits a uniqueness
	// constraint (e.g. duplicate ghost name for an operator).
	ErrAlreadyExists = errors.New("storage: already exists")
	// ErrDimensionMismatch is returned when an embedding's width disagrees
	// with the configured or stored dimension. It is fatal: proceeding would
	// corrupt the vector table.
	ErrDimensionMismatch = errors.New("storage: embedding dimension mismatch")
)

// Config configures the embedded store.
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral store.
	Path string
	// Driver selects the SQL driver: "sqlite3" (CGO) or "sqlite" (pure Go).
	// Defaults to "sqlite3".
	Driver string
	Logger *slog.Logger
}

// Store is the embedded relational store plus its lexical/vector indices.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and migrates) the store at cfg.Path.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1) // mattn/go-sqlite3 serializes writers anyway
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger.With("component", "storage")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for components that need a direct query
// (e.g. the knowledge engine's FTS5 MATCH queries).
func (s *Store) DB() *sql.DB { return s.db }
