package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection and provides access to repositories.
type Store struct {
	db *sql.DB
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// States returns the scheduling state repository.
func (s *Store) States() StateRepo {
	return &stateRepo{db: s.db}
}

// Reviews returns the review event log repository.
func (s *Store) Reviews() ReviewLogRepo {
	return &reviewLogRepo{db: s.db}
}

// Pending returns the pending reconciliation queue repository.
func (s *Store) Pending() PendingRepo {
	return &pendingRepo{db: s.db}
}

// Cards returns the card content repository.
func (s *Store) Cards() CardRepo {
	return &cardRepo{db: s.db}
}

// ResetLearner removes all scheduling state, review history and queued
// reconciliations for the learner. Card content is untouched.
func (s *Store) ResetLearner(ctx context.Context, learnerID string) error {
	stmts := []string{
		"DELETE FROM scheduling_states WHERE learner_id = ?",
		"DELETE FROM review_events WHERE learner_id = ?",
		"DELETE FROM session_events WHERE learner_id = ?",
		"DELETE FROM pending_reviews WHERE learner_id = ?",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt, learnerID); err != nil {
			return fmt.Errorf("reset learner: %w", err)
		}
	}
	return nil
}

// applyPragmas configures SQLite for single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. RETAIN_DB environment variable
// 2. $XDG_DATA_HOME/retain/retain.db
// 3. ~/.local/share/retain/retain.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("RETAIN_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "retain", "retain.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
