package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It keeps one row per run in a single-file database. Designed for:
//   - development and testing with zero setup
//   - single-process workflows needing durable resume
//   - prototyping before moving to MySQL
//
// WAL mode is enabled so observers can read checkpoints while a run is
// writing them. Saves are transactional upserts: a crash mid-save leaves the
// previous row intact.
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
	path   string
}

// NewSQLiteStore opens (or creates) the database at path and prepares the
// schema. Use ":memory:" for an in-memory database in tests.
//
// The backing database is a required constructor argument: any failure to
// open or migrate aborts construction. There is no silent fallback to a
// weaker store.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	store := &SQLiteStore[S]{db: db, path: path}
	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dde_checkpoints (
			run_id   TEXT PRIMARY KEY,
			payload  BLOB NOT NULL,
			saved_at TIMESTAMP NOT NULL
		)`)
	return err
}

// Save upserts the snapshot row for the run.
func (s *SQLiteStore[S]) Save(ctx context.Context, runID string, snapshot S) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for run %s: %w", runID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dde_checkpoints (run_id, payload, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload,
			saved_at = excluded.saved_at`,
		runID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for run %s: %w", runID, err)
	}
	return nil
}

// Load reads and decodes the snapshot row for the run.
func (s *SQLiteStore[S]) Load(ctx context.Context, runID string) (S, error) {
	var snapshot S
	if err := s.ensureOpen(); err != nil {
		return snapshot, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM dde_checkpoints WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return snapshot, ErrNotFound
	}
	if err != nil {
		return snapshot, fmt.Errorf("failed to load checkpoint for run %s: %w", runID, err)
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return snapshot, fmt.Errorf("run %s: %w: %v", runID, ErrCorrupted, err)
	}
	return snapshot, nil
}

// Delete removes the snapshot row for the run.
func (s *SQLiteStore[S]) Delete(ctx context.Context, runID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM dde_checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete checkpoint for run %s: %w", runID, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore[S]) Ping(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}

func (s *SQLiteStore[S]) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store is closed")
	}
	return nil
}
