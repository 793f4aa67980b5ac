package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL implementation of Store.
//
// Use it when several workflow runners share one durable backend, or when
// checkpoints must outlive the host. One row per run, transactional upserts.
//
// DSN format (github.com/go-sql-driver/mysql):
//
//	user:password@tcp(host:3306)/dbname?parseTime=true
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLStore connects to MySQL, verifies connectivity, and prepares the
// schema. Connection failure aborts construction; the engine never degrades
// to a weaker store on its own.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach MySQL: %w", err)
	}

	store := &MySQLStore[S]{db: db}
	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (m *MySQLStore[S]) createTables(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dde_checkpoints (
			run_id   VARCHAR(191) PRIMARY KEY,
			payload  LONGBLOB NOT NULL,
			saved_at TIMESTAMP NOT NULL
		)`)
	return err
}

// Save upserts the snapshot row for the run.
func (m *MySQLStore[S]) Save(ctx context.Context, runID string, snapshot S) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for run %s: %w", runID, err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO dde_checkpoints (run_id, payload, saved_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload), saved_at = VALUES(saved_at)`,
		runID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for run %s: %w", runID, err)
	}
	return nil
}

// Load reads and decodes the snapshot row for the run.
func (m *MySQLStore[S]) Load(ctx context.Context, runID string) (S, error) {
	var snapshot S
	if err := m.ensureOpen(); err != nil {
		return snapshot, err
	}
	var data []byte
	err := m.db.QueryRowContext(ctx,
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
func (m *MySQLStore[S]) Delete(ctx context.Context, runID string) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM dde_checkpoints WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete checkpoint for run %s: %w", runID, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database is reachable.
func (m *MySQLStore[S]) Ping(ctx context.Context) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

func (m *MySQLStore[S]) ensureOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("store is closed")
	}
	return nil
}
