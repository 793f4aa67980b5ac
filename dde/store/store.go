// Package store provides persistence backends for run checkpoints.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no checkpoint exists for the requested run ID.
var ErrNotFound = errors.New("not found")

// ErrCorrupted is returned when persisted checkpoint data cannot be decoded.
// The checkpoint manager wraps this into a CheckpointCorruptionError with the
// run ID attached.
var ErrCorrupted = errors.New("checkpoint data corrupted")

// Store persists one durable snapshot document per run.
//
// Save supersedes any previous snapshot for the run; there is exactly one
// last-good checkpoint per run ID at a time, and implementations must ensure
// a crash mid-save never destroys it (write-to-temp-then-rename, upsert in a
// transaction, or equivalent).
//
// Implementations in this package:
//   - MemStore: process-local, for tests and explicit ephemeral mode
//   - FileStore: one JSON document per run in a directory
//   - SQLiteStore: single-file database, zero setup
//   - MySQLStore: shared database for fleets of runners
//
// Type parameter S is the snapshot document type; it must be
// JSON-serializable.
type Store[S any] interface {
	// Save durably persists the snapshot for runID, replacing any previous
	// snapshot for the same run.
	Save(ctx context.Context, runID string, snapshot S) error

	// Load retrieves the last saved snapshot for runID.
	// Returns ErrNotFound if the run has no snapshot, or an error wrapping
	// ErrCorrupted if the stored data cannot be decoded.
	Load(ctx context.Context, runID string) (S, error)

	// Delete removes the snapshot for runID. Deleting a missing run is not
	// an error.
	Delete(ctx context.Context, runID string) error

	// Close releases backend resources. The store must not be used after
	// Close.
	Close() error
}
