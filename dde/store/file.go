package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists one JSON document per run in a directory.
//
// Layout: <dir>/<runID>.json. Saves write to a temporary file in the same
// directory and rename it over the target, so a crash mid-write can never
// corrupt the last good checkpoint: rename within a filesystem is atomic.
//
// Designed for single-host workflows that need durability without a
// database.
type FileStore[S any] struct {
	dir string
}

// NewFileStore creates a store rooted at dir, creating the directory if
// needed. The directory is a required argument: an unwritable or
// uncreatable path fails construction rather than degrading to ephemeral
// behavior.
func NewFileStore[S any](dir string) (*FileStore[S], error) {
	if dir == "" {
		return nil, errors.New("checkpoint directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory %s: %w", dir, err)
	}
	return &FileStore[S]{dir: dir}, nil
}

// Dir returns the backing directory.
func (f *FileStore[S]) Dir() string {
	return f.dir
}

// Save writes the snapshot with write-to-temp-then-rename semantics.
func (f *FileStore[S]) Save(_ context.Context, runID string, snapshot S) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for run %s: %w", runID, err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+sanitizeRunID(runID)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint file: %w", err)
	}
	tmpName := tmp.Name()
	// On any failure below, leave no temp file behind.
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, f.path(runID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// Load reads and decodes the snapshot for the run.
func (f *FileStore[S]) Load(_ context.Context, runID string) (S, error) {
	var snapshot S
	data, err := os.ReadFile(f.path(runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snapshot, ErrNotFound
		}
		return snapshot, fmt.Errorf("failed to read checkpoint for run %s: %w", runID, err)
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return snapshot, fmt.Errorf("run %s: %w: %v", runID, ErrCorrupted, err)
	}
	return snapshot, nil
}

// Delete removes the run's checkpoint file.
func (f *FileStore[S]) Delete(_ context.Context, runID string) error {
	err := os.Remove(f.path(runID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete checkpoint for run %s: %w", runID, err)
	}
	return nil
}

// Close is a no-op; files need no teardown.
func (f *FileStore[S]) Close() error {
	return nil
}

func (f *FileStore[S]) path(runID string) string {
	return filepath.Join(f.dir, sanitizeRunID(runID)+".json")
}

// sanitizeRunID keeps run IDs filesystem-safe. Run IDs are UUIDs in
// practice; this guards hand-written IDs in tests and CLI usage.
func sanitizeRunID(runID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, runID)
}
