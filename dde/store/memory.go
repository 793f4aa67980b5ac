package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory Store implementation.
//
// Nothing survives process exit, so resumability claims do not hold: use it
// for tests, or pass it deliberately for ephemeral runs. The engine never
// falls back to MemStore on its own; ephemeral mode is always an explicit
// caller choice.
//
// Snapshots are stored as serialized JSON so callers get value semantics:
// mutating a snapshot after Save, or the result of Load, never affects the
// stored copy.
//
// Thread-safe for concurrent use.
type MemStore[S any] struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{runs: make(map[string][]byte)}
}

// Save stores the snapshot, replacing any previous one for the run.
func (m *MemStore[S]) Save(_ context.Context, runID string, snapshot S) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for run %s: %w", runID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = data
	return nil
}

// Load returns the stored snapshot for the run.
func (m *MemStore[S]) Load(_ context.Context, runID string) (S, error) {
	var snapshot S
	m.mu.RLock()
	data, ok := m.runs[runID]
	m.mu.RUnlock()
	if !ok {
		return snapshot, ErrNotFound
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return snapshot, fmt.Errorf("run %s: %w: %v", runID, ErrCorrupted, err)
	}
	return snapshot, nil
}

// Delete removes the run's snapshot.
func (m *MemStore[S]) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore[S]) Close() error {
	return nil
}

// Corrupt overwrites a run's stored bytes with invalid JSON. Test helper for
// exercising corruption handling; not part of the Store interface.
func (m *MemStore[S]) Corrupt(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; ok {
		m.runs[runID] = []byte("{corrupt")
	}
}
