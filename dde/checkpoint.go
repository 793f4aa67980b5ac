package dde

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowdag/dde-go/dde/store"
)

// Snapshot is the complete durable image of a run. Saving one after every
// state transition makes the run resumable from the last committed point
// after a crash.
type Snapshot struct {
	RunID        string               `json:"run_id"`
	GraphID      string               `json:"graph_id"`
	GraphVersion string               `json:"graph_version"`
	Status       RunStatus            `json:"status"`
	SavedAt      time.Time            `json:"saved_at"`
	Nodes        map[string]NodeState `json:"nodes"`
	Context      ContextSnapshot      `json:"context"`
	EventSeq     int                  `json:"event_seq"`

	// Checksum is a sha256 digest of the snapshot with this field cleared,
	// prefixed "sha256:". Verified on restore.
	Checksum string `json:"checksum"`
}

// CheckpointManager persists and restores run snapshots through a Store.
// There is no silent in-memory fallback: constructing a manager requires an
// explicit store, and callers that want ephemeral runs pass a MemStore.
type CheckpointManager struct {
	store store.Store[Snapshot]
}

// NewCheckpointManager wires a snapshot store. A nil store is a
// configuration error, not a degraded mode.
func NewCheckpointManager(s store.Store[Snapshot]) (*CheckpointManager, error) {
	if s == nil {
		return nil, &SchedulerError{Message: "checkpoint store is required", Code: "NO_STORE"}
	}
	return &CheckpointManager{store: s}, nil
}

// Save computes the snapshot's checksum and persists it under its run ID.
func (m *CheckpointManager) Save(ctx context.Context, snap Snapshot) error {
	sum, err := checksumSnapshot(snap)
	if err != nil {
		return fmt.Errorf("checksum snapshot for run %s: %w", snap.RunID, err)
	}
	snap.Checksum = sum
	if err := m.store.Save(ctx, snap.RunID, snap); err != nil {
		return fmt.Errorf("save checkpoint for run %s: %w", snap.RunID, err)
	}
	return nil
}

// Restore loads and verifies the snapshot for runID. Nodes that were RUNNING
// at save time are reset to PENDING so their work, which never committed, is
// re-executed. A checksum mismatch or undecodable payload yields a
// CheckpointCorruptionError rather than a partial resume.
func (m *CheckpointManager) Restore(ctx context.Context, runID string) (Snapshot, error) {
	snap, err := m.store.Load(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		if errors.Is(err, store.ErrCorrupted) {
			return Snapshot{}, &CheckpointCorruptionError{RunID: runID, Reason: "undecodable checkpoint payload", Cause: err}
		}
		return Snapshot{}, fmt.Errorf("load checkpoint for run %s: %w", runID, err)
	}

	want := snap.Checksum
	got, err := checksumSnapshot(snap)
	if err != nil {
		return Snapshot{}, &CheckpointCorruptionError{RunID: runID, Reason: "checksum recomputation failed", Cause: err}
	}
	if want == "" || want != got {
		return Snapshot{}, &CheckpointCorruptionError{
			RunID:  runID,
			Reason: fmt.Sprintf("checksum mismatch: stored %q, computed %q", want, got),
		}
	}

	for id, ns := range snap.Nodes {
		if ns.Status == StatusRunning {
			ns.Status = StatusPending
			ns.StartedAt = time.Time{}
			snap.Nodes[id] = ns
		}
	}
	return snap, nil
}

// Delete removes the checkpoint for a finished run.
func (m *CheckpointManager) Delete(ctx context.Context, runID string) error {
	return m.store.Delete(ctx, runID)
}

// Close releases the underlying store.
func (m *CheckpointManager) Close() error {
	return m.store.Close()
}

func checksumSnapshot(snap Snapshot) (string, error) {
	snap.Checksum = ""
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
