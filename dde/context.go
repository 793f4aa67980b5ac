package dde

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ContextEntry is one committed node output.
//
// Entries are append-only: a node's first commit creates revision 1, and
// rework after a contract violation commits a new revision rather than
// mutating history. The latest revision is what dependents consume.
type ContextEntry struct {
	NodeID      string         `json:"node_id"`
	RunID       string         `json:"run_id"`
	Revision    int            `json:"revision"`
	Value       map[string]any `json:"value"`
	Schema      string         `json:"schema,omitempty"`
	CommittedAt time.Time      `json:"committed_at"`
}

// Ref returns the "nodeID@revision" reference recorded on NodeState.OutputRef.
func (e ContextEntry) Ref() string {
	return fmt.Sprintf("%s@%d", e.NodeID, e.Revision)
}

// ContextStore is the versioned, concurrency-safe store of per-node outputs
// and global key/value context for a single run. It is the source of truth
// for checkpoint snapshots.
//
// Commits are performed only by the scheduler's control loop; the mutex
// exists so snapshots and reads are safe from observer goroutines.
type ContextStore struct {
	mu      sync.RWMutex
	runID   string
	globals map[string]any
	entries map[string][]ContextEntry
}

// NewContextStore creates a store for the given run, seeded with the initial
// global context. The globals map is copied; the caller's map is not retained.
func NewContextStore(runID string, globals map[string]any) *ContextStore {
	copied := make(map[string]any, len(globals))
	for k, v := range globals {
		copied[k] = v
	}
	return &ContextStore{
		runID:   runID,
		globals: copied,
		entries: make(map[string][]ContextEntry),
	}
}

// RunID returns the run this store belongs to.
func (c *ContextStore) RunID() string {
	return c.runID
}

// Commit appends a new revision of nodeID's output and returns the entry.
// The value map is deep-copied so later mutation by the producer cannot leak
// into committed history.
func (c *ContextStore) Commit(nodeID string, value map[string]any, schema string) (ContextEntry, error) {
	copied, err := deepCopyValue(value)
	if err != nil {
		return ContextEntry{}, fmt.Errorf("commit for node %s: %w", nodeID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := ContextEntry{
		NodeID:      nodeID,
		RunID:       c.runID,
		Revision:    len(c.entries[nodeID]) + 1,
		Value:       copied,
		Schema:      schema,
		CommittedAt: time.Now().UTC(),
	}
	c.entries[nodeID] = append(c.entries[nodeID], entry)
	return entry, nil
}

// Latest returns the most recent committed entry for nodeID.
func (c *ContextStore) Latest(nodeID string) (ContextEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	revs := c.entries[nodeID]
	if len(revs) == 0 {
		return ContextEntry{}, false
	}
	return revs[len(revs)-1], true
}

// Global returns the value of a global context key.
func (c *ContextStore) Global(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.globals[key]
	return v, ok
}

// Globals returns a copy of the global context map.
func (c *ContextStore) Globals() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.globals))
	for k, v := range c.globals {
		out[k] = v
	}
	return out
}

// ContextSnapshot is a point-in-time copy of a ContextStore, embedded in
// checkpoints. Entries hold full revision history in commit order.
type ContextSnapshot struct {
	Globals map[string]any `json:"globals"`
	Entries []ContextEntry `json:"entries"`
}

// Snapshot produces an independent deep copy of the store's contents.
// Safe to call concurrently with commits.
func (c *ContextStore) Snapshot() (ContextSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := ContextSnapshot{Globals: make(map[string]any, len(c.globals))}
	for k, v := range c.globals {
		snap.Globals[k] = v
	}
	for _, nodeID := range sortedKeys(c.entries) {
		snap.Entries = append(snap.Entries, c.entries[nodeID]...)
	}

	// JSON round-trip detaches nested maps from live state.
	data, err := json.Marshal(snap)
	if err != nil {
		return ContextSnapshot{}, fmt.Errorf("snapshot context store: %w", err)
	}
	var copied ContextSnapshot
	if err := json.Unmarshal(data, &copied); err != nil {
		return ContextSnapshot{}, fmt.Errorf("snapshot context store: %w", err)
	}
	return copied, nil
}

// restoreContext rebuilds a ContextStore from a snapshot, preserving revision
// order per node.
func restoreContext(runID string, snap ContextSnapshot) *ContextStore {
	store := NewContextStore(runID, snap.Globals)
	for _, entry := range snap.Entries {
		entry.RunID = runID
		store.entries[entry.NodeID] = append(store.entries[entry.NodeID], entry)
	}
	return store
}

// deepCopyValue copies an output payload via JSON round-trip. Works for any
// JSON-serializable value; committed payloads must be JSON-serializable
// anyway for checkpointing.
func deepCopyValue(value map[string]any) (map[string]any, error) {
	if value == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var copied map[string]any
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return copied, nil
}

func sortedKeys(m map[string][]ContextEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
