package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory, organized
// by run ID, with query support.
//
// Intended for tests, dashboards and post-run analysis. All events are held
// in memory; for long-running production workloads prefer LogEmitter or
// OTelEmitter and clear runs as they finish.
//
// Thread-safe for concurrent use.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// Filter selects a subset of a run's history. Zero-valued fields match
// everything; set fields combine with AND logic.
type Filter struct {
	// Type matches events of one kind, e.g. NodeFailed.
	Type EventType

	// NodeID matches events concerning one node.
	NodeID string

	// MinSeq and MaxSeq bound the sequence range; nil means unbounded.
	MinSeq *int
	MaxSeq *int
}

// NewBufferedEmitter creates an empty in-memory emitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit stores the event under its run ID.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// History returns a copy of all events for the run, in emission order.
func (b *BufferedEmitter) History(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	events := b.events[runID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// HistoryWithFilter returns the run's events matching the filter, in
// emission order.
func (b *BufferedEmitter) HistoryWithFilter(runID string, filter Filter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if matches(event, filter) {
			result = append(result, event)
		}
	}
	return result
}

// Clear removes stored events. A non-empty runID clears only that run;
// empty clears everything.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}

func matches(event Event, filter Filter) bool {
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.NodeID != "" && event.NodeID != filter.NodeID {
		return false
	}
	if filter.MinSeq != nil && event.Seq < *filter.MinSeq {
		return false
	}
	if filter.MaxSeq != nil && event.Seq > *filter.MaxSeq {
		return false
	}
	return true
}
