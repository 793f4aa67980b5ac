// Package emit provides the execution event stream for the engine.
package emit

import "time"

// EventType identifies the kind of execution event.
type EventType string

const (
	// RunStarted is emitted once per run, before any node is dispatched.
	RunStarted EventType = "run_started"

	// NodeStarted is emitted when a node transitions READY → RUNNING.
	NodeStarted EventType = "node_started"

	// NodeCompleted is emitted after a node's output has been committed to
	// the context store. Observers never see this event before the output
	// is readable.
	NodeCompleted EventType = "node_completed"

	// NodeFailed is emitted when a node exhausts its retries or fails
	// fatally. Meta carries "error" and "attempts".
	NodeFailed EventType = "node_failed"

	// NodeSkipped is emitted when a node's condition evaluates to false.
	NodeSkipped EventType = "node_skipped"

	// NodeRetried is emitted before a backoff sleep. Meta carries "attempt"
	// and "delay_ms".
	NodeRetried EventType = "node_retried"

	// ContractViolated is emitted when reconciliation finds the producer's
	// real output in breach of a contract consumed speculatively. Meta
	// carries "contract_id", "diff" and "rework".
	ContractViolated EventType = "contract_violated"

	// CheckpointSaved is emitted after a snapshot has been durably stored.
	CheckpointSaved EventType = "checkpoint_saved"

	// RunCompleted is emitted once per run with Meta["status"] set to the
	// terminal run status.
	RunCompleted EventType = "run_completed"
)

// Event is one entry in the ordered execution event stream.
//
// The scheduler assigns Seq monotonically within a run, so external
// observers can totally order events even when they arrive out of band.
type Event struct {
	// Type identifies the event kind.
	Type EventType `json:"type"`

	// RunID identifies the run that emitted this event.
	RunID string `json:"run_id"`

	// NodeID identifies the node concerned, empty for run-level events.
	NodeID string `json:"node_id,omitempty"`

	// Seq is the monotonic sequence number within the run, starting at 1.
	Seq int `json:"seq"`

	// Timestamp records when the scheduler emitted the event.
	Timestamp time.Time `json:"timestamp"`

	// Meta carries event-specific structured data. Common keys:
	//   - "error": failure message
	//   - "attempts": attempts consumed
	//   - "delay_ms": backoff delay before a retry
	//   - "contract_id", "diff", "rework": reconciliation details
	//   - "status": terminal run status on RunCompleted
	Meta map[string]any `json:"meta,omitempty"`
}
