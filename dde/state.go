package dde

import "time"

// NodeStatus is the runtime status of one node within one run.
//
// The lifecycle is:
//
//	PENDING → READY → RUNNING → {COMPLETED | FAILED | SKIPPED}
//
// Retries loop inside RUNNING; the attempt counter on NodeState records them.
// COMPLETED, FAILED and SKIPPED are terminal within a run, with two sanctioned
// exceptions to monotonicity:
//   - Restore resets RUNNING back to PENDING, because the interrupted attempt
//     was never known to have committed.
//   - Contract reconciliation resets a consumer from COMPLETED or RUNNING back
//     to PENDING for rework, preserving its attempt count.
//
// BLOCKED is a computed label, not a stored transition target: a PENDING node
// whose ancestry contains a FAILED node can never become READY and is reported
// as BLOCKED at run end.
type NodeStatus string

const (
	StatusPending   NodeStatus = "PENDING"
	StatusReady     NodeStatus = "READY"
	StatusRunning   NodeStatus = "RUNNING"
	StatusCompleted NodeStatus = "COMPLETED"
	StatusFailed    NodeStatus = "FAILED"
	StatusSkipped   NodeStatus = "SKIPPED"
	StatusBlocked   NodeStatus = "BLOCKED"
)

// Terminal reports whether the status ends a node's lifecycle within a run.
func (s NodeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Satisfied reports whether a dependent may treat a dependency with this
// status as met. Skipped dependencies satisfy their dependents; they do not
// block.
func (s NodeStatus) Satisfied() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// validTransitions enumerates the legal forward transitions of the node state
// machine. Reset paths (restore, reconciliation rework) are handled separately
// because they intentionally rewind the machine.
var validTransitions = map[NodeStatus][]NodeStatus{
	StatusPending: {StatusReady},
	StatusReady:   {StatusRunning},
	StatusRunning: {StatusCompleted, StatusFailed, StatusSkipped},
}

// CanTransition reports whether moving from s to next is a legal forward
// transition.
func (s NodeStatus) CanTransition(next NodeStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunStatus is the terminal disposition of a whole run.
type RunStatus string

const (
	// RunRunning means the dispatch loop is still making progress.
	RunRunning RunStatus = "RUNNING"

	// RunSucceeded means every node reached COMPLETED or SKIPPED.
	RunSucceeded RunStatus = "SUCCEEDED"

	// RunFailed means at least one node exhausted its retries or failed
	// fatally; blocked descendants are reported alongside it.
	RunFailed RunStatus = "FAILED"

	// RunCancelled means the run-level context was cancelled. In-flight
	// attempts were allowed to finish their current try, but no further
	// dispatch or retries took place. Distinct from RunFailed.
	RunCancelled RunStatus = "CANCELLED"
)

// NodeState is the mutable runtime record for one node in one run.
//
// It is owned exclusively by the scheduler's control loop; executors report
// outcomes over a channel and never mutate it directly. All fields are
// JSON-serializable so the state map can be embedded in checkpoints verbatim.
type NodeState struct {
	// Status is the current position in the node state machine.
	Status NodeStatus `json:"status"`

	// Attempts counts execution attempts made so far, across rework resets.
	// A node that succeeded on its third try finishes with Attempts == 3.
	Attempts int `json:"attempts"`

	// LastError holds the message of the most recent attempt failure.
	// Retained after FAILED so the run report can explain what went wrong.
	LastError string `json:"last_error,omitempty"`

	// OutputRef names the context entry holding this node's committed output,
	// in "nodeID@revision" form. Empty until COMPLETED.
	OutputRef string `json:"output_ref,omitempty"`

	// UsedMocks lists contract IDs whose mock payloads stood in for real
	// producer output during this node's execution. Non-empty only for
	// speculative executions; cleared when the node is reset for rework.
	UsedMocks []string `json:"used_mocks,omitempty"`

	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// clone returns an independent copy of the state.
func (ns *NodeState) clone() NodeState {
	out := *ns
	if ns.UsedMocks != nil {
		out.UsedMocks = append([]string(nil), ns.UsedMocks...)
	}
	return out
}
