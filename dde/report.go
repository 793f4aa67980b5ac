package dde

import (
	"time"

	"github.com/flowdag/dde-go/dde/contract"
)

// NodeReport is the per-node section of a RunReport.
type NodeReport struct {
	NodeID string `json:"node_id"`

	// Status is the node's disposition at run end. Unlike the stored state,
	// this may be BLOCKED: a node that stayed PENDING because a failed
	// ancestor made it unreachable.
	Status NodeStatus `json:"status"`

	Attempts  int            `json:"attempts"`
	Error     string         `json:"error,omitempty"`
	OutputRef string         `json:"output_ref,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	UsedMocks []string       `json:"used_mocks,omitempty"`

	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// RunReport summarizes a finished (or cancelled) run.
type RunReport struct {
	RunID        string    `json:"run_id"`
	GraphID      string    `json:"graph_id"`
	GraphVersion string    `json:"graph_version"`
	Status       RunStatus `json:"status"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Nodes is in graph declaration order.
	Nodes []NodeReport `json:"nodes"`

	// Reconciliations records every contract check performed during the run,
	// consistent and violated alike.
	Reconciliations []contract.Record `json:"reconciliations,omitempty"`

	// Events is the total number of events the run emitted.
	Events int `json:"events"`
}

// Node returns the report for the given node ID.
func (r *RunReport) Node(id string) (NodeReport, bool) {
	for _, nr := range r.Nodes {
		if nr.NodeID == id {
			return nr, true
		}
	}
	return NodeReport{}, false
}

// Failed returns the IDs of nodes that ended FAILED, in declaration order.
func (r *RunReport) Failed() []string {
	var out []string
	for _, nr := range r.Nodes {
		if nr.Status == StatusFailed {
			out = append(out, nr.NodeID)
		}
	}
	return out
}

// Blocked returns the IDs of nodes reported BLOCKED, in declaration order.
func (r *RunReport) Blocked() []string {
	var out []string
	for _, nr := range r.Nodes {
		if nr.Status == StatusBlocked {
			out = append(out, nr.NodeID)
		}
	}
	return out
}
