package dde

import (
	"time"
)

// RetryPolicy defines automatic retry behavior for transient node failures.
//
// On a transient failure of attempt n (1-based), the executor waits
//
//	delay = BaseDelay * 2^(n-1)   when Exponential is set
//	delay = BaseDelay             otherwise
//
// capped at MaxDelay when MaxDelay > 0, then retries until MaxAttempts is
// exhausted. Fatal errors are never retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of execution attempts, including the
	// first. Must be >= 1; a value of 1 means no retries. Zero is normalized
	// to 1.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// Exponential doubles the delay after each failed attempt.
	Exponential bool `json:"exponential" yaml:"exponential"`

	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration `json:"max_delay,omitempty" yaml:"max_delay"`
}

// Validate checks the policy constraints:
//   - MaxAttempts must be >= 0 (0 is treated as 1)
//   - MaxDelay, when set together with BaseDelay, must be >= BaseDelay
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 0 {
		return ErrInvalidRetryPolicy
	}
	if p.MaxDelay > 0 && p.BaseDelay > 0 && p.MaxDelay < p.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// attempts returns the effective attempt budget.
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// backoff computes the delay after failed attempt n (1-based).
func (p RetryPolicy) backoff(failedAttempt int) time.Duration {
	delay := p.BaseDelay
	if p.Exponential && failedAttempt > 1 {
		delay = p.BaseDelay * (1 << (failedAttempt - 1))
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Node is one schedulable unit of work (a phase or task) in the workflow DAG.
//
// Nodes are pure definition: they carry no runtime status. The scheduler keeps
// a NodeState per node per run. Definitions are immutable once the graph is
// handed to a Scheduler.
type Node struct {
	// ID uniquely identifies the node within its graph.
	ID string `json:"id" yaml:"id"`

	// DependsOn lists node IDs whose outputs this node consumes. Every entry
	// must resolve to a node in the same graph; Validate enforces this and
	// rejects cycles.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on"`

	// Retry configures transient-failure retries. The zero value means a
	// single attempt with no backoff.
	Retry RetryPolicy `json:"retry,omitempty" yaml:"retry"`

	// Timeout bounds each execution attempt. Zero falls back to the
	// scheduler's default node timeout; both zero means unlimited.
	// A timed-out attempt counts as a transient failure.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout"`

	// Condition is an optional boolean expression over the run context,
	// evaluated before the first attempt. When it evaluates to false the node
	// is SKIPPED and its dependents treat it as satisfied. See dde/condition
	// for the expression language.
	Condition string `json:"condition,omitempty" yaml:"condition"`

	// Produces lists contract IDs this node is the producer for.
	Produces []string `json:"produces,omitempty" yaml:"produces"`

	// Consumes lists contract IDs this node consumes. A consumed contract
	// whose producer has not completed may be satisfied speculatively by an
	// active mock.
	Consumes []string `json:"consumes,omitempty" yaml:"consumes"`
}

// Graph is an immutable workflow definition: a set of nodes and their
// dependency edges.
//
// Build a Graph with NewGraph and Add, then hand it to a Scheduler. Add
// preserves declaration order, which the scheduler uses as the deterministic
// tie-break when several nodes become ready in the same instant.
type Graph struct {
	// ID identifies the workflow definition.
	ID string

	// Version identifies the definition revision. Checkpoints record it so a
	// resume against a different revision can be rejected.
	Version string

	nodes map[string]*Node
	order []string
}

// NewGraph creates an empty workflow graph.
func NewGraph(id, version string) *Graph {
	return &Graph{
		ID:      id,
		Version: version,
		nodes:   make(map[string]*Node),
	}
}

// Add registers a node definition. Nodes must be added before the graph is
// validated or run.
//
// Returns an error if the ID is empty or already registered.
func (g *Graph) Add(n Node) error {
	if n.ID == "" {
		return &SchedulerError{Message: "node ID cannot be empty", Code: "EMPTY_NODE_ID"}
	}
	if _, exists := g.nodes[n.ID]; exists {
		return &SchedulerError{Message: "duplicate node ID: " + n.ID, Code: "DUPLICATE_NODE"}
	}
	if err := n.Retry.Validate(); err != nil {
		return &SchedulerError{Message: "node " + n.ID + ": " + err.Error(), Code: "INVALID_RETRY_POLICY"}
	}
	copied := n
	copied.DependsOn = dedupe(n.DependsOn)
	copied.Produces = dedupe(n.Produces)
	copied.Consumes = dedupe(n.Consumes)
	g.nodes[n.ID] = &copied
	g.order = append(g.order, n.ID)
	return nil
}

// dedupe copies a list, dropping repeated entries while keeping first-seen
// order. Declaring the same dependency twice must not double-count it.
func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Node returns the definition for the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns all node IDs in declaration order.
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// Dependents returns the IDs of nodes that directly depend on id, in
// declaration order.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for _, candidate := range g.order {
		for _, dep := range g.nodes[candidate].DependsOn {
			if dep == id {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

// Validate checks that every dependency resolves to a known node and that the
// graph is acyclic.
//
// Cycle detection is a Kahn elimination pass: track in-degrees, repeatedly
// remove zero-in-degree nodes. Any nodes left over could not be topologically
// ordered and form the cycle witness reported in the CycleError.
func (g *Graph) Validate() error {
	if len(g.order) == 0 {
		return &SchedulerError{Message: "graph " + g.ID + " has no nodes", Code: "EMPTY_GRAPH"}
	}

	indegree := make(map[string]int, len(g.nodes))
	for _, id := range g.order {
		node := g.nodes[id]
		for _, dep := range node.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return &SchedulerError{
					Message: "node " + id + " depends on unknown node " + dep,
					Code:    "UNKNOWN_DEPENDENCY",
				}
			}
			if dep == id {
				return &CycleError{GraphID: g.ID, Nodes: []string{id}}
			}
		}
		indegree[id] = len(node.DependsOn)
	}

	// Kahn's algorithm over forward edges.
	queue := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	removed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		removed++
		for _, dependent := range g.Dependents(id) {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if removed != len(g.order) {
		var witness []string
		for _, id := range g.order {
			if indegree[id] > 0 {
				witness = append(witness, id)
			}
		}
		return &CycleError{GraphID: g.ID, Nodes: witness}
	}
	return nil
}
