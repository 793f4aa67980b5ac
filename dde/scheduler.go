// Package dde implements a dependency-driven execution engine: workflows are
// DAGs of nodes, a node runs as soon as its dependencies are satisfied, and
// every state transition is checkpointed so an interrupted run resumes from
// its last committed point.
//
// With a contract registry attached, satisfaction is relaxed: a consumer may
// start against an activated mock of its producer's output before the
// producer finishes, and the engine reconciles the real output against the
// contract afterwards, reworking consumers when it diverges.
package dde

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/flowdag/dde-go/dde/contract"
	"github.com/flowdag/dde-go/dde/emit"
)

// errRunTimeout is installed as the cancellation cause when the run-level
// timeout elapses, so it can be told apart from caller cancellation.
var errRunTimeout = errors.New("run timeout elapsed")

// Scheduler executes one workflow graph. It is safe to reuse for multiple
// runs, sequentially or concurrently; all per-run state lives in the run.
type Scheduler struct {
	graph       *Graph
	tasks       TaskExecutor
	cfg         config
	checkpoints *CheckpointManager
	runner      *runner
}

// NewScheduler validates the graph and builds a scheduler for it.
//
// A checkpoint store is mandatory (WithStore); ephemeral runs must opt in
// explicitly with a store.MemStore. When nodes declare contracts, a registry
// (WithRegistry) must be attached and every referenced contract must be
// registered, with its producer wired consistently into the graph.
func NewScheduler(graph *Graph, tasks TaskExecutor, opts ...Option) (*Scheduler, error) {
	if graph == nil {
		return nil, &SchedulerError{Message: "graph is required", Code: "NO_GRAPH"}
	}
	if tasks == nil {
		return nil, &SchedulerError{Message: "task executor is required", Code: "NO_EXECUTOR"}
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.snapshots == nil {
		return nil, &SchedulerError{Message: "checkpoint store is required, use WithStore", Code: "NO_STORE"}
	}

	if err := validateContractWiring(graph, cfg.registry); err != nil {
		return nil, err
	}

	checkpoints, err := NewCheckpointManager(cfg.snapshots)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		graph:       graph,
		tasks:       tasks,
		cfg:         cfg,
		checkpoints: checkpoints,
		runner:      newRunner(tasks, cfg.condPolicy, cfg.defaultNodeTimeout),
	}, nil
}

// validateContractWiring cross-checks node contract declarations against the
// registry: produced contracts must name the node as producer, and consumed
// contracts must be produced by one of the node's dependencies.
func validateContractWiring(g *Graph, reg *contract.Registry) error {
	for _, id := range g.NodeIDs() {
		node, _ := g.Node(id)
		if len(node.Produces) == 0 && len(node.Consumes) == 0 {
			continue
		}
		if reg == nil {
			return &SchedulerError{
				Message: "node " + id + " declares contracts but no registry is attached, use WithRegistry",
				Code:    "NO_REGISTRY",
			}
		}
		for _, cid := range node.Produces {
			c, err := reg.Get(cid)
			if err != nil {
				return fmt.Errorf("node %s produces: %w", id, err)
			}
			if c.Producer != id {
				return &SchedulerError{
					Message: fmt.Sprintf("node %s declares contract %s but its registered producer is %s", id, cid, c.Producer),
					Code:    "CONTRACT_PRODUCER_MISMATCH",
				}
			}
		}
		for _, cid := range node.Consumes {
			c, err := reg.Get(cid)
			if err != nil {
				return fmt.Errorf("node %s consumes: %w", id, err)
			}
			if !containsString(node.DependsOn, c.Producer) {
				return &SchedulerError{
					Message: fmt.Sprintf("node %s consumes contract %s produced by %s, which is not a dependency", id, cid, c.Producer),
					Code:    "CONTRACT_DEPENDENCY_MISMATCH",
				}
			}
		}
	}
	return nil
}

// runState is the mutable state of one run, owned by the control loop.
// The mutex guards only the event sequence counter, which retry events
// emitted from worker goroutines also touch.
type runState struct {
	mu            sync.Mutex
	runID         string
	status        RunStatus
	nodes         map[string]*NodeState
	context       *ContextStore
	seq           int
	sinceCkpt     int
	records       []contract.Record
	pendingRework map[string]bool
	candidates    map[string]bool
	startedAt     time.Time
}

// recandidate marks a node for the next readiness scan.
func (rs *runState) recandidate(id string) {
	rs.candidates[id] = true
}

// Start executes the graph from scratch with the given global context and
// returns the run report. The report is non-nil whenever a run ID was
// assigned, including failed and cancelled runs.
//
// The returned error reflects infrastructure problems or cancellation; a run
// in which nodes failed returns a nil error with report.Status == RunFailed.
func (s *Scheduler) Start(ctx context.Context, globals map[string]any) (*RunReport, error) {
	runID := uuid.NewString()
	rs := &runState{
		runID:         runID,
		status:        RunRunning,
		nodes:         make(map[string]*NodeState, s.graph.Len()),
		context:       NewContextStore(runID, globals),
		pendingRework: make(map[string]bool),
		startedAt:     time.Now().UTC(),
	}
	for _, id := range s.graph.NodeIDs() {
		rs.nodes[id] = &NodeState{Status: StatusPending}
	}

	s.emit(rs, emit.RunStarted, "", map[string]any{"graph_id": s.graph.ID, "graph_version": s.graph.Version})
	if err := s.checkpoint(ctx, rs, true); err != nil {
		return nil, err
	}
	return s.execute(ctx, rs)
}

// Resume restores the checkpoint for runID and continues execution from it.
// Nodes that were RUNNING at the time of the snapshot restart from PENDING;
// committed outputs are preserved. Resuming a FAILED or CANCELLED run gives
// its failed nodes a fresh retry budget while keeping their cumulative
// attempt counters. Resuming against a different graph definition than the
// one that produced the checkpoint is rejected.
func (s *Scheduler) Resume(ctx context.Context, runID string) (*RunReport, error) {
	snap, err := s.checkpoints.Restore(ctx, runID)
	if err != nil {
		return nil, err
	}
	if snap.GraphID != s.graph.ID || snap.GraphVersion != s.graph.Version {
		return nil, &SchedulerError{
			Message: fmt.Sprintf("checkpoint for run %s belongs to graph %s@%s, scheduler runs %s@%s",
				runID, snap.GraphID, snap.GraphVersion, s.graph.ID, s.graph.Version),
			Code: "GRAPH_MISMATCH",
		}
	}

	rs := &runState{
		runID:         runID,
		status:        RunRunning,
		nodes:         make(map[string]*NodeState, len(snap.Nodes)),
		context:       restoreContext(runID, snap.Context),
		seq:           snap.EventSeq,
		pendingRework: make(map[string]bool),
		startedAt:     time.Now().UTC(),
	}
	for id, ns := range snap.Nodes {
		restored := ns.clone()
		rs.nodes[id] = &restored
	}
	for _, id := range s.graph.NodeIDs() {
		if _, ok := rs.nodes[id]; !ok {
			return nil, &SchedulerError{
				Message: "checkpoint for run " + runID + " has no state for node " + id,
				Code:    "GRAPH_MISMATCH",
			}
		}
	}

	if snap.Status == RunSucceeded {
		rs.status = snap.Status
		return s.report(rs), nil
	}
	if snap.Status == RunFailed || snap.Status == RunCancelled {
		// Resuming a failed or cancelled run retries its failed nodes.
		// Attempt counters carry over; committed outputs stay committed.
		for _, st := range rs.nodes {
			if st.Status == StatusFailed {
				st.Status = StatusPending
				st.LastError = ""
				st.StartedAt = time.Time{}
				st.FinishedAt = time.Time{}
			}
		}
	}
	return s.execute(ctx, rs)
}

// execute is the control loop. It owns all run state; worker goroutines only
// run node attempts and report outcomes over the results channel.
//
// Dispatch is deterministic: ready nodes are started in graph declaration
// order, bounded by the worker semaphore. On cancellation no new attempts or
// retries start, but attempts already in flight finish their current try.
func (s *Scheduler) execute(ctx context.Context, rs *runState) (*RunReport, error) {
	if s.cfg.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.cfg.runTimeout, errRunTimeout)
		defer cancel()
	}

	sem := semaphore.NewWeighted(int64(s.cfg.maxWorkers))
	results := make(chan Outcome)
	inflight := 0
	var infraErr error

	rs.candidates = make(map[string]bool, len(rs.nodes))
	for id, st := range rs.nodes {
		if st.Status == StatusPending {
			rs.candidates[id] = true
		}
	}

	for {
		if infraErr == nil && ctx.Err() == nil {
			n, err := s.dispatch(ctx, rs, sem, results)
			inflight += n
			if err != nil {
				infraErr = err
			}
		}
		if inflight == 0 {
			break
		}
		outcome := <-results
		sem.Release(1)
		inflight--
		if err := s.apply(ctx, rs, outcome); err != nil && infraErr == nil {
			infraErr = err
		}
	}

	s.finish(ctx, rs)
	if infraErr != nil {
		return s.report(rs), infraErr
	}
	if ctx.Err() != nil && rs.status == RunCancelled {
		return s.report(rs), context.Cause(ctx)
	}
	return s.report(rs), nil
}

// dispatch starts every candidate node that is ready, in declaration order,
// until the worker semaphore is exhausted. Returns the number of nodes
// started.
//
// Readiness is only recomputed for candidates: nodes whose dependencies have
// not changed since the last scan are skipped. A node leaves the candidate
// set when it dispatches or when a dependency is found unsatisfied, and
// re-enters it when a dependency reaches a terminal state or a rework resets
// it to PENDING.
func (s *Scheduler) dispatch(ctx context.Context, rs *runState, sem *semaphore.Weighted, results chan<- Outcome) (int, error) {
	started := 0
	readyDepth := 0
	for _, id := range s.graph.NodeIDs() {
		if !rs.candidates[id] {
			continue
		}
		st := rs.nodes[id]
		if st.Status != StatusPending {
			delete(rs.candidates, id)
			continue
		}
		node, _ := s.graph.Node(id)
		input, ready := s.gatherInput(rs, node)
		if !ready {
			delete(rs.candidates, id)
			continue
		}
		readyDepth++
		if !sem.TryAcquire(1) {
			// No worker free; stays a candidate for the next scan.
			continue
		}
		readyDepth--
		delete(rs.candidates, id)

		// READY is momentary here: dispatch immediately follows readiness.
		st.Status = StatusReady
		st.Status = StatusRunning
		st.StartedAt = time.Now().UTC()
		st.LastError = ""
		s.emit(rs, emit.NodeStarted, id, map[string]any{"attempt": st.Attempts + 1, "mocks": input.Mocks != nil})
		if err := s.checkpoint(ctx, rs, false); err != nil {
			sem.Release(1)
			st.Status = StatusPending
			rs.recandidate(id)
			return started, err
		}

		if s.cfg.metrics != nil {
			s.cfg.metrics.InflightNodes.Inc()
		}
		priorAttempts := st.Attempts
		started++
		go func(node *Node, input Input, prior int) {
			results <- s.runNode(ctx, rs, node, input, prior)
		}(node, input, priorAttempts)
	}
	if s.cfg.metrics != nil {
		s.cfg.metrics.ReadyQueueDepth.Set(float64(readyDepth))
	}
	return started, nil
}

// runNode executes one node in a worker goroutine, wiring retry observation
// into the event stream and metrics.
func (s *Scheduler) runNode(ctx context.Context, rs *runState, node *Node, input Input, priorAttempts int) Outcome {
	r := *s.runner
	r.onRetry = func(nodeID string, attempt int, delay time.Duration, cause error) {
		if s.cfg.metrics != nil {
			s.cfg.metrics.RetriesTotal.WithLabelValues(nodeID).Inc()
		}
		s.emit(rs, emit.NodeRetried, nodeID, map[string]any{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
			"error":    cause.Error(),
		})
	}
	input.RunID = rs.runID
	return r.run(ctx, node, input, priorAttempts)
}

// gatherInput decides whether the node is dispatchable and, if so, builds
// its input view.
//
// A dependency is covered when it is satisfied (COMPLETED or SKIPPED), or
// when every contract this node consumes from it has an active, unexpired
// mock. With speculation enabled, missing mocks for a live producer are
// activated on demand. A failed dependency is never covered; the node stays
// PENDING and is reported BLOCKED at run end.
func (s *Scheduler) gatherInput(rs *runState, node *Node) (Input, bool) {
	input := Input{
		Globals: rs.context.Globals(),
		Outputs: make(map[string]map[string]any, len(node.DependsOn)),
	}
	for _, dep := range node.DependsOn {
		depState := rs.nodes[dep]
		if depState.Status.Satisfied() {
			if entry, ok := rs.context.Latest(dep); ok {
				input.Outputs[dep] = entry.Value
			}
			continue
		}
		if s.cfg.registry == nil || depState.Status == StatusFailed {
			return Input{}, false
		}

		consumed := s.contractsFrom(node, dep)
		if len(consumed) == 0 {
			return Input{}, false
		}
		for _, cid := range consumed {
			payload, active := s.cfg.registry.MockFor(cid)
			if !active && s.cfg.speculation {
				activated, err := s.cfg.registry.ActivateMock(cid)
				if err != nil {
					return Input{}, false
				}
				payload, active = activated, true
			}
			if !active {
				return Input{}, false
			}
			if input.Mocks == nil {
				input.Mocks = make(map[string]map[string]any)
			}
			input.Mocks[cid] = payload
			merged := input.Outputs[dep]
			if merged == nil {
				merged = make(map[string]any, len(payload))
				input.Outputs[dep] = merged
			}
			for k, v := range payload {
				merged[k] = v
			}
		}
	}
	return input, true
}

// contractsFrom returns the contract IDs node consumes whose registered
// producer is dep, in declaration order.
func (s *Scheduler) contractsFrom(node *Node, dep string) []string {
	var out []string
	for _, cid := range node.Consumes {
		c, err := s.cfg.registry.Get(cid)
		if err != nil {
			continue
		}
		if c.Producer == dep {
			out = append(out, cid)
		}
	}
	return out
}

// apply folds a worker outcome into the run state. Runs on the control loop,
// so state mutation, context commit and checkpoint are a single ordered
// sequence: observers never see a COMPLETED status whose output is not yet
// readable.
func (s *Scheduler) apply(ctx context.Context, rs *runState, out Outcome) error {
	st := rs.nodes[out.NodeID]

	if rs.pendingRework[out.NodeID] {
		// A reconciliation invalidated this node's inputs while it was in
		// flight. The outcome is discarded; only the attempt count survives.
		delete(rs.pendingRework, out.NodeID)
		st.Status = StatusPending
		rs.recandidate(out.NodeID)
		st.Attempts = out.Attempts
		st.OutputRef = ""
		st.UsedMocks = nil
		st.LastError = ""
		st.StartedAt = time.Time{}
		st.FinishedAt = time.Time{}
		return s.checkpoint(ctx, rs, false)
	}

	st.Attempts = out.Attempts
	st.StartedAt = out.StartedAt
	st.FinishedAt = out.FinishedAt
	if s.cfg.metrics != nil {
		s.cfg.metrics.InflightNodes.Dec()
		s.cfg.metrics.NodeDuration.WithLabelValues(out.NodeID, string(out.Status)).
			Observe(float64(out.FinishedAt.Sub(out.StartedAt).Milliseconds()))
	}

	node, _ := s.graph.Node(out.NodeID)
	switch out.Status {
	case StatusCompleted:
		entry, err := rs.context.Commit(out.NodeID, out.Output, primarySchema(node))
		if err != nil {
			st.Status = StatusFailed
			st.LastError = err.Error()
			s.emit(rs, emit.NodeFailed, out.NodeID, map[string]any{"error": err.Error(), "attempts": st.Attempts})
			break
		}
		st.Status = StatusCompleted
		st.OutputRef = entry.Ref()
		st.UsedMocks = out.UsedMocks
		meta := map[string]any{"output_ref": entry.Ref(), "attempts": st.Attempts}
		if out.CondErr != nil {
			meta["condition_error"] = out.CondErr.Error()
		}
		s.emit(rs, emit.NodeCompleted, out.NodeID, meta)
		s.reconcile(rs, node, out.Output)

	case StatusFailed:
		st.Status = StatusFailed
		if out.Err != nil {
			st.LastError = out.Err.Error()
		}
		s.emit(rs, emit.NodeFailed, out.NodeID, map[string]any{"error": st.LastError, "attempts": st.Attempts})
		s.invalidateSpeculation(rs, node)

	case StatusSkipped:
		st.Status = StatusSkipped
		meta := map[string]any{}
		if out.CondErr != nil {
			meta["condition_error"] = out.CondErr.Error()
		}
		s.emit(rs, emit.NodeSkipped, out.NodeID, meta)
	}

	if st.Status.Terminal() {
		for _, dependent := range s.graph.Dependents(out.NodeID) {
			rs.recandidate(dependent)
		}
	}
	return s.checkpoint(ctx, rs, st.Status.Terminal())
}

// reconcile checks the producer's real output against every contract it
// produces and reworks consumers whose speculative inputs turned out wrong.
func (s *Scheduler) reconcile(rs *runState, producer *Node, output Output) {
	if s.cfg.registry == nil {
		return
	}
	for _, cid := range producer.Produces {
		record, err := s.cfg.registry.Reconcile(cid, output)
		if err != nil {
			continue
		}
		if record.Verdict == contract.VerdictViolated {
			record.Rework = s.reworkConsumers(rs, cid)
			if s.cfg.metrics != nil {
				s.cfg.metrics.ContractViolations.WithLabelValues(cid).Inc()
			}
			s.emit(rs, emit.ContractViolated, producer.ID, map[string]any{
				"contract_id": cid,
				"diff":        record.Diff,
				"rework":      record.Rework,
			})
		}
		rs.records = append(rs.records, record)
	}
}

// reworkConsumers resets every node that executed against the violated
// contract's mock. Completed consumers go straight back to PENDING with
// their attempt count preserved; in-flight consumers are marked so their
// outcome is discarded when it arrives.
func (s *Scheduler) reworkConsumers(rs *runState, contractID string) []string {
	var reworked []string
	for _, id := range s.graph.NodeIDs() {
		st := rs.nodes[id]
		if !containsString(st.UsedMocks, contractID) {
			continue
		}
		switch st.Status {
		case StatusCompleted:
			st.Status = StatusPending
			rs.recandidate(id)
			st.OutputRef = ""
			st.UsedMocks = nil
			st.LastError = ""
			st.StartedAt = time.Time{}
			st.FinishedAt = time.Time{}
			reworked = append(reworked, id)
		case StatusRunning:
			rs.pendingRework[id] = true
			reworked = append(reworked, id)
		}
	}
	return reworked
}

// invalidateSpeculation handles a failed producer: its mocks are withdrawn
// and consumers that ran against them are reset. With the producer FAILED
// those consumers can never become ready again and end the run BLOCKED.
func (s *Scheduler) invalidateSpeculation(rs *runState, producer *Node) {
	if s.cfg.registry == nil {
		return
	}
	for _, cid := range producer.Produces {
		s.cfg.registry.DeactivateMock(cid)
		s.reworkConsumers(rs, cid)
	}
	// UsedMocks is only recorded on completion, so in-flight consumers are
	// found by re-deriving which contracts they consume from this producer.
	for id, st := range rs.nodes {
		if st.Status != StatusRunning {
			continue
		}
		node, _ := s.graph.Node(id)
		if len(s.contractsFrom(node, producer.ID)) > 0 && !rs.nodes[producer.ID].Status.Satisfied() {
			rs.pendingRework[id] = true
		}
	}
}

// finish computes the terminal run status once the loop is quiescent.
func (s *Scheduler) finish(ctx context.Context, rs *runState) {
	switch {
	case ctx.Err() != nil && !errors.Is(context.Cause(ctx), errRunTimeout) && !s.allSatisfied(rs):
		rs.status = RunCancelled
	case s.allSatisfied(rs):
		rs.status = RunSucceeded
	default:
		rs.status = RunFailed
	}

	s.emit(rs, emit.RunCompleted, "", map[string]any{"status": string(rs.status)})
	if s.cfg.metrics != nil {
		s.cfg.metrics.RunsTotal.WithLabelValues(string(rs.status)).Inc()
	}

	if rs.status == RunSucceeded {
		// The run is done; its checkpoint has served its purpose.
		_ = s.checkpoints.Delete(context.WithoutCancel(ctx), rs.runID)
		return
	}
	_ = s.checkpoint(ctx, rs, true)
}

func (s *Scheduler) allSatisfied(rs *runState) bool {
	for _, st := range rs.nodes {
		if !st.Status.Satisfied() {
			return false
		}
	}
	return true
}

// checkpoint saves a snapshot of the run. Interval batching applies to
// routine transitions; terminal ones always persist.
func (s *Scheduler) checkpoint(ctx context.Context, rs *runState, force bool) error {
	rs.sinceCkpt++
	if !force && rs.sinceCkpt < s.cfg.checkpointEvery {
		return nil
	}
	rs.sinceCkpt = 0

	ctxSnap, err := rs.context.Snapshot()
	if err != nil {
		return err
	}
	snap := Snapshot{
		RunID:        rs.runID,
		GraphID:      s.graph.ID,
		GraphVersion: s.graph.Version,
		Status:       rs.status,
		SavedAt:      time.Now().UTC(),
		Nodes:        make(map[string]NodeState, len(rs.nodes)),
		Context:      ctxSnap,
		EventSeq:     rs.currentSeq(),
	}
	for id, st := range rs.nodes {
		snap.Nodes[id] = st.clone()
	}
	// Detached from run cancellation: the terminal snapshot of a cancelled
	// run must still persist, it is what Resume picks up.
	if err := s.checkpoints.Save(context.WithoutCancel(ctx), snap); err != nil {
		return err
	}
	if s.cfg.metrics != nil {
		s.cfg.metrics.CheckpointsSaved.Inc()
	}
	s.emit(rs, emit.CheckpointSaved, "", nil)
	return nil
}

// emit assigns the next sequence number and forwards the event. Safe from
// worker goroutines; everything except Seq assignment is handled by the
// configured emitter.
func (s *Scheduler) emit(rs *runState, t emit.EventType, nodeID string, meta map[string]any) {
	rs.mu.Lock()
	rs.seq++
	seq := rs.seq
	rs.mu.Unlock()

	s.cfg.emitter.Emit(emit.Event{
		Type:      t,
		RunID:     rs.runID,
		NodeID:    nodeID,
		Seq:       seq,
		Timestamp: time.Now().UTC(),
		Meta:      meta,
	})
}

func (rs *runState) currentSeq() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.seq
}

// report assembles the run report, applying the BLOCKED label to pending
// nodes made unreachable by a failure.
func (s *Scheduler) report(rs *runState) *RunReport {
	blocked := s.blockedNodes(rs)
	rep := &RunReport{
		RunID:           rs.runID,
		GraphID:         s.graph.ID,
		GraphVersion:    s.graph.Version,
		Status:          rs.status,
		StartedAt:       rs.startedAt,
		FinishedAt:      time.Now().UTC(),
		Reconciliations: rs.records,
		Events:          rs.currentSeq(),
	}
	for _, id := range s.graph.NodeIDs() {
		st := rs.nodes[id]
		nr := NodeReport{
			NodeID:     id,
			Status:     st.Status,
			Attempts:   st.Attempts,
			Error:      st.LastError,
			OutputRef:  st.OutputRef,
			UsedMocks:  append([]string(nil), st.UsedMocks...),
			StartedAt:  st.StartedAt,
			FinishedAt: st.FinishedAt,
		}
		if st.Status == StatusPending && blocked[id] {
			nr.Status = StatusBlocked
		}
		if entry, ok := rs.context.Latest(id); ok && st.Status == StatusCompleted {
			nr.Output = entry.Value
		}
		rep.Nodes = append(rep.Nodes, nr)
	}
	return rep
}

// blockedNodes computes the set of pending nodes with a failed or blocked
// ancestor. Iterates to a fixed point so blockage propagates down chains.
func (s *Scheduler) blockedNodes(rs *runState) map[string]bool {
	blocked := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, id := range s.graph.NodeIDs() {
			if blocked[id] || rs.nodes[id].Status != StatusPending {
				continue
			}
			node, _ := s.graph.Node(id)
			for _, dep := range node.DependsOn {
				if rs.nodes[dep].Status == StatusFailed || blocked[dep] {
					blocked[id] = true
					changed = true
					break
				}
			}
		}
	}
	return blocked
}

func primarySchema(node *Node) string {
	if len(node.Produces) == 1 {
		return node.Produces[0]
	}
	return ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
