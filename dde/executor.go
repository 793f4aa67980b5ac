package dde

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/flowdag/dde-go/dde/condition"
)

// TaskExecutor is the collaborator boundary: the unit of work performed
// inside a node. The engine schedules, retries and records; what actually
// happens during an attempt (an agent invocation, a build step, a shell
// command) lives behind this interface.
//
// Any returned error is treated as transient and retried per the node's
// RetryPolicy unless tagged with Fatal.
type TaskExecutor interface {
	// Execute runs one attempt of the node's work. The context carries the
	// per-attempt timeout. The returned output becomes the node's committed
	// context entry on success.
	Execute(ctx context.Context, nodeID string, input Input) (Output, error)
}

// TaskFunc adapts a plain function to the TaskExecutor interface.
//
//	tasks := dde.TaskFunc(func(ctx context.Context, nodeID string, in dde.Input) (dde.Output, error) {
//	    return dde.Output{"ok": true}, nil
//	})
type TaskFunc func(ctx context.Context, nodeID string, input Input) (Output, error)

// Execute implements TaskExecutor.
func (f TaskFunc) Execute(ctx context.Context, nodeID string, input Input) (Output, error) {
	return f(ctx, nodeID, input)
}

// Input is the read-only view of the run handed to a task attempt.
type Input struct {
	// RunID identifies the current run.
	RunID string

	// Attempt is the 1-based attempt number for this execution.
	Attempt int

	// Globals is a copy of the run's global context.
	Globals map[string]any

	// Outputs maps dependency node ID to that dependency's latest committed
	// output. Only satisfied (COMPLETED) dependencies appear here.
	Outputs map[string]map[string]any

	// Mocks maps contract ID to the mock payload standing in for a
	// not-yet-finished producer. Present only for speculative executions.
	Mocks map[string]map[string]any
}

// Output is a node's produced payload, committed to the context store on
// success. Must be JSON-serializable.
type Output map[string]any

// Outcome is the classified result of running one node to local completion
// (through all its retries). The scheduler commits outcomes atomically with
// the corresponding state transition.
type Outcome struct {
	NodeID     string
	Status     NodeStatus // StatusCompleted, StatusFailed or StatusSkipped
	Output     Output
	Err        error
	Attempts   int // total attempts consumed, cumulative across rework
	UsedMocks  []string
	StartedAt  time.Time
	FinishedAt time.Time

	// CondErr records a condition evaluation error that was forgiven under
	// the fail-open policy. Informational; surfaced on the event stream.
	CondErr error
}

// ConditionPolicy selects how a condition evaluation error is handled.
type ConditionPolicy int

const (
	// FailOpen executes the node when its condition cannot be evaluated.
	// This matches the engine's historical behavior: a missing context
	// variable should not silently drop a phase.
	FailOpen ConditionPolicy = iota

	// FailClosed fails the node with a ConditionError instead of guessing.
	// The error is fatal: no retries, dependents are blocked.
	FailClosed
)

// runner executes exactly one node through its retries and classifies the
// outcome. It holds the pieces of scheduler configuration the execution path
// needs, and an injectable sleep for deterministic backoff tests.
type runner struct {
	tasks          TaskExecutor
	condPolicy     ConditionPolicy
	defaultTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	onRetry        func(nodeID string, attempt int, delay time.Duration, cause error)
}

func newRunner(tasks TaskExecutor, condPolicy ConditionPolicy, defaultTimeout time.Duration) *runner {
	return &runner{
		tasks:          tasks,
		condPolicy:     condPolicy,
		defaultTimeout: defaultTimeout,
		sleep:          sleepWithContext,
	}
}

// run executes the node. priorAttempts carries attempts consumed before a
// rework reset, so the cumulative counter on NodeState keeps increasing.
//
// Cancellation semantics: the run-level context gates starting attempts and
// scheduling retries, but an attempt already in flight is allowed to finish
// its current try. The per-attempt context therefore detaches from the run's
// cancellation while keeping the node timeout.
func (r *runner) run(ctx context.Context, node *Node, input Input, priorAttempts int) Outcome {
	outcome := Outcome{
		NodeID:    node.ID,
		Attempts:  priorAttempts,
		UsedMocks: usedMockIDs(input.Mocks),
		StartedAt: time.Now().UTC(),
	}

	if node.Condition != "" {
		proceed, condErr := r.evaluateCondition(node, input)
		if condErr != nil && r.condPolicy == FailClosed {
			outcome.Status = StatusFailed
			outcome.Err = Fatal(condErr)
			outcome.FinishedAt = time.Now().UTC()
			return outcome
		}
		outcome.CondErr = condErr
		if condErr == nil && !proceed {
			outcome.Status = StatusSkipped
			outcome.FinishedAt = time.Now().UTC()
			return outcome
		}
	}

	budget := node.Retry.attempts()
	for attempt := 1; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			// Run cancelled before this attempt started.
			outcome.Status = StatusFailed
			outcome.Err = err
			outcome.FinishedAt = time.Now().UTC()
			return outcome
		}

		outcome.Attempts++
		input.Attempt = outcome.Attempts

		output, err := r.executeAttempt(ctx, node, input)
		if err == nil {
			outcome.Status = StatusCompleted
			outcome.Output = output
			outcome.FinishedAt = time.Now().UTC()
			return outcome
		}

		outcome.Err = err
		if IsFatal(err) || attempt == budget {
			break
		}

		delay := node.Retry.backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(node.ID, outcome.Attempts, delay, err)
		}
		if delay > 0 {
			if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
				// Cancelled during backoff; no further retries.
				break
			}
		}
	}

	outcome.Status = StatusFailed
	outcome.FinishedAt = time.Now().UTC()
	return outcome
}

// executeAttempt invokes the task executor with the node's timeout applied.
// A deadline overrun is reported as a transient error and counts against the
// attempt budget.
func (r *runner) executeAttempt(parent context.Context, node *Node, input Input) (Output, error) {
	// Detach from run cancellation: in-flight attempts finish their try.
	ctx := context.WithoutCancel(parent)

	timeout := node.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := r.tasks.Execute(ctx, node.ID, input)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("node %s exceeded timeout of %v: %w", node.ID, timeout, err)
		}
		return nil, err
	}
	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("node %s exceeded timeout of %v", node.ID, timeout)
	}
	return output, nil
}

// evaluateCondition evaluates the node's condition over the restricted
// context view: global keys plus dependency outputs. For speculative runs
// the scheduler folds mock payloads into Outputs before dispatch, so the
// condition sees the same shape either way.
func (r *runner) evaluateCondition(node *Node, input Input) (bool, error) {
	vars := condition.Variables(input.Globals, input.Outputs)
	result, err := condition.Evaluate(node.Condition, vars)
	if err != nil {
		return false, &ConditionError{NodeID: node.ID, Expr: node.Condition, Cause: err}
	}
	return result, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func usedMockIDs(mocks map[string]map[string]any) []string {
	if len(mocks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(mocks))
	for id := range mocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
