package dde

import (
	"errors"
	"strings"
)

// ErrRunNotFound is returned by Resume when no checkpoint exists for the run ID.
var ErrRunNotFound = errors.New("run not found")

// ErrInvalidRetryPolicy is returned when a RetryPolicy fails validation.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// SchedulerError represents an error from Scheduler configuration or validation.
//
// Code is a machine-readable identifier for programmatic handling, e.g.
// "NO_STORE", "DUPLICATE_NODE", "UNKNOWN_DEPENDENCY".
type SchedulerError struct {
	Message string
	Code    string
}

func (e *SchedulerError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// CycleError is returned by Start when the workflow graph is not acyclic.
//
// Nodes holds the cycle witness: the node IDs that remained with non-zero
// in-degree after the Kahn elimination pass. At least one of them is part
// of a cycle.
type CycleError struct {
	// GraphID identifies the offending workflow graph.
	GraphID string

	// Nodes is the set of node IDs that could not be topologically ordered,
	// in declaration order.
	Nodes []string
}

func (e *CycleError) Error() string {
	return "workflow graph " + e.GraphID + " contains a cycle involving: " + strings.Join(e.Nodes, ", ")
}

// ConditionError reports a failure to evaluate a node's execution condition.
//
// Under the fail-open policy (the default) this error never surfaces to the
// caller: the node executes anyway and the error is recorded on the event
// stream. Under fail-closed it becomes the node's terminal error.
type ConditionError struct {
	NodeID string
	Expr   string
	Cause  error
}

func (e *ConditionError) Error() string {
	return "node " + e.NodeID + ": condition evaluation failed: " + e.Cause.Error()
}

func (e *ConditionError) Unwrap() error {
	return e.Cause
}

// CheckpointCorruptionError is returned by Restore when persisted checkpoint
// data cannot be decoded or its checksum does not match the stored content.
//
// The run cannot be resumed from this checkpoint; the caller should start a
// fresh run or repair the backing store.
type CheckpointCorruptionError struct {
	RunID  string
	Reason string
	Cause  error
}

func (e *CheckpointCorruptionError) Error() string {
	msg := "checkpoint for run " + e.RunID + " is corrupted: " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CheckpointCorruptionError) Unwrap() error {
	return e.Cause
}

// FatalError marks a task-executor error as non-retryable. The node fails
// immediately regardless of remaining attempts, and its dependents are
// blocked.
//
// Wrap with Fatal and test with IsFatal:
//
//	return nil, dde.Fatal(fmt.Errorf("schema migration refused"))
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err so the executor treats it as non-retryable.
// Returns nil if err is nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err (or any error in its chain) was tagged fatal.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
