package dde

import (
	"time"

	"github.com/flowdag/dde-go/dde/contract"
	"github.com/flowdag/dde-go/dde/emit"
	"github.com/flowdag/dde-go/dde/store"
)

// config carries the tunable pieces of a Scheduler. Defaults favor safety:
// sequential execution, fail-open conditions, checkpoint on every transition.
type config struct {
	emitter            emit.Emitter
	metrics            *Metrics
	registry           *contract.Registry
	snapshots          store.Store[Snapshot]
	maxWorkers         int
	defaultNodeTimeout time.Duration
	runTimeout         time.Duration
	condPolicy         ConditionPolicy
	checkpointEvery    int
	speculation        bool
}

func defaultConfig() config {
	return config{
		emitter:         emit.NewNullEmitter(),
		maxWorkers:      1,
		condPolicy:      FailOpen,
		checkpointEvery: 1,
	}
}

// Option configures a Scheduler.
type Option func(*config) error

// WithEmitter sets the event sink for the run's lifecycle events.
func WithEmitter(e emit.Emitter) Option {
	return func(c *config) error {
		if e == nil {
			return &SchedulerError{Message: "emitter must not be nil", Code: "INVALID_OPTION"}
		}
		c.emitter = e
		return nil
	}
}

// WithMetrics attaches Prometheus collectors. Without this option the
// scheduler records no metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) error {
		c.metrics = m
		return nil
	}
}

// WithRegistry attaches a contract registry, enabling contract-gated
// parallelism: consumers may start against active mocks before their
// producer finishes, with reconciliation on the producer's real output.
func WithRegistry(r *contract.Registry) Option {
	return func(c *config) error {
		c.registry = r
		return nil
	}
}

// WithStore sets the checkpoint store. Required: a Scheduler will not
// construct without one. Use store.NewMemStore for explicitly ephemeral runs.
func WithStore(s store.Store[Snapshot]) Option {
	return func(c *config) error {
		if s == nil {
			return &SchedulerError{Message: "checkpoint store must not be nil", Code: "INVALID_OPTION"}
		}
		c.snapshots = s
		return nil
	}
}

// WithMaxWorkers bounds concurrent node execution. The default of 1 runs
// nodes one at a time in deterministic order.
func WithMaxWorkers(n int) Option {
	return func(c *config) error {
		if n < 1 {
			return &SchedulerError{Message: "max workers must be at least 1", Code: "INVALID_OPTION"}
		}
		c.maxWorkers = n
		return nil
	}
}

// WithDefaultNodeTimeout applies a timeout to nodes that do not declare one.
// Zero means no default timeout.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d < 0 {
			return &SchedulerError{Message: "default node timeout must not be negative", Code: "INVALID_OPTION"}
		}
		c.defaultNodeTimeout = d
		return nil
	}
}

// WithRunTimeout bounds the whole run. When it elapses, in-flight attempts
// finish their current try and the run is marked FAILED.
func WithRunTimeout(d time.Duration) Option {
	return func(c *config) error {
		if d < 0 {
			return &SchedulerError{Message: "run timeout must not be negative", Code: "INVALID_OPTION"}
		}
		c.runTimeout = d
		return nil
	}
}

// WithConditionPolicy selects fail-open or fail-closed handling of condition
// evaluation errors.
func WithConditionPolicy(p ConditionPolicy) Option {
	return func(c *config) error {
		if p != FailOpen && p != FailClosed {
			return &SchedulerError{Message: "unknown condition policy", Code: "INVALID_OPTION"}
		}
		c.condPolicy = p
		return nil
	}
}

// WithCheckpointInterval saves a snapshot every n state transitions instead
// of every one. Terminal transitions always checkpoint regardless.
func WithCheckpointInterval(n int) Option {
	return func(c *config) error {
		if n < 1 {
			return &SchedulerError{Message: "checkpoint interval must be at least 1", Code: "INVALID_OPTION"}
		}
		c.checkpointEvery = n
		return nil
	}
}

// WithSpeculation enables automatic mock activation: when a consumer's only
// unmet dependency is a registered producer, its contracts' mocks are
// activated so the consumer can start early. Without this option only mocks
// activated explicitly on the registry are used.
func WithSpeculation(enabled bool) Option {
	return func(c *config) error {
		c.speculation = enabled
		return nil
	}
}
