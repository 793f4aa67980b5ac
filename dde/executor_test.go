package dde

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// recordingSleep captures backoff delays instead of sleeping.
func recordingSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRunnerRetries(t *testing.T) {
	t.Run("exact exponential delays", func(t *testing.T) {
		calls := 0
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			calls++
			return nil, errors.New("transient")
		})
		r := newRunner(tasks, FailOpen, 0)
		var delays []time.Duration
		r.sleep = recordingSleep(&delays)

		node := &Node{ID: "n", Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Exponential: true}}
		out := r.run(context.Background(), node, Input{}, 0)

		if out.Status != StatusFailed {
			t.Fatalf("status = %s, want FAILED", out.Status)
		}
		if calls != 3 || out.Attempts != 3 {
			t.Errorf("calls = %d, attempts = %d, want 3, 3", calls, out.Attempts)
		}
		want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
		if len(delays) != len(want) {
			t.Fatalf("delays = %v, want %v", delays, want)
		}
		for i := range want {
			if delays[i] != want[i] {
				t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
			}
		}
	})

	t.Run("constant delays without exponential", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			return nil, errors.New("transient")
		})
		r := newRunner(tasks, FailOpen, 0)
		var delays []time.Duration
		r.sleep = recordingSleep(&delays)

		node := &Node{ID: "n", Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}}
		r.run(context.Background(), node, Input{}, 0)
		for i, d := range delays {
			if d != 50*time.Millisecond {
				t.Errorf("delay[%d] = %v, want 50ms", i, d)
			}
		}
	})

	t.Run("succeeds on retry", func(t *testing.T) {
		calls := 0
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			calls++
			if calls < 2 {
				return nil, errors.New("transient")
			}
			if in.Attempt != 2 {
				t.Errorf("in.Attempt = %d, want 2", in.Attempt)
			}
			return Output{"ok": true}, nil
		})
		r := newRunner(tasks, FailOpen, 0)
		var delays []time.Duration
		r.sleep = recordingSleep(&delays)

		node := &Node{ID: "n", Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}}
		out := r.run(context.Background(), node, Input{}, 0)
		if out.Status != StatusCompleted || out.Attempts != 2 {
			t.Errorf("status = %s attempts = %d, want COMPLETED 2", out.Status, out.Attempts)
		}
	})

	t.Run("fatal errors are not retried", func(t *testing.T) {
		calls := 0
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			calls++
			return nil, Fatal(errors.New("bad input"))
		})
		r := newRunner(tasks, FailOpen, 0)
		node := &Node{ID: "n", Retry: RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}}
		out := r.run(context.Background(), node, Input{}, 0)
		if calls != 1 || out.Status != StatusFailed {
			t.Errorf("calls = %d status = %s, want 1 FAILED", calls, out.Status)
		}
	})

	t.Run("prior attempts carry into the cumulative count", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			if in.Attempt != 3 {
				t.Errorf("in.Attempt = %d, want 3", in.Attempt)
			}
			return Output{}, nil
		})
		r := newRunner(tasks, FailOpen, 0)
		out := r.run(context.Background(), &Node{ID: "n"}, Input{}, 2)
		if out.Attempts != 3 {
			t.Errorf("attempts = %d, want 3", out.Attempts)
		}
	})

	t.Run("onRetry observes each backoff", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			return nil, errors.New("transient")
		})
		r := newRunner(tasks, FailOpen, 0)
		var delays []time.Duration
		r.sleep = recordingSleep(&delays)
		var observed []int
		r.onRetry = func(nodeID string, attempt int, delay time.Duration, cause error) {
			observed = append(observed, attempt)
		}
		node := &Node{ID: "n", Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}}
		r.run(context.Background(), node, Input{}, 0)
		if len(observed) != 2 || observed[0] != 1 || observed[1] != 2 {
			t.Errorf("onRetry attempts = %v, want [1 2]", observed)
		}
	})
}

func TestRunnerTimeout(t *testing.T) {
	t.Run("deadline overrun is transient", func(t *testing.T) {
		calls := 0
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			calls++
			<-ctx.Done()
			return nil, ctx.Err()
		})
		r := newRunner(tasks, FailOpen, 0)
		var delays []time.Duration
		r.sleep = recordingSleep(&delays)

		node := &Node{ID: "n", Timeout: 5 * time.Millisecond, Retry: RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}}
		out := r.run(context.Background(), node, Input{}, 0)
		if out.Status != StatusFailed {
			t.Fatalf("status = %s, want FAILED", out.Status)
		}
		if calls != 2 {
			t.Errorf("timed-out attempt was not retried, calls = %d", calls)
		}
		if !strings.Contains(out.Err.Error(), "exceeded timeout") {
			t.Errorf("error = %v, want timeout message", out.Err)
		}
	})

	t.Run("default timeout applies when the node has none", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		r := newRunner(tasks, FailOpen, 5*time.Millisecond)
		out := r.run(context.Background(), &Node{ID: "n"}, Input{}, 0)
		if out.Status != StatusFailed || !strings.Contains(out.Err.Error(), "exceeded timeout") {
			t.Errorf("default timeout not applied: status=%s err=%v", out.Status, out.Err)
		}
	})

	t.Run("in-flight attempt survives run cancellation", func(t *testing.T) {
		started := make(chan struct{})
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			close(started)
			// The attempt context must not inherit run cancellation.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(20 * time.Millisecond):
				return Output{"ok": true}, nil
			}
		})
		r := newRunner(tasks, FailOpen, 0)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()
		out := r.run(ctx, &Node{ID: "n"}, Input{}, 0)
		if out.Status != StatusCompleted {
			t.Errorf("status = %s, want COMPLETED despite cancellation", out.Status)
		}
	})

	t.Run("cancellation before first attempt", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			t.Error("task should not run after cancellation")
			return nil, nil
		})
		r := newRunner(tasks, FailOpen, 0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		out := r.run(ctx, &Node{ID: "n"}, Input{}, 0)
		if out.Status != StatusFailed || out.Attempts != 0 {
			t.Errorf("status = %s attempts = %d, want FAILED 0", out.Status, out.Attempts)
		}
	})

	t.Run("cancellation during backoff stops retries", func(t *testing.T) {
		calls := 0
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			calls++
			return nil, errors.New("transient")
		})
		r := newRunner(tasks, FailOpen, 0)
		r.sleep = func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		}
		node := &Node{ID: "n", Retry: RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}}
		out := r.run(context.Background(), node, Input{}, 0)
		if calls != 1 || out.Status != StatusFailed {
			t.Errorf("calls = %d status = %s, want 1 FAILED", calls, out.Status)
		}
	})
}

func TestRunnerConditions(t *testing.T) {
	t.Run("false condition skips", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			t.Error("skipped node must not execute")
			return nil, nil
		})
		r := newRunner(tasks, FailOpen, 0)
		node := &Node{ID: "n", Condition: "ctx.enabled"}
		out := r.run(context.Background(), node, Input{Globals: map[string]any{"enabled": false}}, 0)
		if out.Status != StatusSkipped || out.Attempts != 0 {
			t.Errorf("status = %s attempts = %d, want SKIPPED 0", out.Status, out.Attempts)
		}
	})

	t.Run("true condition executes", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			return Output{"ran": true}, nil
		})
		r := newRunner(tasks, FailOpen, 0)
		node := &Node{ID: "n", Condition: "ctx.enabled"}
		out := r.run(context.Background(), node, Input{Globals: map[string]any{"enabled": true}}, 0)
		if out.Status != StatusCompleted {
			t.Errorf("status = %s, want COMPLETED", out.Status)
		}
	})

	t.Run("condition over dependency output", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			return Output{}, nil
		})
		r := newRunner(tasks, FailOpen, 0)
		node := &Node{ID: "n", Condition: "ctx.build.count > 0"}
		out := r.run(context.Background(), node, Input{
			Outputs: map[string]map[string]any{"build": {"count": 3.0}},
		}, 0)
		if out.Status != StatusCompleted {
			t.Errorf("status = %s, want COMPLETED", out.Status)
		}
	})

	t.Run("evaluation error fails open by default", func(t *testing.T) {
		ran := false
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			ran = true
			return Output{}, nil
		})
		r := newRunner(tasks, FailOpen, 0)
		node := &Node{ID: "n", Condition: "ctx.missing_key"}
		out := r.run(context.Background(), node, Input{}, 0)
		if !ran || out.Status != StatusCompleted {
			t.Errorf("fail-open should execute: ran=%v status=%s", ran, out.Status)
		}
		if out.CondErr == nil {
			t.Error("forgiven condition error should be recorded on the outcome")
		}
	})

	t.Run("evaluation error fails closed when configured", func(t *testing.T) {
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			t.Error("fail-closed node must not execute")
			return nil, nil
		})
		r := newRunner(tasks, FailClosed, 0)
		node := &Node{ID: "n", Condition: "ctx.missing_key", Retry: RetryPolicy{MaxAttempts: 3}}
		out := r.run(context.Background(), node, Input{}, 0)
		if out.Status != StatusFailed || out.Attempts != 0 {
			t.Fatalf("status = %s attempts = %d, want FAILED 0", out.Status, out.Attempts)
		}
		if !IsFatal(out.Err) {
			t.Error("condition failure should be fatal, not retried")
		}
		var cerr *ConditionError
		if !errors.As(out.Err, &cerr) {
			t.Errorf("error = %v, want ConditionError", out.Err)
		}
	})
}
