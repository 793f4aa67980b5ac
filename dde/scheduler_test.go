package dde

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowdag/dde-go/dde/contract"
	"github.com/flowdag/dde-go/dde/emit"
	"github.com/flowdag/dde-go/dde/store"
)

// executionLog records the order in which nodes start, for assertions on
// scheduling behavior.
type executionLog struct {
	mu    sync.Mutex
	order []string
}

func (l *executionLog) add(nodeID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, nodeID)
}

func (l *executionLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

func (l *executionLog) count(nodeID string) int {
	n := 0
	for _, id := range l.get() {
		if id == nodeID {
			n++
		}
	}
	return n
}

func linearGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph("linear", "1")
	for _, n := range []Node{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	} {
		if err := g.Add(n); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestSchedulerValidation(t *testing.T) {
	echo := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		return Output{}, nil
	})

	t.Run("store is mandatory", func(t *testing.T) {
		_, err := NewScheduler(linearGraph(t), echo)
		var serr *SchedulerError
		if !errors.As(err, &serr) || serr.Code != "NO_STORE" {
			t.Fatalf("expected NO_STORE, got %v", err)
		}
	})

	t.Run("cyclic graph rejected", func(t *testing.T) {
		g := NewGraph("cyclic", "1")
		_ = g.Add(Node{ID: "a", DependsOn: []string{"b"}})
		_ = g.Add(Node{ID: "b", DependsOn: []string{"a"}})
		var cerr *CycleError
		_, err := NewScheduler(g, echo, WithStore(store.NewMemStore[Snapshot]()))
		if !errors.As(err, &cerr) {
			t.Fatalf("expected CycleError, got %v", err)
		}
	})

	t.Run("contracts require a registry", func(t *testing.T) {
		g := NewGraph("wf", "1")
		_ = g.Add(Node{ID: "a", Produces: []string{"c1"}})
		var serr *SchedulerError
		_, err := NewScheduler(g, echo, WithStore(store.NewMemStore[Snapshot]()))
		if !errors.As(err, &serr) || serr.Code != "NO_REGISTRY" {
			t.Fatalf("expected NO_REGISTRY, got %v", err)
		}
	})

	t.Run("consumed contract must come from a dependency", func(t *testing.T) {
		reg := contract.NewRegistry()
		_ = reg.Register(contract.Contract{ID: "c1", Producer: "other", Version: 1})
		g := NewGraph("wf", "1")
		_ = g.Add(Node{ID: "other"})
		_ = g.Add(Node{ID: "a", Consumes: []string{"c1"}})
		var serr *SchedulerError
		_, err := NewScheduler(g, echo, WithStore(store.NewMemStore[Snapshot]()), WithRegistry(reg))
		if !errors.As(err, &serr) || serr.Code != "CONTRACT_DEPENDENCY_MISMATCH" {
			t.Fatalf("expected CONTRACT_DEPENDENCY_MISMATCH, got %v", err)
		}
	})
}

func TestSchedulerLinearRun(t *testing.T) {
	log := &executionLog{}
	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		log.add(nodeID)
		switch nodeID {
		case "a":
			return Output{"value": 1.0}, nil
		case "b":
			v := in.Outputs["a"]["value"].(float64)
			return Output{"value": v + 1}, nil
		case "c":
			v := in.Outputs["b"]["value"].(float64)
			return Output{"value": v + 1}, nil
		}
		return nil, errors.New("unknown node")
	})

	mem := store.NewMemStore[Snapshot]()
	buffered := emit.NewBufferedEmitter()
	s, err := NewScheduler(linearGraph(t), tasks, WithStore(mem), WithEmitter(buffered))
	if err != nil {
		t.Fatal(err)
	}

	report, err := s.Start(context.Background(), map[string]any{"env": "test"})
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != RunSucceeded {
		t.Fatalf("status = %s, want SUCCEEDED", report.Status)
	}

	order := log.get()
	want := []string{"a", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}

	c, _ := report.Node("c")
	if c.Output["value"] != 3.0 {
		t.Errorf("c output = %v, want 3 (outputs flowed a -> b -> c)", c.Output["value"])
	}
	if c.OutputRef != "c@1" {
		t.Errorf("c OutputRef = %q, want c@1", c.OutputRef)
	}

	t.Run("checkpoint deleted after success", func(t *testing.T) {
		if _, err := mem.Load(context.Background(), report.RunID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("checkpoint still present after successful run: %v", err)
		}
	})

	t.Run("event stream is ordered", func(t *testing.T) {
		events := buffered.History(report.RunID)
		if len(events) == 0 {
			t.Fatal("no events recorded")
		}
		if events[0].Type != emit.RunStarted {
			t.Errorf("first event = %s, want run_started", events[0].Type)
		}
		if events[len(events)-1].Type != emit.RunCompleted {
			t.Errorf("last event = %s, want run_completed", events[len(events)-1].Type)
		}
		for i, ev := range events {
			if ev.Seq != i+1 {
				t.Fatalf("event %d has seq %d, want monotonic from 1", i, ev.Seq)
			}
		}
	})
}

func TestSchedulerParallelism(t *testing.T) {
	g := NewGraph("diamond", "1")
	_ = g.Add(Node{ID: "root"})
	_ = g.Add(Node{ID: "left", DependsOn: []string{"root"}})
	_ = g.Add(Node{ID: "right", DependsOn: []string{"root"}})
	_ = g.Add(Node{ID: "join", DependsOn: []string{"left", "right"}})

	var inflight, peak atomic.Int32
	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		cur := inflight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inflight.Add(-1)
		return Output{"from": nodeID}, nil
	})

	s, err := NewScheduler(g, tasks, WithStore(store.NewMemStore[Snapshot]()), WithMaxWorkers(2))
	if err != nil {
		t.Fatal(err)
	}
	report, err := s.Start(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != RunSucceeded {
		t.Fatalf("status = %s", report.Status)
	}
	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, want left and right to overlap", peak.Load())
	}

	join, _ := report.Node("join")
	if join.Status != StatusCompleted {
		t.Errorf("join = %s", join.Status)
	}
}

func TestSchedulerSingleWorkerDrainsReadySet(t *testing.T) {
	// With one worker, a diamond's branches are both ready at once but only
	// one can dispatch. The other must still run on a later scan instead of
	// being forgotten.
	g := NewGraph("diamond", "1")
	_ = g.Add(Node{ID: "root"})
	_ = g.Add(Node{ID: "left", DependsOn: []string{"root"}})
	_ = g.Add(Node{ID: "right", DependsOn: []string{"root"}})
	_ = g.Add(Node{ID: "join", DependsOn: []string{"left", "right"}})

	log := &executionLog{}
	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		log.add(nodeID)
		return Output{}, nil
	})

	s, err := NewScheduler(g, tasks, WithStore(store.NewMemStore[Snapshot]()), WithMaxWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	report, err := s.Start(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != RunSucceeded {
		t.Fatalf("status = %s", report.Status)
	}
	got := log.get()
	want := []string{"root", "left", "right", "join"}
	if len(got) != len(want) {
		t.Fatalf("execution order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", got, want)
		}
	}
}

func TestSchedulerDependentSeesCommittedOutput(t *testing.T) {
	// Under concurrent dispatch a dependent must never start before its
	// dependencies' outputs are readable. The join fails loudly if either
	// branch output is missing, and the branches finish at staggered times
	// so completions interleave with dispatch scans.
	g := NewGraph("diamond", "1")
	_ = g.Add(Node{ID: "root"})
	_ = g.Add(Node{ID: "left", DependsOn: []string{"root"}})
	_ = g.Add(Node{ID: "right", DependsOn: []string{"root"}})
	_ = g.Add(Node{ID: "join", DependsOn: []string{"left", "right"}})

	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		switch nodeID {
		case "left":
			time.Sleep(5 * time.Millisecond)
		case "right":
			time.Sleep(20 * time.Millisecond)
		case "join":
			left, ok := in.Outputs["left"]
			if !ok || left["value"] != "L" {
				return nil, Fatal(fmt.Errorf("left output not visible: %v", in.Outputs))
			}
			right, ok := in.Outputs["right"]
			if !ok || right["value"] != "R" {
				return nil, Fatal(fmt.Errorf("right output not visible: %v", in.Outputs))
			}
			return Output{}, nil
		}
		return Output{"value": map[string]string{"left": "L", "right": "R", "root": "T"}[nodeID]}, nil
	})

	for i := 0; i < 3; i++ {
		s, err := NewScheduler(g, tasks, WithStore(store.NewMemStore[Snapshot]()), WithMaxWorkers(2))
		if err != nil {
			t.Fatal(err)
		}
		report, err := s.Start(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if report.Status != RunSucceeded {
			join, _ := report.Node("join")
			t.Fatalf("status = %s, join error: %s", report.Status, join.Error)
		}
	}
}

func TestSchedulerFailureBlocksDescendants(t *testing.T) {
	g := NewGraph("wf", "1")
	_ = g.Add(Node{ID: "a"})
	_ = g.Add(Node{ID: "b", DependsOn: []string{"a"}})
	_ = g.Add(Node{ID: "c", DependsOn: []string{"b"}})
	_ = g.Add(Node{ID: "d"})

	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		if nodeID == "a" {
			return nil, errors.New("boom")
		}
		return Output{}, nil
	})

	s, err := NewScheduler(g, tasks, WithStore(store.NewMemStore[Snapshot]()))
	if err != nil {
		t.Fatal(err)
	}
	report, err := s.Start(context.Background(), nil)
	if err != nil {
		t.Fatalf("node failure should not be a caller error: %v", err)
	}

	if report.Status != RunFailed {
		t.Fatalf("status = %s, want FAILED", report.Status)
	}
	a, _ := report.Node("a")
	if a.Status != StatusFailed || a.Error == "" {
		t.Errorf("a = %s error=%q", a.Status, a.Error)
	}
	for _, id := range []string{"b", "c"} {
		nr, _ := report.Node(id)
		if nr.Status != StatusBlocked {
			t.Errorf("%s = %s, want BLOCKED (transitively)", id, nr.Status)
		}
	}
	d, _ := report.Node("d")
	if d.Status != StatusCompleted {
		t.Errorf("independent node d = %s, want COMPLETED", d.Status)
	}
}

func TestSchedulerSkipSatisfiesDependents(t *testing.T) {
	g := NewGraph("wf", "1")
	_ = g.Add(Node{ID: "a"})
	_ = g.Add(Node{ID: "b", DependsOn: []string{"a"}, Condition: "ctx.enabled"})
	_ = g.Add(Node{ID: "c", DependsOn: []string{"b"}})

	log := &executionLog{}
	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		log.add(nodeID)
		if nodeID == "c" {
			if _, present := in.Outputs["b"]; present {
				t.Error("skipped dependency must not contribute an output")
			}
		}
		return Output{}, nil
	})

	s, err := NewScheduler(g, tasks, WithStore(store.NewMemStore[Snapshot]()))
	if err != nil {
		t.Fatal(err)
	}
	report, err := s.Start(context.Background(), map[string]any{"enabled": false})
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != RunSucceeded {
		t.Fatalf("status = %s, want SUCCEEDED", report.Status)
	}
	b, _ := report.Node("b")
	if b.Status != StatusSkipped || b.Attempts != 0 {
		t.Errorf("b = %s attempts=%d, want SKIPPED 0", b.Status, b.Attempts)
	}
	if log.count("b") != 0 {
		t.Error("skipped node executed")
	}
	if log.count("c") != 1 {
		t.Error("dependent of skipped node did not run")
	}
}

func TestSchedulerRetriesAndEvents(t *testing.T) {
	g := NewGraph("wf", "1")
	_ = g.Add(Node{ID: "flaky", Retry: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}})

	calls := 0
	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return Output{}, nil
	})

	buffered := emit.NewBufferedEmitter()
	s, err := NewScheduler(g, tasks, WithStore(store.NewMemStore[Snapshot]()), WithEmitter(buffered))
	if err != nil {
		t.Fatal(err)
	}
	report, err := s.Start(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	nr, _ := report.Node("flaky")
	if nr.Status != StatusCompleted || nr.Attempts != 3 {
		t.Fatalf("flaky = %s attempts=%d, want COMPLETED 3", nr.Status, nr.Attempts)
	}
	retries := buffered.HistoryWithFilter(report.RunID, emit.Filter{Type: emit.NodeRetried})
	if len(retries) != 2 {
		t.Errorf("retry events = %d, want 2", len(retries))
	}
}

func speculativeFixture(t *testing.T, buildOutput Output) (*Graph, *contract.Registry, TaskFunc, *executionLog) {
	t.Helper()
	reg := contract.NewRegistry()
	err := reg.Register(contract.Contract{
		ID:        "artifact",
		Producer:  "build",
		Consumers: []string{"test"},
		Version:   1,
		Schema: contract.Schema{
			"url": {Type: contract.TypeString, Required: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	g := NewGraph("pipeline", "1")
	_ = g.Add(Node{ID: "build", Produces: []string{"artifact"}})
	_ = g.Add(Node{ID: "test", DependsOn: []string{"build"}, Consumes: []string{"artifact"}})

	log := &executionLog{}
	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		log.add(nodeID)
		switch nodeID {
		case "build":
			time.Sleep(60 * time.Millisecond)
			return buildOutput, nil
		case "test":
			if _, ok := in.Outputs["build"]["url"]; !ok {
				return nil, errors.New("no artifact url visible")
			}
			return Output{"passed": true}, nil
		}
		return nil, errors.New("unknown node")
	})
	return g, reg, tasks, log
}

func TestSchedulerSpeculativeExecution(t *testing.T) {
	t.Run("consistent producer keeps speculative work", func(t *testing.T) {
		g, reg, tasks, log := speculativeFixture(t, Output{"url": "s3://real"})
		s, err := NewScheduler(g, tasks,
			WithStore(store.NewMemStore[Snapshot]()),
			WithRegistry(reg),
			WithSpeculation(true),
			WithMaxWorkers(2),
		)
		if err != nil {
			t.Fatal(err)
		}
		report, err := s.Start(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if report.Status != RunSucceeded {
			t.Fatalf("status = %s", report.Status)
		}

		testReport, _ := report.Node("test")
		if len(testReport.UsedMocks) != 1 || testReport.UsedMocks[0] != "artifact" {
			t.Errorf("test UsedMocks = %v, want [artifact]", testReport.UsedMocks)
		}
		if log.count("test") != 1 {
			t.Errorf("test ran %d times, want 1 (no rework on consistent output)", log.count("test"))
		}
		if len(report.Reconciliations) != 1 || report.Reconciliations[0].Verdict != contract.VerdictConsistent {
			t.Errorf("reconciliations = %+v, want one CONSISTENT record", report.Reconciliations)
		}
	})

	t.Run("violated contract reworks the consumer", func(t *testing.T) {
		// Real output misses the required "url" field.
		g, reg, tasks, log := speculativeFixture(t, Output{"other": "x"})
		buffered := emit.NewBufferedEmitter()
		s, err := NewScheduler(g, tasks,
			WithStore(store.NewMemStore[Snapshot]()),
			WithRegistry(reg),
			WithSpeculation(true),
			WithMaxWorkers(2),
			WithEmitter(buffered),
		)
		if err != nil {
			t.Fatal(err)
		}
		report, err := s.Start(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}

		var violated *contract.Record
		for i := range report.Reconciliations {
			if report.Reconciliations[i].Verdict == contract.VerdictViolated {
				violated = &report.Reconciliations[i]
			}
		}
		if violated == nil {
			t.Fatal("no VIOLATED reconciliation recorded")
		}
		if len(violated.Rework) != 1 || violated.Rework[0] != "test" {
			t.Errorf("rework = %v, want [test]", violated.Rework)
		}
		if log.count("test") < 2 {
			t.Errorf("test ran %d times, want rework re-execution", log.count("test"))
		}

		events := buffered.HistoryWithFilter(report.RunID, emit.Filter{Type: emit.ContractViolated})
		if len(events) != 1 {
			t.Errorf("contract_violated events = %d, want 1", len(events))
		}

		// The reworked consumer ran against real output missing "url" and
		// failed; the run reflects that.
		if report.Status != RunFailed {
			t.Errorf("status = %s, want FAILED after rework against broken output", report.Status)
		}
	})

	t.Run("without speculation the consumer waits", func(t *testing.T) {
		g, reg, tasks, log := speculativeFixture(t, Output{"url": "s3://real"})
		s, err := NewScheduler(g, tasks,
			WithStore(store.NewMemStore[Snapshot]()),
			WithRegistry(reg),
			WithMaxWorkers(2),
		)
		if err != nil {
			t.Fatal(err)
		}
		report, err := s.Start(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if report.Status != RunSucceeded {
			t.Fatalf("status = %s", report.Status)
		}
		testReport, _ := report.Node("test")
		if len(testReport.UsedMocks) != 0 {
			t.Errorf("UsedMocks = %v, want none without speculation", testReport.UsedMocks)
		}
		order := log.get()
		if order[0] != "build" || order[1] != "test" {
			t.Errorf("order = %v, want build before test", order)
		}
	})
}

func TestSchedulerResume(t *testing.T) {
	t.Run("failed run resumes from checkpoint", func(t *testing.T) {
		g := linearGraph(t)
		mem := store.NewMemStore[Snapshot]()

		log := &executionLog{}
		var healthy atomic.Bool
		tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			log.add(nodeID)
			if nodeID == "b" && !healthy.Load() {
				return nil, errors.New("dependency outage")
			}
			return Output{"from": nodeID}, nil
		})

		s, err := NewScheduler(g, tasks, WithStore(mem))
		if err != nil {
			t.Fatal(err)
		}

		first, err := s.Start(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if first.Status != RunFailed {
			t.Fatalf("first run = %s, want FAILED", first.Status)
		}

		healthy.Store(true)
		resumed, err := s.Resume(context.Background(), first.RunID)
		if err != nil {
			t.Fatal(err)
		}
		if resumed.Status != RunSucceeded {
			t.Fatalf("resumed run = %s, want SUCCEEDED", resumed.Status)
		}
		if resumed.RunID != first.RunID {
			t.Errorf("resume changed run ID: %s -> %s", first.RunID, resumed.RunID)
		}
		if log.count("a") != 1 {
			t.Errorf("completed node re-executed on resume: a ran %d times", log.count("a"))
		}
		b, _ := resumed.Node("b")
		if b.Attempts != 2 {
			t.Errorf("b cumulative attempts = %d, want 2 across runs", b.Attempts)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		s, _ := NewScheduler(linearGraph(t), TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			return Output{}, nil
		}), WithStore(store.NewMemStore[Snapshot]()))
		if _, err := s.Resume(context.Background(), "no-such-run"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("error = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("graph version mismatch rejected", func(t *testing.T) {
		mem := store.NewMemStore[Snapshot]()
		fail := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
			return nil, errors.New("always fails")
		})

		g1 := NewGraph("wf", "1")
		_ = g1.Add(Node{ID: "a"})
		s1, _ := NewScheduler(g1, fail, WithStore(mem))
		report, err := s1.Start(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}

		g2 := NewGraph("wf", "2")
		_ = g2.Add(Node{ID: "a"})
		s2, _ := NewScheduler(g2, fail, WithStore(mem))
		var serr *SchedulerError
		if _, err := s2.Resume(context.Background(), report.RunID); !errors.As(err, &serr) || serr.Code != "GRAPH_MISMATCH" {
			t.Errorf("error = %v, want GRAPH_MISMATCH", err)
		}
	})
}

func TestSchedulerCancellation(t *testing.T) {
	g := NewGraph("wf", "1")
	_ = g.Add(Node{ID: "slow"})
	_ = g.Add(Node{ID: "after", DependsOn: []string{"slow"}})

	started := make(chan struct{})
	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		if nodeID == "slow" {
			close(started)
			time.Sleep(30 * time.Millisecond)
			return Output{"done": true}, nil
		}
		t.Error("dependent dispatched after cancellation")
		return Output{}, nil
	})

	s, err := NewScheduler(g, tasks, WithStore(store.NewMemStore[Snapshot]()))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	report, err := s.Start(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if report.Status != RunCancelled {
		t.Fatalf("status = %s, want CANCELLED", report.Status)
	}

	// The in-flight attempt finished its try and committed.
	slow, _ := report.Node("slow")
	if slow.Status != StatusCompleted {
		t.Errorf("slow = %s, want COMPLETED (in-flight attempt finishes)", slow.Status)
	}
	after, _ := report.Node("after")
	if after.Status != StatusPending {
		t.Errorf("after = %s, want PENDING (never dispatched)", after.Status)
	}
}

func TestSchedulerRunTimeout(t *testing.T) {
	g := NewGraph("wf", "1")
	_ = g.Add(Node{ID: "a"})
	_ = g.Add(Node{ID: "b", DependsOn: []string{"a"}})

	tasks := TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		time.Sleep(40 * time.Millisecond)
		return Output{}, nil
	})

	s, err := NewScheduler(g, tasks, WithStore(store.NewMemStore[Snapshot]()), WithRunTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	report, err := s.Start(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Status != RunFailed {
		t.Errorf("status = %s, want FAILED on run timeout, not CANCELLED", report.Status)
	}
}

func TestSchedulerMetrics(t *testing.T) {
	// Metrics are optional; a run without WithMetrics must not panic.
	g := NewGraph("wf", "1")
	_ = g.Add(Node{ID: "a"})
	s, err := NewScheduler(g, TaskFunc(func(ctx context.Context, nodeID string, in Input) (Output, error) {
		return Output{}, nil
	}), WithStore(store.NewMemStore[Snapshot]()))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Start(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}
