package dde

import "testing"

func TestNodeStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to NodeStatus }{
		{StatusPending, StatusReady},
		{StatusReady, StatusRunning},
		{StatusRunning, StatusCompleted},
		{StatusRunning, StatusFailed},
		{StatusRunning, StatusSkipped},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to NodeStatus }{
		{StatusPending, StatusRunning},
		{StatusPending, StatusCompleted},
		{StatusCompleted, StatusRunning},
		{StatusFailed, StatusPending},
		{StatusSkipped, StatusRunning},
		{StatusCompleted, StatusFailed},
	}
	for _, tr := range forbidden {
		if tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be forbidden", tr.from, tr.to)
		}
	}
}

func TestNodeStatusTerminal(t *testing.T) {
	for _, s := range []NodeStatus{StatusCompleted, StatusFailed, StatusSkipped} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []NodeStatus{StatusPending, StatusReady, StatusRunning} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestNodeStatusSatisfied(t *testing.T) {
	if !StatusCompleted.Satisfied() {
		t.Error("COMPLETED should satisfy dependents")
	}
	if !StatusSkipped.Satisfied() {
		t.Error("SKIPPED should satisfy dependents")
	}
	if StatusFailed.Satisfied() {
		t.Error("FAILED must not satisfy dependents")
	}
	if StatusRunning.Satisfied() {
		t.Error("RUNNING must not satisfy dependents")
	}
}

func TestNodeStateClone(t *testing.T) {
	orig := &NodeState{Status: StatusCompleted, Attempts: 2, UsedMocks: []string{"c1"}}
	copied := orig.clone()
	copied.UsedMocks[0] = "other"
	if orig.UsedMocks[0] != "c1" {
		t.Error("clone shares UsedMocks backing array")
	}
}
