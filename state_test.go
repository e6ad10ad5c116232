package fiber

import "testing"

func TestFastStateTryTransition(t *testing.T) {
	s := newFastState(SchedulerIdle)

	if !s.TryTransition(SchedulerIdle, SchedulerRunning) {
		t.Fatal("expected Idle->Running to succeed")
	}
	if s.Load() != SchedulerRunning {
		t.Fatalf("Load() = %v, want Running", s.Load())
	}
	if s.TryTransition(SchedulerIdle, SchedulerRunning) {
		t.Fatal("Idle->Running should fail: state is already Running")
	}
}

func TestFastStateCanAcceptWork(t *testing.T) {
	cases := []struct {
		state SchedulerState
		want  bool
	}{
		{SchedulerIdle, true},
		{SchedulerRunning, true},
		{SchedulerSleeping, true},
		{SchedulerTerminating, false},
		{SchedulerTerminated, false},
	}
	for _, c := range cases {
		s := newFastState(c.state)
		if got := s.CanAcceptWork(); got != c.want {
			t.Errorf("CanAcceptWork() for %v = %v, want %v", c.state, got, c.want)
		}
	}
}

func TestFastStateIsTerminal(t *testing.T) {
	if newFastState(SchedulerTerminated).IsTerminal() != true {
		t.Fatal("SchedulerTerminated should be terminal")
	}
	if newFastState(SchedulerRunning).IsTerminal() != false {
		t.Fatal("SchedulerRunning should not be terminal")
	}
}

func TestSchedulerStateString(t *testing.T) {
	for _, s := range []SchedulerState{SchedulerIdle, SchedulerRunning, SchedulerSleeping, SchedulerTerminating, SchedulerTerminated} {
		if s.String() == "" || s.String() == "Unknown" {
			t.Errorf("%d.String() produced an unexpected name: %q", s, s.String())
		}
	}
	if SchedulerState(99).String() != "Unknown" {
		t.Fatal("unrecognized state should stringify to Unknown")
	}
}

func TestFiberStateString(t *testing.T) {
	for _, s := range []FiberState{FiberRunnable, FiberRunning, FiberWaiting, FiberTerminated} {
		if s.String() == "" || s.String() == "Unknown" {
			t.Errorf("%d.String() produced an unexpected name: %q", s, s.String())
		}
	}
}
