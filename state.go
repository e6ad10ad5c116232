package fiber

import "sync/atomic"

// SchedulerState is the lifecycle state of a Scheduler.
type SchedulerState uint64

const (
	// SchedulerIdle: created, not yet running.
	SchedulerIdle SchedulerState = iota
	// SchedulerRunning: actively draining readiness, timers, and the run queue.
	SchedulerRunning
	// SchedulerSleeping: blocked in the readiness backend's poll.
	SchedulerSleeping
	// SchedulerTerminating: winding down. The Scheduler itself never enters
	// this state: Run and Close both move directly to SchedulerTerminated.
	SchedulerTerminating
	// SchedulerTerminated: terminal. Run has returned or Close was called;
	// the backend handle is released only by Close.
	SchedulerTerminated
)

func (s SchedulerState) String() string {
	switch s {
	case SchedulerIdle:
		return "Idle"
	case SchedulerRunning:
		return "Running"
	case SchedulerSleeping:
		return "Sleeping"
	case SchedulerTerminating:
		return "Terminating"
	case SchedulerTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state machine with cache-line padding, used for
// the scheduler's lifecycle state, where contended reads from any thread
// checking CanAcceptWork/IsTerminal must not serialize on a mutex.
type fastState struct { //nolint:govet // deliberately padded, not field-optimal
	_ [sizeOfCacheLine]byte
	v atomic.Uint64
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte
}

func newFastState(initial SchedulerState) *fastState {
	s := &fastState{}
	s.v.Store(uint64(initial))
	return s
}

func (s *fastState) Load() SchedulerState {
	return SchedulerState(s.v.Load())
}

func (s *fastState) Store(state SchedulerState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts an atomic from->to transition, returning false if
// the current state was not from.
func (s *fastState) TryTransition(from, to SchedulerState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

func (s *fastState) IsTerminal() bool {
	return s.Load() == SchedulerTerminated
}

func (s *fastState) CanAcceptWork() bool {
	switch s.Load() {
	case SchedulerIdle, SchedulerRunning, SchedulerSleeping:
		return true
	default:
		return false
	}
}

// FiberState is the lifecycle state of a Fiber: a fiber alternates between
// runnable (queued, continuation slot full), running (continuation slot
// empty, currently executing), and waiting (continuation slot full,
// reachable only via a wait-source or timer).
type FiberState int32

const (
	FiberRunnable FiberState = iota
	FiberRunning
	FiberWaiting
	FiberTerminated
)

func (s FiberState) String() string {
	switch s {
	case FiberRunnable:
		return "Runnable"
	case FiberRunning:
		return "Running"
	case FiberWaiting:
		return "Waiting"
	case FiberTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}
