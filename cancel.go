// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fiber

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// CancelSignal is a context.Context-shaped cancellation signal built
// entirely from the scheduler's own primitives: a timer resumption racing
// a direct Cancel call for a shared claim cell. Only the first claimant
// actually performs the cancellation; the loser becomes a no-op. The core
// itself has no cancellation, so this is the composition callers are
// expected to build on.
type CancelSignal struct {
	sched *Scheduler

	claimed atomic.Bool

	mu      sync.Mutex
	err     error
	waiters []*Fiber
	done    chan struct{}
}

// NewCancelSignal creates a CancelSignal bound to sched, returning both the
// signal itself and a context.Context view for interop with context-aware
// code that never touches fibers directly.
func NewCancelSignal(sched *Scheduler) (*CancelSignal, context.Context) {
	cs := &CancelSignal{sched: sched, done: make(chan struct{})}
	return cs, cancelContext{cs}
}

// claim is the shared get_thunk claim cell: the first caller to invoke it
// wins and receives a non-nil thunk that performs the actual cancellation;
// every other caller (including a losing race between Cancel and a fired
// CancelAfter timer) receives nil and must do nothing further.
func (c *CancelSignal) claim(err error) func() any {
	// The CAS happens under mu so that a waiter suspending concurrently
	// either observes claimed with err already set, or lands in waiters
	// before the winning thunk snapshots them. Never both, never neither.
	c.mu.Lock()
	if !c.claimed.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return nil
	}
	c.err = err
	c.mu.Unlock()

	return func() any {
		c.mu.Lock()
		waiters := c.waiters
		c.waiters = nil
		c.mu.Unlock()

		close(c.done)
		for _, f := range waiters {
			_ = ResumeFiber(f, func() any { return err })
		}
		return err
	}
}

// Cancel cancels the signal immediately with err (context.Canceled if nil).
// A no-op if the signal was already cancelled, whether by a prior Cancel or
// by a CancelAfter deadline firing first.
func (c *CancelSignal) Cancel(err error) {
	if err == nil {
		err = context.Canceled
	}
	if thunk := c.claim(err); thunk != nil {
		thunk()
	}
}

// CancelAfter installs a ResumeOnTimer-style entry (via the scheduler's
// timer queue directly, since there is no single fiber to resume here) that
// races Cancel via the shared claim cell: whichever fires first wins, the
// other becomes a no-op. The eventual error observed by waiters is
// context.DeadlineExceeded.
func (c *CancelSignal) CancelAfter(d time.Duration) {
	deadline := time.Now().Add(d)
	c.sched.timers.insert(deadline, func() {
		if thunk := c.claim(context.DeadlineExceeded); thunk != nil {
			thunk()
		}
	})
}

// WaitForCancel suspends the calling fiber until the signal is cancelled,
// returning the cancellation error as the suspend's return value. Must be
// called from a fiber's own goroutine (see SuspendCurrentFiber).
func (c *CancelSignal) WaitForCancel() error {
	v := SuspendCurrentFiber(func(f *Fiber) {
		c.mu.Lock()
		if c.claimed.Load() {
			err := c.err
			c.mu.Unlock()
			_ = ResumeFiber(f, func() any { return err })
			return
		}
		c.waiters = append(c.waiters, f)
		c.mu.Unlock()
	})
	if err, _ := v.(error); err != nil {
		return err
	}
	return nil
}

// cancelContext adapts a CancelSignal to context.Context.
type cancelContext struct{ cs *CancelSignal }

func (c cancelContext) Deadline() (time.Time, bool) { return time.Time{}, false }

func (c cancelContext) Done() <-chan struct{} { return c.cs.done }

func (c cancelContext) Err() error {
	c.cs.mu.Lock()
	defer c.cs.mu.Unlock()
	return c.cs.err
}

func (c cancelContext) Value(any) any { return nil }
