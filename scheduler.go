package fiber

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var schedulerIDCounter atomic.Uint64

// Scheduler drives one turn loop pinned to a single goroutine while running.
// It owns a run queue, a wait-source table keyed by fd, a timer queue, and a
// readiness backend handle; the run queue, the atomic pendingFibers count
// and the backend's wake are the only parts of this state touched from
// outside the owning goroutine while it runs.
type Scheduler struct {
	id uint64

	runQ    *runQueue
	waits   *waitSourceTable
	timers  *timerQueue
	backend readinessBackend

	state          *fastState
	ownerGoroutine atomic.Uint64

	// pendingFibers counts owned fibers currently suspended (Waiting).
	// A fiber suspended with no local wake source is reachable only via a
	// cross-thread ResumeFiber, so the loop must not quiesce while this is
	// non-zero; it blocks in poll until the resume's wake arrives.
	pendingFibers atomic.Int64

	opts    *schedulerOptions
	metrics *schedulerMetrics

	turn uint64

	fiberIDCounter atomic.Uint64

	pollBuf []readyEvent

	closeOnce sync.Once
	closeErr  error
}

// NewScheduler constructs a Scheduler with a fresh readiness backend (epoll
// on Linux, kqueue on Darwin). The returned scheduler is Idle until Run is
// called.
func NewScheduler(opts ...SchedulerOption) (*Scheduler, error) {
	cfg := resolveSchedulerOptions(opts)

	backend, err := newReadinessBackend()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		id:      schedulerIDCounter.Add(1),
		runQ:    newRunQueue(cfg.runQueueChunk),
		timers:  newTimerQueue(),
		backend: backend,
		state:   newFastState(SchedulerIdle),
		opts:    cfg,
		metrics: &schedulerMetrics{enabled: cfg.metricsEnabled},
	}
	s.waits = newWaitSourceTable(backend)
	return s, nil
}

// CreateFiber creates a fiber owned by s, runnable with fn as its initial
// step, and enqueues it on s's run queue. fn runs on the fiber's own
// dedicated goroutine once the scheduler dequeues it.
func (s *Scheduler) CreateFiber(fn func()) *Fiber {
	f := newFiber(s, s.fiberIDCounter.Add(1), fn)
	s.enqueueFiber(f)
	return f
}

// enqueueFiber appends f to the run queue and wakes the backend if the
// calling goroutine is not the scheduler's own, so a loop blocked in poll
// observes the new work promptly.
func (s *Scheduler) enqueueFiber(f *Fiber) {
	s.runQ.enqueue(f)
	owner := s.ownerGoroutine.Load()
	if owner != 0 && owner != getGoroutineID() {
		_ = s.backend.wake()
	}
}

// ResumeFiber is the only cross-thread operation: it claims f's
// Waiting->Runnable transition, stores thunk in its continuation slot, and
// enqueues it on its owning scheduler's run queue, waking that scheduler if
// the caller is not already on it. Returns an InvalidResume error if f was
// not suspended (continuation slot already full, or already resumed).
func ResumeFiber(f *Fiber, thunk func() any) error {
	if !f.state.CompareAndSwap(int32(FiberWaiting), int32(FiberRunnable)) {
		return newSchedulerError(KindInvalidResume, fmt.Sprintf("fiber %q is not suspended", f.name), nil)
	}
	f.sched.pendingFibers.Add(-1)
	f.pendingThunk = thunk
	f.sched.enqueueFiber(f)
	return nil
}

// ResumeOnReadableFD arms a oneshot wait for readable (and remote-close)
// events on fd, resuming f the next time either is reported. Must be called
// from the owning scheduler's goroutine, typically inside a
// SuspendCurrentFiber callback.
func ResumeOnReadableFD(fd int, f *Fiber) error {
	return f.sched.waits.resumeOnFDEvents(fd, EventReadable|EventHangup, f)
}

// ResumeOnWritableFD arms a oneshot wait for writable events on fd. Same
// calling convention as ResumeOnReadableFD.
func ResumeOnWritableFD(fd int, f *Fiber) error {
	return f.sched.waits.resumeOnFDEvents(fd, EventWritable, f)
}

// ResumeOnTimer inserts a timer entry that, on expiry, calls getThunk to
// atomically claim the resumption of f. getThunk returning nil means some
// other operation already won the race for f's resumption; the timer
// callback is then a no-op. Timer callbacks never block: they either
// enqueue a fiber or do nothing.
func ResumeOnTimer(f *Fiber, deadline time.Time, getThunk func() func() any) error {
	f.sched.timers.insert(deadline, func() {
		if thunk := getThunk(); thunk != nil {
			_ = ResumeFiber(f, thunk)
		}
	})
	return nil
}

// DropFDWaiters removes every wait-source record for fd, decrementing the
// active-fd count exactly once if the fd was armed. Go offers no hook on the
// close of an arbitrary descriptor, so callers closing an fd that fibers may
// still be waiting on invoke this explicitly first. The dropped waiters are
// not resumed; a caller that wants them to observe the close resumes them
// itself via ResumeFiber. Must be called from the owning scheduler's
// goroutine.
func (s *Scheduler) DropFDWaiters(fd int) {
	s.waits.removeFD(fd)
}

// WithScheduler scopes sched as the current scheduler for the calling
// goroutine for the duration of body, restoring the previous binding (if
// any) on every exit path, including a panic propagating out of body.
func WithScheduler(sched *Scheduler, body func()) error {
	gid := getGoroutineID()

	currentSchedMu.Lock()
	prev, hadPrev := currentSchedByGID[gid]
	currentSchedByGID[gid] = sched
	currentSchedMu.Unlock()

	defer func() {
		currentSchedMu.Lock()
		if hadPrev {
			currentSchedByGID[gid] = prev
		} else {
			delete(currentSchedByGID, gid)
		}
		currentSchedMu.Unlock()
	}()

	body()
	return nil
}

var (
	currentSchedMu    sync.RWMutex
	currentSchedByGID = make(map[uint64]*Scheduler)
)

// CurrentScheduler returns the scheduler bound to the calling goroutine via
// WithScheduler (notably, the scheduler goroutine itself while Run is
// executing), or nil if none is bound.
func CurrentScheduler() *Scheduler {
	gid := getGoroutineID()
	currentSchedMu.RLock()
	s := currentSchedByGID[gid]
	currentSchedMu.RUnlock()
	return s
}

// KernelThread returns the goroutine id currently running s, and true, or
// (0, false) if s is not currently running.
func (s *Scheduler) KernelThread() (goroutineID int64, ok bool) {
	gid := s.ownerGoroutine.Load()
	if gid == 0 {
		return 0, false
	}
	return int64(gid), true
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() SchedulerState {
	return s.state.Load()
}

// Metrics returns a point-in-time snapshot of the scheduler's counters.
// Always zero-valued unless WithMetrics(true) was passed to NewScheduler.
func (s *Scheduler) Metrics() SchedulerMetrics {
	return s.metrics.snapshot()
}

// Run drives s to quiescence: it claims ownership of the calling
// goroutine, then repeatedly drains the readiness backend, fires expired
// timers, swaps out the run queue as a batch, and executes each dequeued
// fiber to its next suspension point, until a turn ends with an empty run
// queue, an empty timer queue, zero active fds, and no suspended fibers.
//
// Run fails immediately with an OwnershipViolation if s is already running
// on another goroutine, or is not Idle.
func (s *Scheduler) Run() error {
	gid := getGoroutineID()
	if !s.ownerGoroutine.CompareAndSwap(0, gid) {
		return newSchedulerError(KindOwnershipViolation, fmt.Sprintf("scheduler already owned by goroutine %d", s.ownerGoroutine.Load()), nil)
	}
	if !s.state.TryTransition(SchedulerIdle, SchedulerRunning) {
		s.ownerGoroutine.Store(0)
		return newSchedulerError(KindOwnershipViolation, "scheduler is not idle", nil)
	}

	var loopErr error
	_ = WithScheduler(s, func() {
		loopErr = s.runLoop()
	})

	if s.state.Load() != SchedulerTerminated {
		s.state.Store(SchedulerTerminated)
	}
	s.ownerGoroutine.Store(0)
	return loopErr
}

// runLoop is the turn loop proper. Must be called on the goroutine
// that won Run's ownership CAS.
func (s *Scheduler) runLoop() error {
	logger := s.opts.logger

	for {
		timeoutMs := s.computePollTimeout()

		s.state.Store(SchedulerSleeping)
		var err error
		s.pollBuf, err = s.backend.poll(s.pollBuf[:0], timeoutMs)
		s.state.Store(SchedulerRunning)
		if err != nil {
			logBackendFailure(logger, err)
			return newSchedulerError(KindBackendFailure, "readiness backend poll failed", err)
		}

		fdsDrained := len(s.pollBuf)
		for _, ev := range s.pollBuf {
			resumes, ok := s.waits.dispatch(ev.fd, ev.events)
			if !ok {
				logUnknownFd(logger, ev.fd)
				continue
			}
			for _, rec := range resumes {
				mask := rec.mask
				_ = ResumeFiber(rec.fiber, func() any { return mask })
			}
		}

		expired := s.timers.extractExpired(time.Now())
		for _, e := range expired {
			e.fire()
		}

		batch := s.runQ.drainAll()
		for _, f := range batch {
			s.runFiber(f)
		}

		s.turn++
		s.metrics.recordTurn(len(batch), len(expired))
		s.metrics.setRunQueueLen(s.runQ.Len())
		s.metrics.setActiveFDs(s.waits.activeCount())
		s.metrics.setTimersPending(s.timers.Len())
		logTurn(logger, s.turn, len(batch), len(expired), fdsDrained)

		if len(batch) == 0 && s.waits.activeCount() == 0 && s.timers.Len() == 0 && s.pendingFibers.Load() == 0 {
			return nil
		}
	}
}

// computePollTimeout returns 0 if the run queue is non-empty; else, absent
// pending timers, 0 if no fds are active and no fibers are suspended (about
// to terminate) or indefinite
// (capped by WithPollTimeout, if set) otherwise; else max(0, time until the
// earliest deadline).
func (s *Scheduler) computePollTimeout() int {
	if s.runQ.Len() > 0 {
		return 0
	}

	next := s.timers.peek()
	if next == nil {
		if s.waits.activeCount() == 0 && s.pendingFibers.Load() == 0 {
			return 0
		}
		if s.opts.maxPollTimeout > 0 {
			return int(s.opts.maxPollTimeout.Milliseconds())
		}
		return -1
	}

	d := time.Until(next.deadline)
	if d < 0 {
		d = 0
	}
	return int(d.Milliseconds())
}

// runFiber executes f to its next suspension point. f must currently be
// Runnable (the caller having just drained it from the run queue).
func (s *Scheduler) runFiber(f *Fiber) {
	f.ensureStarted()
	f.state.Store(int32(FiberRunning))

	var resumeVal any
	if f.pendingThunk != nil {
		resumeVal = f.pendingThunk()
		f.pendingThunk = nil
	}

	f.toFiber <- resumeVal
	sig := <-f.toSched

	switch sig.kind {
	case sigSuspended:
		// f.state was already set to FiberWaiting by SuspendCurrentFiber,
		// before it handed control back to this goroutine. The pending count
		// must rise before afterSuspend runs: the callback may resume f
		// synchronously, and that resume decrements it.
		s.pendingFibers.Add(1)
		if sig.afterSuspend != nil {
			sig.afterSuspend(f)
		}
	case sigPanic:
		f.state.Store(int32(FiberTerminated))
		f.err = &FiberPanicError{Value: sig.panicValue, Stack: sig.stack, FiberName: f.name}
		logFiberPanic(s.opts.logger, f.name, f.err)
	default: // sigDone
		f.state.Store(int32(FiberTerminated))
	}
}

// Close releases the readiness backend's kernel resources. Idempotent;
// undelivered timers and wait-sources are simply dropped.
func (s *Scheduler) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(SchedulerTerminated)
		s.closeErr = s.backend.close()
	})
	return s.closeErr
}
