package fiber

import (
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// getGoroutineID recovers the calling goroutine's numeric id by parsing the
// "goroutine NNN [...]" prefix runtime.Stack produces. Go exposes no native
// goroutine-local storage, so this is how a single-threaded resource gets
// bound to the one goroutine allowed to touch it.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

var (
	currentFiberMu sync.RWMutex
	currentFiber   = make(map[uint64]*Fiber)
)

func bindCurrentFiber(f *Fiber) {
	gid := getGoroutineID()
	currentFiberMu.Lock()
	currentFiber[gid] = f
	currentFiberMu.Unlock()
}

func unbindCurrentFiber() {
	gid := getGoroutineID()
	currentFiberMu.Lock()
	delete(currentFiber, gid)
	currentFiberMu.Unlock()
}

// CurrentFiber returns the fiber whose goroutine is calling, or nil if the
// calling goroutine is not a fiber's dedicated goroutine.
func CurrentFiber() *Fiber {
	gid := getGoroutineID()
	currentFiberMu.RLock()
	f := currentFiber[gid]
	currentFiberMu.RUnlock()
	return f
}

type suspendSignalKind int

const (
	sigSuspended suspendSignalKind = iota
	sigDone
	sigPanic
)

// suspendSignal is what a fiber's dedicated goroutine sends back to the
// scheduler goroutine across toSched: either "I suspended, here is the
// callback to run in your dynamic extent", or "I am done" (normal return
// or panic).
type suspendSignal struct {
	kind         suspendSignalKind
	afterSuspend func(*Fiber)
	panicValue   any
	stack        []byte
}

// Fiber is a lightweight cooperative thread of control: a suspended
// continuation plus a reference to its owning scheduler. Go has no
// first-class delimited continuations, so the continuation is realized as
// a dedicated goroutine paired with the scheduler goroutine over two
// unbuffered handoff channels; see the package documentation.
type Fiber struct {
	id    uint64
	name  string
	sched *Scheduler

	// state tracks the fiber's lifecycle: Runnable, Running, Waiting,
	// Terminated. ResumeFiber claims the Waiting->Runnable transition with
	// a CAS so cross-thread double-resume is detected as InvalidResume.
	state atomic.Int32

	fn func()

	// pendingThunk is set by ResumeFiber before the fiber is enqueued, and
	// consumed by the scheduler's runFiber just before handing control
	// back to the fiber's goroutine. It is written before runQueue.enqueue
	// takes its mutex and read only after runQueue.drainAll released the
	// same mutex, which is what makes the write visible without a manual
	// memory fence.
	pendingThunk func() any

	started atomic.Bool
	toFiber chan any
	toSched chan suspendSignal

	err error // set if the fiber's body panicked
}

// Scheduler returns the fiber's owning scheduler (fixed at creation).
func (f *Fiber) Scheduler() *Scheduler { return f.sched }

// Name returns the fiber's registered name, if any.
func (f *Fiber) Name() string { return f.name }

// State returns the fiber's current lifecycle state.
func (f *Fiber) State() FiberState { return FiberState(f.state.Load()) }

// Err returns the error recovered from a panicking fiber body, or nil.
func (f *Fiber) Err() error { return f.err }

func newFiber(sched *Scheduler, id uint64, fn func()) *Fiber {
	return &Fiber{
		id:      id,
		sched:   sched,
		fn:      fn,
		toFiber: make(chan any),
		toSched: make(chan suspendSignal),
	}
}

// ensureStarted spawns the fiber's dedicated goroutine exactly once. Must
// be called from the scheduler's owning thread.
func (f *Fiber) ensureStarted() {
	if f.started.CompareAndSwap(false, true) {
		go f.goroutineMain()
	}
}

func (f *Fiber) goroutineMain() {
	bindCurrentFiber(f)
	defer unbindCurrentFiber()

	// The first handoff just releases this goroutine to begin running fn;
	// its value is unused (a fiber's initial step takes no resume value).
	<-f.toFiber

	var sig suspendSignal
	func() {
		defer func() {
			if r := recover(); r != nil {
				sig = suspendSignal{kind: sigPanic, panicValue: r, stack: debug.Stack()}
			}
		}()
		f.fn()
		sig = suspendSignal{kind: sigDone}
	}()
	f.toSched <- sig
}

// SuspendCurrentFiber is the suspend/resume boundary: it captures the
// calling fiber's continuation (by parking its goroutine on toFiber), marks
// the continuation slot non-empty, and has the scheduler goroutine invoke
// afterSuspend(fiber) in its own dynamic extent. The callback is expected
// to register the fiber with a wait source, the timer queue, or an external
// synchronization primitive.
//
// It must be called from a fiber's own dedicated goroutine; calling it
// from a goroutine that is not a fiber's is a ContinuationBarrier violation
// and panics with a *SchedulerError, which propagates to the caller.
func SuspendCurrentFiber(afterSuspend func(*Fiber)) any {
	f := CurrentFiber()
	if f == nil {
		panic(newSchedulerError(KindContinuationBarrier, "suspend_current_fiber called outside a fiber's goroutine", nil))
	}
	f.state.Store(int32(FiberWaiting))
	f.toSched <- suspendSignal{kind: sigSuspended, afterSuspend: afterSuspend}
	return <-f.toFiber
}
