// Package fiber provides a cooperative, event-driven user-space fiber
// scheduler for Go: lightweight threads of control suspended and resumed by
// a single-threaded-per-scheduler loop in response to file descriptor
// readiness, timer expiry, and explicit cross-thread wake-ups.
//
// # Architecture
//
// A [Scheduler] owns one turn loop pinned to a single goroutine once
// running: a [runQueue] of runnable fibers, a [timerQueue] ordered by
// deadline, a [waitSourceTable] mapping file descriptors to waiting
// fibers, and a readiness backend ([readinessBackend], backed by epoll on
// Linux and kqueue on Darwin). Each turn drains ready fds, fires expired
// timers, swaps the run queue's contents out as a batch, and runs each
// dequeued [Fiber] to its next suspension point.
//
// Go has no first-class delimited continuations, so a [Fiber]'s
// "continuation" is realized as a dedicated goroutine paired with the
// scheduler through two unbuffered handoff channels: the fiber blocks on
// one while the scheduler runs, and the scheduler blocks on the other
// while the fiber runs. Only one side is ever runnable for a given fiber,
// which preserves the single-fiber-at-a-time cooperative model.
//
// # Suspension and resumption
//
//	f := sched.CreateFiber(func() {
//	    v := fiber.SuspendCurrentFiber(func(f *fiber.Fiber) {
//	        fiber.ResumeOnReadableFD(rfd, f)
//	    })
//	    // v carries the event mask reported by the backend
//	})
//
// [ResumeFiber] is the only cross-thread operation: it sets the target
// fiber's continuation slot and enqueues it on its owning scheduler's run
// queue, waking that scheduler if it is currently blocked in poll.
//
// # Platform support
//
// The readiness backend is epoll on Linux ([golang.org/x/sys/unix]) and
// kqueue on Darwin, both armed with oneshot semantics: a single
// notification disarms the fd until explicitly re-registered. Without
// oneshot, a ready fd could redeliver within the same turn before a fiber
// has consumed it.
//
// # Cancellation
//
// The scheduler exposes no built-in cancellation or forcible kill. These
// are composed externally from [ResumeOnTimer] plus a shared claim cell
// (the "get-thunk" idiom): see [NewCancelSignal] for a worked composition
// that exposes a [context.Context]-shaped cancellation signal. A fiber
// that must support forcible termination should cooperatively check a
// flag of its own; the scheduler does not unwind fiber stacks.
//
// # Observability
//
// Structured logging is opt-in via [WithLogger], using a
// [github.com/joeycumines/logiface] generic logger (the package ships
// against [github.com/joeycumines/stumpy]'s JSON backend but accepts any
// compatible implementation). With no logger configured, a no-op logger is
// used: logging costs nothing until enabled. [Scheduler.Metrics] exposes a
// plain snapshot of turn, queue-depth, and active-fd counters.
package fiber
