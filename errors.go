package fiber

import (
	"errors"
	"fmt"
)

// ErrorKind distinguishes the five error categories the scheduler core can
// surface.
type ErrorKind int

const (
	// KindOwnershipViolation: a scheduler was asked to run on a kernel
	// thread other than the one already running it.
	KindOwnershipViolation ErrorKind = iota
	// KindInvalidResume: ResumeFiber was called on a fiber whose
	// continuation slot is empty (not suspended, or already resumed).
	KindInvalidResume
	// KindUnknownFd: the readiness backend reported an fd absent from the
	// wait-source table. Logged and dropped; never fatal.
	KindUnknownFd
	// KindContinuationBarrier: SuspendCurrentFiber was called outside the
	// dynamic extent of the fiber's owning scheduler's prompt.
	KindContinuationBarrier
	// KindBackendFailure: the readiness backend returned an unrecoverable
	// error. Terminates the scheduler.
	KindBackendFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindOwnershipViolation:
		return "OwnershipViolation"
	case KindInvalidResume:
		return "InvalidResume"
	case KindUnknownFd:
		return "UnknownFd"
	case KindContinuationBarrier:
		return "ContinuationBarrier"
	case KindBackendFailure:
		return "BackendFailure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// SchedulerError is the concrete error type for every error kind the core
// surfaces. Cause may be nil (ownership/invalid-resume/barrier violations
// are usually self-describing programmer errors with no underlying cause).
type SchedulerError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *SchedulerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fiber: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("fiber: %s: %s", e.Kind, e.Message)
}

func (e *SchedulerError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *SchedulerError with the same Kind and no
// Cause (the shape of the per-kind sentinels), allowing callers to write errors.Is(err, fiber.ErrInvalidResume) style
// sentinel checks against the per-kind sentinels below.
func (e *SchedulerError) Is(target error) bool {
	var se *SchedulerError
	if errors.As(target, &se) {
		return se.Kind == e.Kind && se.Cause == nil
	}
	return false
}

// Sentinel values usable with errors.Is to test an error's Kind without
// constructing a SchedulerError by hand.
var (
	ErrOwnershipViolation  = &SchedulerError{Kind: KindOwnershipViolation, Message: "sentinel"}
	ErrInvalidResume       = &SchedulerError{Kind: KindInvalidResume, Message: "sentinel"}
	ErrUnknownFd           = &SchedulerError{Kind: KindUnknownFd, Message: "sentinel"}
	ErrContinuationBarrier = &SchedulerError{Kind: KindContinuationBarrier, Message: "sentinel"}
	ErrBackendFailure      = &SchedulerError{Kind: KindBackendFailure, Message: "sentinel"}
)

func newSchedulerError(kind ErrorKind, message string, cause error) *SchedulerError {
	return &SchedulerError{Kind: kind, Message: message, Cause: cause}
}

// FiberPanicError wraps a value recovered from a panicking fiber body,
// preserving both the recovered value and a captured stack trace. The
// scheduler stores it on the fiber (see Fiber.Err) and logs it; Run does not
// return it.
type FiberPanicError struct {
	Value     any
	Stack     []byte
	FiberName string
}

func (e *FiberPanicError) Error() string {
	if e.FiberName != "" {
		return fmt.Sprintf("fiber: panic in fiber %q: %v", e.FiberName, e.Value)
	}
	return fmt.Sprintf("fiber: panic in fiber: %v", e.Value)
}

// Unwrap exposes the recovered value for errors.Is/errors.As when it is
// itself an error.
func (e *FiberPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
