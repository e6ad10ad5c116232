package fiber

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerErrorIsMatchesSentinelByKind(t *testing.T) {
	err := newSchedulerError(KindInvalidResume, "fiber \"f1\" is not suspended", nil)

	assert.True(t, errors.Is(err, ErrInvalidResume))
	assert.False(t, errors.Is(err, ErrOwnershipViolation))
	assert.False(t, errors.Is(err, ErrUnknownFd))
}

func TestSchedulerErrorWithCauseStillMatchesSentinel(t *testing.T) {
	// A SchedulerError wrapping an underlying cause is still the same Kind,
	// but Is is only meant for sentinel comparison: a constructed error with
	// a Cause should still satisfy errors.Is against the bare sentinel.
	wrapped := newSchedulerError(KindBackendFailure, "epoll_wait", errors.New("EBADF"))
	assert.True(t, errors.Is(wrapped, ErrBackendFailure))
}

func TestSchedulerErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("epoll_wait: bad file descriptor")
	err := newSchedulerError(KindBackendFailure, "poll failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestSchedulerErrorMessageIncludesKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := newSchedulerError(KindBackendFailure, "poll failed", cause)
	assert.Contains(t, err.Error(), "BackendFailure")
	assert.Contains(t, err.Error(), "poll failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestErrorKindStringCoversEveryKind(t *testing.T) {
	kinds := []ErrorKind{
		KindOwnershipViolation,
		KindInvalidResume,
		KindUnknownFd,
		KindContinuationBarrier,
		KindBackendFailure,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		require.NotEmpty(t, s)
		assert.False(t, seen[s], "duplicate ErrorKind.String() value %q", s)
		seen[s] = true
	}
}

func TestFiberPanicErrorUnwrapsErrorValue(t *testing.T) {
	cause := errors.New("index out of range")
	fp := &FiberPanicError{Value: cause, FiberName: "worker-1"}

	require.ErrorIs(t, fp, cause)
	assert.Contains(t, fp.Error(), "worker-1")
	assert.Contains(t, fp.Error(), "index out of range")
}

func TestFiberPanicErrorUnwrapsNilForNonErrorValue(t *testing.T) {
	fp := &FiberPanicError{Value: "plain string panic"}
	assert.Nil(t, fp.Unwrap())
	assert.Contains(t, fp.Error(), "plain string panic")
}
