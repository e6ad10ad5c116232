//go:build darwin

package fiber

import (
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// kqueueBackend is the Darwin readinessBackend: a kqueue instance with a
// self-pipe wake primitive. Every registration change sets EV_ONESHOT, the
// same oneshot discipline epollBackend applies on Linux.
type kqueueBackend struct {
	kq       int
	eventBuf []unix.Kevent_t

	mu     sync.Mutex
	active map[int]IOEvents
	closed atomic.Bool

	wakeReadFD  int
	wakeWriteFD int
}

func newReadinessBackend() (readinessBackend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, newSchedulerError(KindBackendFailure, "kqueue", err)
	}

	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		_ = unix.Close(kq)
		return nil, newSchedulerError(KindBackendFailure, "pipe", err)
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		_ = unix.Close(kq)
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return nil, newSchedulerError(KindBackendFailure, "set wake pipe nonblocking", err)
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		_ = unix.Close(kq)
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return nil, newSchedulerError(KindBackendFailure, "set wake pipe nonblocking", err)
	}

	b := &kqueueBackend{
		kq:          kq,
		eventBuf:    make([]unix.Kevent_t, 256),
		active:      make(map[int]IOEvents),
		wakeReadFD:  fds[0],
		wakeWriteFD: fds[1],
	}

	wakeEv := unix.Kevent_t{}
	unix.SetKevent(&wakeEv, fds[0], unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wakeEv}, nil, nil); err != nil {
		_ = unix.Close(kq)
		_ = syscall.Close(fds[0])
		_ = syscall.Close(fds[1])
		return nil, newSchedulerError(KindBackendFailure, "kevent(add wake fd)", err)
	}

	return b, nil
}

func (b *kqueueBackend) changeList(fd int, mask IOEvents, add bool) []unix.Kevent_t {
	flags := uint16(unix.EV_DELETE)
	if add {
		flags = unix.EV_ADD | unix.EV_ONESHOT
	}
	var changes []unix.Kevent_t
	if add && mask&EventReadable != 0 || !add {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_READ, int(flags))
		changes = append(changes, ev)
	}
	if add && mask&EventWritable != 0 || !add {
		var ev unix.Kevent_t
		unix.SetKevent(&ev, fd, unix.EVFILT_WRITE, int(flags))
		changes = append(changes, ev)
	}
	return changes
}

func (b *kqueueBackend) register(fd int, mask IOEvents) error {
	if b.closed.Load() {
		return newSchedulerError(KindBackendFailure, "register on closed backend", nil)
	}
	changes := b.changeList(fd, mask, true)
	if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
		return newSchedulerError(KindBackendFailure, "kevent(add)", err)
	}
	b.mu.Lock()
	b.active[fd] = mask
	b.mu.Unlock()
	return nil
}

func (b *kqueueBackend) modify(fd int, mask IOEvents) error {
	return b.register(fd, mask)
}

func (b *kqueueBackend) remove(fd int) error {
	b.mu.Lock()
	prev, ok := b.active[fd]
	delete(b.active, fd)
	b.mu.Unlock()
	if !ok || b.closed.Load() {
		return nil
	}
	changes := b.changeList(fd, prev, false)
	// EV_ONESHOT entries self-remove once fired; ignore ENOENT from a
	// redundant delete.
	if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil && err != unix.ENOENT {
		return newSchedulerError(KindBackendFailure, "kevent(delete)", err)
	}
	return nil
}

func (b *kqueueBackend) poll(dst []readyEvent, timeoutMs int) ([]readyEvent, error) {
	if b.closed.Load() {
		return dst, newSchedulerError(KindBackendFailure, "poll on closed backend", nil)
	}

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1e6))
		ts = &t
	}

	n, err := unix.Kevent(b.kq, nil, b.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, newSchedulerError(KindBackendFailure, "kevent(poll)", err)
	}

	for i := 0; i < n; i++ {
		ev := b.eventBuf[i]
		fd := int(ev.Ident)
		if fd == b.wakeReadFD {
			b.drainWake()
			continue
		}
		var mask IOEvents
		switch ev.Filter {
		case unix.EVFILT_READ:
			mask |= EventReadable
		case unix.EVFILT_WRITE:
			mask |= EventWritable
		}
		if ev.Flags&unix.EV_EOF != 0 {
			mask |= EventHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			mask |= EventError
		}
		dst = append(dst, readyEvent{fd: fd, events: mask})
	}
	return dst, nil
}

func (b *kqueueBackend) drainWake() {
	var buf [64]byte
	for {
		_, err := syscall.Read(b.wakeReadFD, buf[:])
		if err != nil {
			return
		}
	}
}

func (b *kqueueBackend) wake() error {
	_, err := syscall.Write(b.wakeWriteFD, []byte{1})
	if err != nil && err != syscall.EAGAIN {
		return newSchedulerError(KindBackendFailure, "wake pipe write", err)
	}
	return nil
}

func (b *kqueueBackend) close() error {
	b.closed.Store(true)
	_ = syscall.Close(b.wakeReadFD)
	_ = syscall.Close(b.wakeWriteFD)
	return unix.Close(b.kq)
}
