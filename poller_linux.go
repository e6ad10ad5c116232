//go:build linux

package fiber

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// epollBackend is the Linux readinessBackend: a single epoll instance plus
// a reusable event buffer, with a narrow mutex around the registration map
// (fd numbers are not assumed dense, since fibers may watch arbitrary
// application fds).
//
// Every register/modify call arms EPOLLONESHOT: a single delivered event
// disarms the fd until explicitly re-armed. The scheduler, via the
// wait-source table, is the sole re-arming authority.
type epollBackend struct {
	epfd     int
	eventBuf []unix.EpollEvent

	mu     sync.RWMutex
	active map[int]struct{}
	closed atomic.Bool

	wakeFD int // eventfd, read+write end are the same fd on Linux
}

func newReadinessBackend() (readinessBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, newSchedulerError(KindBackendFailure, "epoll_create1", err)
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, newSchedulerError(KindBackendFailure, "eventfd", err)
	}

	b := &epollBackend{
		epfd:     epfd,
		eventBuf: make([]unix.EpollEvent, 256),
		active:   make(map[int]struct{}),
		wakeFD:   wakeFD,
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFD),
	}); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFD)
		return nil, newSchedulerError(KindBackendFailure, "epoll_ctl(wakefd)", err)
	}

	return b, nil
}

func eventsToEpoll(mask IOEvents) uint32 {
	var e uint32 = unix.EPOLLONESHOT
	if mask&EventReadable != 0 {
		e |= unix.EPOLLIN
	}
	if mask&EventWritable != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var mask IOEvents
	if e&unix.EPOLLIN != 0 {
		mask |= EventReadable
	}
	if e&unix.EPOLLOUT != 0 {
		mask |= EventWritable
	}
	if e&unix.EPOLLHUP != 0 || e&unix.EPOLLRDHUP != 0 {
		mask |= EventHangup
	}
	if e&unix.EPOLLERR != 0 {
		mask |= EventError
	}
	return mask
}

func (b *epollBackend) register(fd int, mask IOEvents) error {
	if b.closed.Load() {
		return newSchedulerError(KindBackendFailure, "register on closed backend", nil)
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return newSchedulerError(KindBackendFailure, "epoll_ctl(add)", err)
	}
	b.mu.Lock()
	b.active[fd] = struct{}{}
	b.mu.Unlock()
	return nil
}

func (b *epollBackend) modify(fd int, mask IOEvents) error {
	if b.closed.Load() {
		return newSchedulerError(KindBackendFailure, "modify on closed backend", nil)
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return newSchedulerError(KindBackendFailure, "epoll_ctl(mod)", err)
	}
	return nil
}

func (b *epollBackend) remove(fd int) error {
	b.mu.Lock()
	delete(b.active, fd)
	b.mu.Unlock()
	if b.closed.Load() {
		return nil
	}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT {
		return newSchedulerError(KindBackendFailure, "epoll_ctl(del)", err)
	}
	return nil
}

func (b *epollBackend) poll(dst []readyEvent, timeoutMs int) ([]readyEvent, error) {
	if b.closed.Load() {
		return dst, newSchedulerError(KindBackendFailure, "poll on closed backend", nil)
	}

	n, err := unix.EpollWait(b.epfd, b.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, newSchedulerError(KindBackendFailure, "epoll_wait", err)
	}

	for i := 0; i < n; i++ {
		fd := int(b.eventBuf[i].Fd)
		if fd == b.wakeFD {
			b.drainWake()
			continue
		}
		dst = append(dst, readyEvent{fd: fd, events: epollToEvents(b.eventBuf[i].Events)})
	}
	return dst, nil
}

func (b *epollBackend) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(b.wakeFD, buf[:])
		if err != nil {
			return
		}
	}
}

func (b *epollBackend) wake() error {
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(b.wakeFD, one[:])
	if err != nil && err != unix.EAGAIN {
		return newSchedulerError(KindBackendFailure, "eventfd write", err)
	}
	return nil
}

func (b *epollBackend) close() error {
	b.closed.Store(true)
	_ = unix.Close(b.wakeFD)
	return unix.Close(b.epfd)
}
