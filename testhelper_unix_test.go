//go:build linux || darwin

package fiber

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenerFD extracts the underlying file descriptor from a *net.TCPListener
// for direct registration with the readiness backend, bypassing the runtime
// netpoller entirely (this module is its own netpoller). The returned dup'd
// fd must be closed independently of ln.
func listenerFD(ln net.Listener) (fd int, closeFD func() error, err error) {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return 0, nil, errNotSyscallConn
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, nil, err
	}

	var dupFD int
	var dupErr error
	ctrlErr := raw.Control(func(fdv uintptr) {
		dupFD, dupErr = unix.Dup(int(fdv))
	})
	if ctrlErr != nil {
		return 0, nil, ctrlErr
	}
	if dupErr != nil {
		return 0, nil, dupErr
	}
	if err := unix.SetNonblock(dupFD, true); err != nil {
		_ = unix.Close(dupFD)
		return 0, nil, err
	}
	return dupFD, func() error { return unix.Close(dupFD) }, nil
}

// rawPipe creates a pipe via the raw pipe2(2) syscall with O_NONBLOCK set on
// both ends, entirely outside Go's os.File/runtime-netpoller integration, so
// that reads and writes surface EAGAIN/EWOULDBLOCK directly instead of being
// silently parked by the runtime.
func rawPipe() (r, w int, err error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

func rawWrite(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}

func rawRead(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

func closeFD(fd int) error {
	return unix.Close(fd)
}

var errNotSyscallConn = &listenerFDError{"listener does not implement syscall.Conn"}

type listenerFDError struct{ msg string }

func (e *listenerFDError) Error() string { return e.msg }
