package netutil

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MaxBacklog is the listen(2) backlog, matching
// original_source/TcpServer.hpp's MAX_LISTENING_CLIENTS.
const MaxBacklog = 128

// NewListener creates a non-blocking IPv4 TCP listening socket bound to
// addr, following the exact sequence of original_source/TcpServer.cpp's
// init()/run(): socket, SO_REUSEADDR, O_NONBLOCK, bind, listen.
func NewListener(addr AddrInfo) (fd int, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: int(addr.Port())}
	sa.Addr = addr.Bytes()
	if err = unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: bind: %w", err)
	}

	if err = unix.Listen(fd, MaxBacklog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: listen: %w", err)
	}

	return fd, nil
}

// AcceptAll drains every pending connection on a non-blocking listening fd,
// returning accepted (already non-blocking) client fds, stopping at EAGAIN.
// Mirrors original_source/Socket.hpp's acceptAll loop.
func AcceptAll(listenFd int) ([]int, error) {
	var fds []int
	for {
		nfd, _, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return fds, nil
			}
			if err == unix.EINTR {
				continue
			}
			return fds, fmt.Errorf("netutil: accept4: %w", err)
		}
		fds = append(fds, nfd)
	}
}

// Read performs a single non-blocking read into buf. The return value
// distinguishes the three outcomes the connection state machine cares
// about: n > 0 (progress), wouldBlock == true (EAGAIN, try later), or an
// error (non-recoverable). n == 0 with neither set means the peer closed.
func Read(fd int, buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

// Write performs a single non-blocking write of buf. Same three-way
// outcome convention as Read.
func Write(fd int, buf []byte) (n int, wouldBlock bool, err error) {
	n, err = unix.Write(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, true, nil
		}
		return 0, false, err
	}
	return n, false, nil
}

// Close closes fd, swallowing EBADF so repeated closes (late events racing
// a prior close) are safe no-ops, matching the idempotent close path
// spec.md §7 requires.
func Close(fd int) {
	_ = unix.Close(fd)
}
