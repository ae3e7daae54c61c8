// Package reactor implements the I/O multiplexer from spec.md §4.1: a
// single epoll-driven accept/readiness loop that hands off all actual
// request handling to the worker pool, never blocking on a single
// connection's I/O itself.
//
// Grounded on original_source/TcpServer.cpp's init()/run() (epoll_create1,
// edge-triggered registration, MAX_EPOLL_EVENTS, the 10ms cooldown sleep)
// transliterated to golang.org/x/sys/unix the way
// other_examples/entertainment-venue-rcproxy's core-eventloop.go and
// other_examples/darinkes-gnet wrap EpollCreate1/EpollCtl/EpollWait.
package reactor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/reactorhttp/internal/logging"
	"github.com/ehrlich-b/reactorhttp/internal/netutil"
)

// MaxEvents is the epoll_wait batch size per turn, matching
// original_source/TcpServer.hpp's MAX_EPOLL_EVENTS.
const MaxEvents = 100

// Cooldown is the sleep applied after each dispatch batch, matching
// original_source/TcpServer.cpp's 10ms loop cooldown.
const Cooldown = 10 * time.Millisecond

// readinessEvents is what every connection and the listener are armed
// with: edge-triggered, input, output, and every terminal condition.
const readinessEvents = unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET | unix.EPOLLHUP | unix.EPOLLRDHUP | unix.EPOLLERR

// Dispatcher receives readiness notifications; *worker.Pool satisfies it.
type Dispatcher interface {
	Adopt(fd int) (workerIdx int)
	Notify(fd int, readable, writable, closed bool)
}

// Reactor owns the listening socket and the epoll instance multiplexing
// every connection's readiness.
type Reactor struct {
	listenFd int
	epfd     int
	stopR    int // self-pipe read end, used to interrupt epoll_wait on Stop
	stopW    int
	dispatch Dispatcher
	logger   *logging.Logger
}

// New creates a non-blocking listening socket bound to addr and an epoll
// instance watching it, following original_source/TcpServer.cpp's init().
func New(addr netutil.AddrInfo, dispatch Dispatcher, logger *logging.Logger) (*Reactor, error) {
	if logger == nil {
		logger = logging.Default()
	}

	listenFd, err := netutil.NewListener(addr)
	if err != nil {
		return nil, err
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		netutil.Close(listenFd)
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}

	pipeFds := make([]int, 2)
	if err := unix.Pipe2(pipeFds, unix.O_NONBLOCK); err != nil {
		unix.Close(epfd)
		netutil.Close(listenFd)
		return nil, fmt.Errorf("reactor: pipe2: %w", err)
	}

	r := &Reactor{
		listenFd: listenFd,
		epfd:     epfd,
		stopR:    pipeFds[0],
		stopW:    pipeFds[1],
		dispatch: dispatch,
		logger:   logger,
	}

	if err := r.register(listenFd); err != nil {
		r.Close()
		return nil, err
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, r.stopR, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(r.stopR)}); err != nil {
		r.Close()
		return nil, fmt.Errorf("reactor: epoll_ctl stop pipe: %w", err)
	}

	logger.Info("reactor listening", "addr", addr.String())
	return r, nil
}

func (r *Reactor) register(fd int) error {
	ev := unix.EpollEvent{Events: uint32(readinessEvents), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Serve runs the epoll_wait loop until ctx is cancelled or Stop is called.
func (r *Reactor) Serve(ctx context.Context) error {
	// epoll_wait blocks without a timeout, so ctx cancellation is turned
	// into a Stop to wake it.
	stopWatch := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			r.Stop()
		case <-stopWatch:
		}
	}()
	defer func() {
		close(stopWatch)
		<-watchDone
	}()

	events := make([]unix.EpollEvent, MaxEvents)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			mask := events[i].Events

			switch {
			case fd == int(r.stopR):
				return nil
			case fd == r.listenFd:
				r.acceptAll()
			default:
				r.notify(fd, mask)
			}
		}

		time.Sleep(Cooldown)
	}
}

func (r *Reactor) acceptAll() {
	fds, err := netutil.AcceptAll(r.listenFd)
	if err != nil {
		r.logger.Warn("accept error", "err", err)
	}
	for _, fd := range fds {
		if err := r.register(fd); err != nil {
			r.logger.Warn("failed to register accepted fd", "fd", fd, "err", err)
			netutil.Close(fd)
			continue
		}
		r.dispatch.Adopt(fd)
	}
}

func (r *Reactor) notify(fd int, mask uint32) {
	closed := mask&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0
	readable := mask&unix.EPOLLIN != 0
	writable := mask&unix.EPOLLOUT != 0
	// Readable takes precedence over writable within a single notify: a
	// writable edge reported together with readable is not forwarded, and
	// the read path writes any response it produces directly.
	r.dispatch.Notify(fd, readable, writable && !readable, closed)
}

// Stop interrupts a blocked Serve call via the self-pipe trick, matching
// original_source's cooperative-shutdown style (checked each loop turn).
func (r *Reactor) Stop() {
	_, _ = unix.Write(r.stopW, []byte{0})
}

// Close releases the reactor's file descriptors. Call after Serve returns.
func (r *Reactor) Close() {
	unix.Close(r.stopW)
	unix.Close(r.stopR)
	unix.Close(r.epfd)
	netutil.Close(r.listenFd)
}
