package reactor

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/reactorhttp/internal/netutil"
)

// recordingDispatcher captures Adopt/Notify calls for assertions without
// pulling in the worker package, keeping reactor tests focused on the
// epoll plumbing itself.
type recordingDispatcher struct {
	adopted chan int
	notify  chan notifyCall
}

type notifyCall struct {
	fd                        int
	readable, writable, closed bool
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{adopted: make(chan int, 16), notify: make(chan notifyCall, 16)}
}

func (d *recordingDispatcher) Adopt(fd int) int {
	d.adopted <- fd
	return 0
}

func (d *recordingDispatcher) Notify(fd int, readable, writable, closed bool) {
	d.notify <- notifyCall{fd, readable, writable, closed}
}

func TestReactor_AcceptsAndNotifiesReadable(t *testing.T) {
	// Discover a free ephemeral port via a throwaway listener, then bind
	// the reactor's own listener to it.
	probe, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint32(probe.Addr().(*net.TCPAddr).Port)
	require.NoError(t, probe.Close())

	addr, err := netutil.ParseAddrInfo("127.0.0.1", uint16(port))
	require.NoError(t, err)

	disp := newRecordingDispatcher()
	r, err := New(addr, disp, nil)
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	conn, err := net.Dial("tcp4", fmt.Sprintf("%s:%d", addr.String(), addr.Port()))
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-disp.adopted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Adopt")
	}

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)

	select {
	case nc := <-disp.notify:
		assert.True(t, nc.readable)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Notify")
	}

	r.Stop()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
