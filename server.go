// Package reactorhttp is the main API for the single-host, event-driven
// HTTP server: an epoll-class reactor feeding a fixed worker pool that
// runs the per-connection HTTP state machine, dispatches through a route
// table, and can answer requests asynchronously through an event broker.
//
// Grounded on the teacher's root package (CreateAndServe/StopAndDelete
// lifecycle, Options struct, context-driven shutdown, fmt.Errorf-wrapped
// failures at each setup stage).
package reactorhttp

import (
	"context"
	"fmt"
	"sync"

	"github.com/ehrlich-b/reactorhttp/internal/broker"
	"github.com/ehrlich-b/reactorhttp/internal/dispatch"
	"github.com/ehrlich-b/reactorhttp/internal/httpwire"
	"github.com/ehrlich-b/reactorhttp/internal/logging"
	"github.com/ehrlich-b/reactorhttp/internal/metrics"
	"github.com/ehrlich-b/reactorhttp/internal/netutil"
	"github.com/ehrlich-b/reactorhttp/internal/reactor"
	"github.com/ehrlich-b/reactorhttp/internal/staticfile"
	"github.com/ehrlich-b/reactorhttp/internal/worker"
)

// staticRoutePattern is the catch-all wildcard SetRoot registers.
const staticRoutePattern = "/*"

// Handler serves one request, optionally answering later through emit
// (see dispatch.Handler's doc for the async contract).
type Handler = dispatch.Handler

// Request and Response are re-exported so callers implementing Handler
// never need to import internal/httpwire directly.
type Request = httpwire.Request
type Response = httpwire.Response

// NewResponse builds a Response with an auto-computed Content-Length
// header, the way every built-in handler in this package does.
func NewResponse(status int, body []byte) Response {
	return httpwire.NewResponse(status, body)
}

// EmitFunc, Message, ResponseMessage, and RawMessage are re-exported so
// callers answering asynchronously through Broker() never need to import
// internal/broker directly.
type EmitFunc = broker.EmitFunc
type Message = broker.Message
type ResponseMessage = broker.ResponseMessage
type RawMessage = broker.RawMessage

// Method re-exports the HTTP method type used in route registration.
type Method = httpwire.Method

const (
	GET     = httpwire.GET
	HEAD    = httpwire.HEAD
	POST    = httpwire.POST
	PUT     = httpwire.PUT
	DELETE  = httpwire.DELETE
	OPTIONS = httpwire.OPTIONS
	PATCH   = httpwire.PATCH
)

// Server wires the reactor, worker pool, route table, and event broker
// together behind the public API spec.md §6 describes.
type Server struct {
	opts Options

	table   *dispatch.Table
	reg     *broker.Registry
	pool    *worker.Pool
	metrics *metrics.Metrics

	mu      sync.Mutex
	reactor *reactor.Reactor
	cancel  context.CancelFunc
	started bool
	stopped chan struct{}
	root    string
}

// NewServer constructs a Server from opts. It does not bind a socket or
// start any goroutines; call Start for that.
func NewServer(opts Options) (*Server, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	m := metrics.New()
	observer := opts.Observer
	if observer == nil {
		observer = metrics.NewObserver(m)
	}

	table := dispatch.NewTable()
	reg := broker.NewRegistry()
	pool := worker.New(opts.Workers, table, reg, opts.Logger)
	pool.SetObserver(observer)

	s := &Server{
		opts:    opts,
		table:   table,
		reg:     reg,
		pool:    pool,
		metrics: m,
	}

	if opts.Root != "" {
		s.SetRoot(opts.Root)
	}

	return s, nil
}

// RegisterRoute adds a (method, pattern) route, per spec.md §4.4. pattern
// is either a literal path or ends in "*" for a prefix wildcard.
func (s *Server) RegisterRoute(method Method, pattern string, h Handler) error {
	if err := s.table.Register(method, pattern, h); err != nil {
		return WrapError("RegisterRoute", errKindFor(err), err)
	}
	return nil
}

// UnregisterRoute removes a previously registered route, if present.
func (s *Server) UnregisterRoute(method Method, pattern string) {
	s.table.Unregister(method, pattern)
}

// SetRoot (re)configures the built-in static file responder and mounts it
// at the wildcard catch-all route for GET and HEAD, replacing any prior
// mount.
func (s *Server) SetRoot(path string) {
	s.mu.Lock()
	s.root = path
	s.mu.Unlock()

	responder := staticfile.New(path)
	s.table.Unregister(httpwire.GET, staticRoutePattern)
	s.table.Unregister(httpwire.HEAD, staticRoutePattern)
	// Registration only fails on an empty pattern or a true duplicate,
	// neither of which can happen here since we just unregistered it.
	_ = s.table.Register(httpwire.GET, staticRoutePattern, responder.Handle)
	_ = s.table.Register(httpwire.HEAD, staticRoutePattern, responder.Handle)
}

// MountStatic registers a static file responder rooted at root under the
// given wildcard pattern (which must end in "*"), for GET and HEAD. It is
// the programmatic equivalent of a routes.yaml mount entry.
func (s *Server) MountStatic(pattern, root string) error {
	responder := staticfile.New(root)
	if err := s.table.Register(httpwire.GET, pattern, responder.Handle); err != nil {
		return WrapError("MountStatic", errKindFor(err), err)
	}
	if err := s.table.Register(httpwire.HEAD, pattern, responder.Handle); err != nil {
		s.table.Unregister(httpwire.GET, pattern)
		return WrapError("MountStatic", errKindFor(err), err)
	}
	return nil
}

// Broker returns the async event broker registry, so callers can register
// producer callbacks ahead of emitting a response later (spec.md §4.5).
func (s *Server) Broker() *broker.Registry {
	return s.reg
}

// Metrics returns a point-in-time snapshot of server-wide request metrics.
func (s *Server) Metrics() metrics.Snapshot {
	return s.metrics.Snapshot()
}

// Start binds ipv4:port, starts the worker pool, and runs the reactor's
// event loop until ctx is cancelled or Shutdown is called. It blocks.
func (s *Server) Start(ctx context.Context, ipv4 string, port uint16) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return NewError("Start", ErrKindAlreadyStarted, "server already started")
	}

	addr, err := netutil.ParseAddrInfo(ipv4, port)
	if err != nil {
		s.mu.Unlock()
		return WrapError("Start", ErrKindInvalidAddress, err)
	}

	r, err := reactor.New(addr, s.pool, s.opts.Logger)
	if err != nil {
		s.mu.Unlock()
		return WrapError("Start", ErrKindBind, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	s.reactor = r
	s.cancel = cancel
	s.stopped = stopped
	s.started = true
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pool.Run(runCtx)
	}()

	serveErr := r.Serve(runCtx)
	cancel()
	wg.Wait()
	r.Close()

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	close(stopped)

	if serveErr != nil {
		return WrapError("Start", ErrKindIO, serveErr)
	}
	return nil
}

// Shutdown stops a running Start call. It is safe to call from another
// goroutine while Start is blocked.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	r := s.reactor
	cancel := s.cancel
	stopped := s.stopped
	s.mu.Unlock()

	r.Stop()
	if cancel != nil {
		cancel()
	}

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reactorhttp: Shutdown: %w", ctx.Err())
	}
}

// errKindFor maps a dispatch package sentinel to a public ErrorKind.
func errKindFor(err error) ErrorKind {
	switch err {
	case dispatch.ErrInvalidRoute:
		return ErrKindInvalidRoute
	case dispatch.ErrRouteConflict:
		return ErrKindRouteConflict
	default:
		return ErrKindIO
	}
}
