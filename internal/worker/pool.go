// Package worker implements the fixed-size worker pool from spec.md §4.2:
// each connection is pinned to exactly one worker for its lifetime, and
// all reads/writes/dispatch for that connection run on that worker's
// goroutine, preserving the single-writer-per-connection invariant.
//
// Grounded on original_source/SocketWorker.cpp's SocketDataHandler methods
// (onInputData/onHttpResponse/onError/onCloseClient) and
// SocketThreadMapper (round-robin assignment, shared_mutex-guarded fd map),
// reshaped into Go channels and a sync.Mutex the way
// other_examples/quadgatefoundation-fluxor's tcp_server.go shapes its
// mailbox-per-worker pattern.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ehrlich-b/reactorhttp/internal/broker"
	"github.com/ehrlich-b/reactorhttp/internal/bufpool"
	"github.com/ehrlich-b/reactorhttp/internal/connstate"
	"github.com/ehrlich-b/reactorhttp/internal/dispatch"
	"github.com/ehrlich-b/reactorhttp/internal/httpwire"
	"github.com/ehrlich-b/reactorhttp/internal/logging"
	"github.com/ehrlich-b/reactorhttp/internal/metrics"
	"github.com/ehrlich-b/reactorhttp/internal/netutil"
)

// taskKind identifies what kind of readiness woke a connection.
type taskKind int

const (
	taskReadable taskKind = iota
	taskWritable
	taskClosed
)

type task struct {
	fd   int
	kind taskKind
}

// queueWait bounds how long a worker blocks waiting for its next task
// before re-checking ctx, mirroring SocketThreadMapper's cooperative
// shutdown polling (spec.md §5).
const queueWait = time.Second

// readChunk is the per-read(2) buffer size; onReadable repeats reads of
// this size until the socket would block.
const readChunk = 8192

// worker owns a private connection map; only this goroutine ever touches
// it, so no lock is needed around conns. pending and producers are guarded
// by pendingMu because other goroutines (broker emitters) deliver into
// them concurrently.
type worker struct {
	idx    int
	tasks  chan task
	conns  map[int]*connstate.Connection
	pool   *Pool
	logger *logging.Logger

	pendingMu sync.Mutex
	pending   map[int][]broker.Message
	producers map[int][]uint64

	reqStart map[int]time.Time
}

// Pool is a fixed set of workers plus the route table and broker they
// share; the table and registry guard their own state, so Pool itself
// only needs to protect the fd -> worker assignment map.
type Pool struct {
	workers  []*worker
	table    *dispatch.Table
	reg      *broker.Registry
	logger   *logging.Logger
	observer metrics.Observer

	mu       sync.Mutex
	nextFd   int // round-robin cursor
	fdWorker map[int]int
}

// New returns a Pool of n workers backed by table for dispatch and reg for
// async responses. n must be >= 1.
func New(n int, table *dispatch.Table, reg *broker.Registry, logger *logging.Logger) *Pool {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Pool{table: table, reg: reg, logger: logger, observer: metrics.NoOpObserver{}, fdWorker: make(map[int]int)}
	for i := 0; i < n; i++ {
		w := &worker{
			idx:       i,
			tasks:     make(chan task, 256),
			conns:     make(map[int]*connstate.Connection),
			pool:      p,
			logger:    logger,
			pending:   make(map[int][]broker.Message),
			producers: make(map[int][]uint64),
			reqStart:  make(map[int]time.Time),
		}
		p.workers = append(p.workers, w)
	}
	return p
}

// Run starts every worker's loop and blocks until ctx is cancelled and all
// workers have drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.loop(ctx)
		}(w)
	}
	wg.Wait()
}

// Adopt assigns fd to a worker round-robin, mirroring
// SocketThreadMapper::findThreadIdx's rotate-and-assign policy. The
// connection itself is created lazily on the first real event.
func (p *Pool) Adopt(fd int) (workerIdx int) {
	p.mu.Lock()
	idx := p.nextFd % len(p.workers)
	p.nextFd++
	p.fdWorker[fd] = idx
	p.mu.Unlock()
	return idx
}

// SetObserver installs the metrics observer every worker reports request
// and response events to. Call before Run.
func (p *Pool) SetObserver(o metrics.Observer) {
	if o == nil {
		o = metrics.NoOpObserver{}
	}
	p.observer = o
}

// Forget removes fd's worker assignment, called once a connection closes.
func (p *Pool) Forget(fd int) {
	p.mu.Lock()
	delete(p.fdWorker, fd)
	p.mu.Unlock()
}

// WorkerFor reports which worker owns fd, and whether fd is known.
func (p *Pool) WorkerFor(fd int) (int, bool) {
	p.mu.Lock()
	idx, ok := p.fdWorker[fd]
	p.mu.Unlock()
	return idx, ok
}

// Notify routes a readiness event for fd to its owning worker. An event
// for an fd Adopt never assigned (or one already forgotten — a late
// event racing a prior close) is closed and its assignment dropped,
// rather than silently ignored, per spec.md §4.1.
func (p *Pool) Notify(fd int, readable, writable, closed bool) {
	idx, ok := p.WorkerFor(fd)
	if !ok {
		netutil.Close(fd)
		p.Forget(fd)
		return
	}
	w := p.workers[idx]
	switch {
	case closed:
		w.tasks <- task{fd: fd, kind: taskClosed}
	case readable:
		w.tasks <- task{fd: fd, kind: taskReadable}
	case writable:
		w.tasks <- task{fd: fd, kind: taskWritable}
	}
}

// NewEmitter builds the broker.EmitFunc a route handler captures to answer
// asynchronously. It captures the pool, worker index, and fd — never a raw
// *worker pointer — so a worker that has since recycled its slot cannot be
// reached through a stale callback (spec.md §9 callback-lifetime note).
func (p *Pool) NewEmitter(workerIdx, fd int) broker.EmitFunc {
	return func(producerID uint64, msg broker.Message) {
		p.deliver(workerIdx, fd, producerID, msg)
	}
}

// deliver hands msg to the owning worker's pending queue and wakes it,
// rather than writing fd directly from whatever goroutine emitted it —
// preserving the single-writer-per-connection invariant even for
// asynchronous responses (spec.md §4.5, invariant 2). producerID is
// remembered against fd so a later write failure knows which broker
// registry entries to unregister.
func (p *Pool) deliver(workerIdx, fd int, producerID uint64, msg broker.Message) {
	if workerIdx < 0 || workerIdx >= len(p.workers) {
		return
	}
	w := p.workers[workerIdx]
	w.pendingMu.Lock()
	w.pending[fd] = append(w.pending[fd], msg)
	w.producers[fd] = append(w.producers[fd], producerID)
	w.pendingMu.Unlock()
	select {
	case w.tasks <- task{fd: fd, kind: taskWritable}:
	default:
	}
}

func (w *worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.tasks:
			w.handle(t)
		case <-time.After(queueWait):
		}
	}
}

func (w *worker) handle(t task) {
	if t.kind == taskClosed {
		w.closeLocal(t.fd)
		return
	}

	conn, ok := w.conns[t.fd]
	if !ok {
		conn = connstate.New(t.fd)
		w.conns[t.fd] = conn
	}

	switch t.kind {
	case taskReadable:
		w.onReadable(conn)
	case taskWritable:
		w.drainPending(conn, t.fd)
		w.onWritable(conn)
	}
}

// onReadable drains available bytes, feeds the connection state machine,
// and dispatches a completed request through the route table — mirroring
// SocketDataHandler::onInputData.
func (w *worker) onReadable(conn *connstate.Connection) {
	buf := bufpool.Get(readChunk)
	defer bufpool.Put(buf)
	for {
		n, wouldBlock, err := netutil.Read(conn.Fd, buf)
		if err != nil {
			w.closeLocal(conn.Fd)
			return
		}
		if n == 0 && !wouldBlock {
			w.closeLocal(conn.Fd)
			return
		}
		if n > 0 {
			if conn.ResponseInFlight() {
				// A client sending more request bytes while a response is
				// still in flight violates the one-in-flight invariant;
				// close rather than silently queue it (spec.md invariant 2).
				w.closeLocal(conn.Fd)
				return
			}
			req, ready, ferr := conn.Feed(buf[:n])
			if ferr != nil {
				w.closeLocal(conn.Fd)
				return
			}
			if ready {
				w.dispatch(conn, req)
			}
		}
		if wouldBlock {
			return
		}
	}
}

// dispatch resolves req through the shared route table and arms the
// returned response for writing; that response is always written.
// Handlers that answer later return whatever placeholder response they
// choose and then call the emit closure built from NewEmitter once their
// async work completes; emitted messages are written after it.
func (w *worker) dispatch(conn *connstate.Connection, req *httpwire.Request) {
	bytesIn := uint64(len(req.Body))
	w.pool.observer.ObserveRequest(bytesIn)
	w.reqStart[conn.Fd] = time.Now()
	w.logger.Info("dispatch", "method", string(req.Method), "url", req.URL, "fd", conn.Fd)

	emit := w.pool.NewEmitter(w.idx, conn.Fd)
	resp := w.pool.table.Dispatch(req.URL, req, emit)
	conn.SetResponse(resp.Encode())
	w.onWritable(conn)
}

// onWritable resumes writing any armed response, draining straight into
// the next queued one (if any) as each finishes, and stopping once the
// socket would block or every queued response has been written.
func (w *worker) onWritable(conn *connstate.Connection) {
	for {
		pending := conn.PendingResponse()
		if len(pending) == 0 {
			return
		}
		n, wouldBlock, err := netutil.Write(conn.Fd, pending)
		if err != nil {
			w.observeResponseDone(conn.Fd, 0, false)
			w.failProducers(conn.Fd)
			w.closeLocal(conn.Fd)
			return
		}
		if wouldBlock {
			return
		}
		conn.AdvanceResponse(n)
		if !conn.ResponseDone() {
			return
		}
		w.observeResponseDone(conn.Fd, uint64(conn.ResponseLen()), true)
		conn.ClearResponse()
		conn.FinishRequest()
	}
}

// failProducers unregisters every broker entry recorded against fd,
// mirroring spec.md §3/§4.5: "If that write path reports failure, the
// broker entry is unregistered automatically."
func (w *worker) failProducers(fd int) {
	w.pendingMu.Lock()
	ids := w.producers[fd]
	delete(w.producers, fd)
	w.pendingMu.Unlock()
	for _, id := range ids {
		w.pool.reg.Unregister(id)
	}
}

// observeResponseDone reports the completed response to the metrics
// observer, computing latency from the moment the request was dispatched.
func (w *worker) observeResponseDone(fd int, bytesOut uint64, success bool) {
	start, ok := w.reqStart[fd]
	if !ok {
		w.pool.observer.ObserveResponse(bytesOut, 0, success)
		return
	}
	delete(w.reqStart, fd)
	w.pool.observer.ObserveResponse(bytesOut, uint64(time.Since(start).Nanoseconds()), success)
}

// drainPending turns any broker messages queued for this connection into
// armed responses, encoding raw messages as-is and response messages
// through the normal httpwire encoder. Each message is queued behind
// whatever is already in flight rather than overwriting it, so two emits
// arriving before a write turn runs never clobber one another (spec.md
// §4.5: emits for one producer are serialized only by the caller, not by
// this queue).
func (w *worker) drainPending(conn *connstate.Connection, fd int) {
	w.pendingMu.Lock()
	msgs := w.pending[fd]
	delete(w.pending, fd)
	w.pendingMu.Unlock()

	for _, m := range msgs {
		switch v := m.(type) {
		case broker.ResponseMessage:
			conn.QueueResponse(v.Response.Encode())
		case broker.RawMessage:
			conn.QueueResponse(v.Data)
		}
	}
}

func (w *worker) closeLocal(fd int) {
	netutil.Close(fd)
	delete(w.conns, fd)
	w.pendingMu.Lock()
	delete(w.pending, fd)
	delete(w.producers, fd)
	w.pendingMu.Unlock()
	w.pool.Forget(fd)
}
