// Package connstate implements the per-connection HTTP state machine from
// spec.md §4.3: incremental header/body accumulation, the at-most-one-
// response-in-flight invariant, and partial-write resumption bookkeeping.
// It is pure byte-buffer logic with no socket syscalls of its own, so it
// can be driven directly by tests one byte at a time (spec.md §8,
// invariant 3) as well as by the worker's real non-blocking reads.
//
// Grounded on original_source/SocketWorker.hpp's Connection struct and
// SocketWorker.cpp's onInputData/onHttpResponse, with the §9 open-question
// fix applied: an absent "\r\n\r\n" after a read returns control to wait
// for more bytes instead of closing the connection.
package connstate

import (
	"bytes"
	"errors"

	"github.com/ehrlich-b/reactorhttp/internal/httpwire"
)

// MaxIbuf is the per-connection input buffer cap; exceeding it is a
// protocol violation (spec.md §3, §6).
const MaxIbuf = 100 * 1024

// minRequestPrefix is the shortest plausible request prefix: "GET " + a
// terminator start is still ambiguous, so the original source's exact
// threshold of 7 bytes (len("OPTIONS") == len("CONNECT")) is kept.
const minRequestPrefix = 7

// ErrProtocolViolation marks an unparseable, oversized, or otherwise
// misbehaving request stream. Per spec.md §7 the connection is closed
// silently — no error response is ever written for it.
var ErrProtocolViolation = errors.New("connstate: protocol violation")

// OutputBuffer wraps an encoded response with a write cursor, matching
// original_source's OutputSocketBuffer: empty() <=> no response in flight,
// finished() <=> every byte has been written.
type OutputBuffer struct {
	data   []byte
	cursor int
}

// Empty reports whether there is no response currently in flight.
func (o *OutputBuffer) Empty() bool { return o == nil || len(o.data) == 0 }

// Finished reports whether every byte of the response has been written.
func (o *OutputBuffer) Finished() bool { return o == nil || o.cursor >= len(o.data) }

// Remaining returns the not-yet-written tail of the response.
func (o *OutputBuffer) Remaining() []byte {
	if o == nil || o.cursor >= len(o.data) {
		return nil
	}
	return o.data[o.cursor:]
}

// Advance records that n more bytes were written.
func (o *OutputBuffer) Advance(n int) { o.cursor += n }

// Clear discards the buffer, returning the connection to Idle.
func (o *OutputBuffer) Clear() { o.data = nil; o.cursor = 0 }

// Connection is the per-fd state owned by exactly one worker for its
// lifetime (spec.md §3). Zero value is not usable; use New.
type Connection struct {
	Fd int

	ibuf           []byte
	lastReadOffset int
	parser         *httpwire.RequestParser
	bodyStartPos   int

	obuf  OutputBuffer
	queue [][]byte
}

// New returns a fresh Connection for fd.
func New(fd int) *Connection {
	return &Connection{Fd: fd, parser: httpwire.NewRequestParser()}
}

// ResponseInFlight reports whether a response is currently being written;
// receiving new request bytes while true is the protocol violation
// spec.md §3's invariant describes.
func (c *Connection) ResponseInFlight() bool { return !c.obuf.Empty() }

// Feed accumulates newly read bytes and attempts to advance the request
// parse. It returns (request, true, nil) once a full request (headers +
// any Content-Length body) has been accumulated; (nil, false, nil) if more
// bytes are needed; or (nil, false, err) on a protocol violation, in which
// case the caller must close the connection.
func (c *Connection) Feed(data []byte) (*httpwire.Request, bool, error) {
	offset := len(c.ibuf)
	c.ibuf = append(c.ibuf, data...)
	if len(c.ibuf) > MaxIbuf {
		return nil, false, ErrProtocolViolation
	}

	if !c.parser.Parsed() {
		if len(c.ibuf) < minRequestPrefix {
			return nil, false, nil
		}
		if offset == 0 {
			prefixLen := minRequestPrefix
			if !httpwire.LooksLikeMethodPrefix(string(c.ibuf[:prefixLen])) {
				return nil, false, ErrProtocolViolation
			}
		}

		searchFrom := c.lastReadOffset
		if searchFrom > len(c.ibuf) {
			searchFrom = 0
		}
		idx := bytes.Index(c.ibuf[searchFrom:], []byte("\r\n\r\n"))
		if idx < 0 {
			// Remember how far we've scanned so the next Feed call's search
			// is incremental, but back off 3 bytes in case the terminator
			// straddles this read's boundary.
			if len(c.ibuf) >= 3 {
				c.lastReadOffset = len(c.ibuf) - 3
			}
			return nil, false, nil
		}
		c.bodyStartPos = searchFrom + idx + 4
		if err := c.parser.Parse(c.ibuf[:c.bodyStartPos]); err != nil {
			return nil, false, ErrProtocolViolation
		}
	}

	req := c.parser.Request()
	if n, ok := req.ContentLength(); ok {
		if len(c.ibuf)-c.bodyStartPos < n {
			return nil, false, nil
		}
		req.Body = append([]byte(nil), c.ibuf[c.bodyStartPos:c.bodyStartPos+n]...)
		c.trimIbuf(c.bodyStartPos + n)
	} else {
		req.Body = nil
		c.trimIbuf(c.bodyStartPos)
	}

	return req, true, nil
}

// trimIbuf drops the first n processed bytes, keeping any bytes already
// read for a pipelined-looking next request (the dispatcher still only
// processes one request at a time). Leftover bytes stay at the front of
// ibuf and are searched from the start on the next Feed; since ibuf is
// then non-empty, that Feed skips the first-chunk method check and the
// method is validated only by the request-line parse.
func (c *Connection) trimIbuf(n int) {
	rest := append([]byte(nil), c.ibuf[n:]...)
	c.ibuf = rest
	c.lastReadOffset = 0
	c.bodyStartPos = 0
}

// FinishRequest resets the parser for the next request on this connection,
// mirroring SocketDataHandler::onInputData's parser reset after dispatch.
func (c *Connection) FinishRequest() {
	c.parser.Reset()
}

// SetResponse loads encoded response bytes into the output buffer,
// arming the write path. Callers must ensure no response is already in
// flight (the synchronous dispatch path does, via ResponseInFlight);
// async emits should use QueueResponse instead.
func (c *Connection) SetResponse(encoded []byte) {
	c.obuf = OutputBuffer{data: encoded}
}

// QueueResponse arms encoded bytes for writing if no response is
// currently in flight, or appends it behind the one already in flight
// otherwise. This keeps a second emit for the same connection from
// clobbering bytes an earlier emit (or the original synchronous
// response) hasn't finished writing yet — spec.md §4.5 allows a
// producer to emit more than once, serialized only by the caller, so the
// connection itself must queue rather than overwrite.
func (c *Connection) QueueResponse(encoded []byte) {
	if c.obuf.Empty() {
		c.SetResponse(encoded)
		return
	}
	c.queue = append(c.queue, encoded)
}

// PendingResponse returns the not-yet-written tail of the current response.
func (c *Connection) PendingResponse() []byte { return c.obuf.Remaining() }

// AdvanceResponse records that n bytes of the response were written.
func (c *Connection) AdvanceResponse(n int) { c.obuf.Advance(n) }

// ResponseDone reports whether the full response has been written.
func (c *Connection) ResponseDone() bool { return c.obuf.Finished() }

// ResponseLen reports the total size of the current (or just-finished)
// response, for metrics reporting.
func (c *Connection) ResponseLen() int { return len(c.obuf.data) }

// ClearResponse discards the finished output buffer and arms the next
// queued response, if any; the connection only returns to true Idle once
// the queue is also empty.
func (c *Connection) ClearResponse() {
	c.obuf.Clear()
	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.obuf = OutputBuffer{data: next}
	}
}

// IbufLen reports the current accumulated input buffer size, for metrics
// and tests.
func (c *Connection) IbufLen() int { return len(c.ibuf) }
