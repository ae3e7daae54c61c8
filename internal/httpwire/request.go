package httpwire

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformedRequest is returned when the request line or headers cannot
// be parsed.
var ErrMalformedRequest = errors.New("httpwire: malformed request")

// ErrUnsupportedMethod is returned when the request line's method token is
// not one of the nine supported methods.
var ErrUnsupportedMethod = errors.New("httpwire: unsupported method")

// ErrTransferEncodingUnsupported is returned when a request carries a
// Transfer-Encoding header. Chunked transfer encoding is a spec.md
// Non-goal; its mere presence is treated as unparseable per spec.md §6.
var ErrTransferEncodingUnsupported = errors.New("httpwire: transfer-encoding unsupported")

// Request is a fully parsed HTTP/1.1 request: request line, headers, and
// (once the connection state machine has extracted it) body.
type Request struct {
	Method  Method
	URL     string
	Proto   string
	Headers Header
	Body    []byte
}

// ContentLength returns the parsed Content-Length header value, or
// (0, false) if the header is absent. Lookup is case-insensitive via
// Header.Get, closing the bug spec.md §9 calls out in the original source.
func (r *Request) ContentLength() (int, bool) {
	v := r.Headers.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// RequestParser incrementally accumulates a half-built request. Parsed
// reports whether the request line and headers are complete; it is false
// until Parse succeeds. Mirrors original_source/SocketWorker.hpp's
// HttpParser<HttpRequest>::parsed() predicate.
type RequestParser struct {
	parsed bool
	req    Request
}

// NewRequestParser returns a fresh parser ready for a new request.
func NewRequestParser() *RequestParser {
	return &RequestParser{req: Request{Headers: NewHeader()}}
}

// Parsed reports whether Parse has already succeeded for this instance.
func (p *RequestParser) Parsed() bool { return p.parsed }

// Request returns the parsed request. Only valid once Parsed() is true.
func (p *RequestParser) Request() *Request { return &p.req }

// Reset clears the parser for the next request on the same connection,
// mirroring SocketDataHandler::onInputData's
// `connection.request = HttpParser<HttpRequest>()` after dispatch.
func (p *RequestParser) Reset() {
	p.parsed = false
	p.req = Request{Headers: NewHeader()}
}

// Parse parses the request line and headers out of headerBytes, which
// must span from the start of the message through and including the
// terminating "\r\n\r\n". It does not touch the body.
func (p *RequestParser) Parse(headerBytes []byte) error {
	s := string(headerBytes)
	// Trim the trailing blank-line terminator before splitting on lines.
	s = strings.TrimRight(s, "\r\n")
	lines := strings.Split(s, "\r\n")
	if len(lines) == 0 {
		return ErrMalformedRequest
	}

	reqLine := strings.Fields(lines[0])
	if len(reqLine) != 3 {
		return ErrMalformedRequest
	}
	method, ok := ParseMethod(reqLine[0])
	if !ok {
		return ErrUnsupportedMethod
	}

	headers := NewHeader()
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			return ErrMalformedRequest
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if name == "" {
			return ErrMalformedRequest
		}
		headers.Add(name, value)
	}

	if headers.Has("Transfer-Encoding") {
		return ErrTransferEncodingUnsupported
	}

	p.req = Request{
		Method:  method,
		URL:     reqLine[1],
		Proto:   reqLine[2],
		Headers: headers,
	}
	p.parsed = true
	return nil
}
