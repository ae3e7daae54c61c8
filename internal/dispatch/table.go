// Package dispatch implements the HTTP route table described in spec.md
// §4.4: a mapping from method to an ordered (pattern, handler) list,
// first-match-wins, with literal and trailing-* wildcard patterns.
// Grounded on original_source/HttpServer.cpp's registerRoute/_callRoute.
package dispatch

import (
	"errors"
	"strings"

	"github.com/ehrlich-b/reactorhttp/internal/broker"
	"github.com/ehrlich-b/reactorhttp/internal/httpwire"
)

// ErrInvalidRoute is returned when registering an empty pattern.
var ErrInvalidRoute = errors.New("dispatch: route pattern must not be empty")

// ErrRouteConflict is returned when registering a duplicate (method,
// pattern) pair — a programmer error per spec.md §3.
var ErrRouteConflict = errors.New("dispatch: route already registered")

// Handler serves a request. emit is non-nil and, if the handler wants to
// answer later from another goroutine, is the thunk it should capture
// inside a broker.Callback registered against a producer id; emit itself
// delivers a broker.Message back through the connection's owning worker.
// A handler that answers synchronously simply ignores emit and returns its
// response.
type Handler func(req *httpwire.Request, emit broker.EmitFunc) httpwire.Response

type route struct {
	pattern string
	prefix  string // pattern with trailing '*' stripped; empty unless wildcard
	wild    bool
	handler Handler
}

// Table is a method-keyed, insertion-ordered route table.
type Table struct {
	routes map[httpwire.Method][]route
}

// NewTable returns an empty route table.
func NewTable() *Table {
	return &Table{routes: make(map[httpwire.Method][]route)}
}

// Register adds a (method, pattern) -> handler entry. An empty pattern is
// rejected with ErrInvalidRoute; a duplicate (method, pattern) pair is
// rejected with ErrRouteConflict (first-inserted wins — spec.md §9 open
// question (b), resolved here by rejecting the duplicate outright rather
// than silently shadowing it).
func (t *Table) Register(method httpwire.Method, pattern string, h Handler) error {
	if pattern == "" {
		return ErrInvalidRoute
	}
	for _, r := range t.routes[method] {
		if r.pattern == pattern {
			return ErrRouteConflict
		}
	}
	r := route{pattern: pattern, handler: h}
	if strings.HasSuffix(pattern, "*") {
		r.wild = true
		r.prefix = strings.TrimSuffix(pattern, "*")
	}
	t.routes[method] = append(t.routes[method], r)
	return nil
}

// Unregister removes the (method, pattern) entry, if present.
func (t *Table) Unregister(method httpwire.Method, pattern string) {
	list := t.routes[method]
	for i, r := range list {
		if r.pattern == pattern {
			t.routes[method] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Dispatch resolves url against the table for req.Method and invokes the
// first matching handler; an unmatched url yields the synthetic 404. A
// handler panic is recovered at this boundary and translated into a
// synthesized 500 (spec.md §7, HandlerError) so a bad handler can never
// take down the worker goroutine driving it.
func (t *Table) Dispatch(url string, req *httpwire.Request, emit broker.EmitFunc) httpwire.Response {
	for _, r := range t.routes[req.Method] {
		if r.wild {
			if strings.HasPrefix(url, r.prefix) {
				return invoke(r.handler, req, emit)
			}
			continue
		}
		if url == r.pattern {
			return invoke(r.handler, req, emit)
		}
	}
	return httpwire.NotFound()
}

// invoke calls h, recovering any panic into a synthesized 500 rather than
// letting it unwind into Dispatch's caller.
func invoke(h Handler, req *httpwire.Request, emit broker.EmitFunc) (resp httpwire.Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = httpwire.NewResponse(500, nil)
		}
	}()
	return h(req, emit)
}
