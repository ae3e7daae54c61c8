// Package broker implements the producer-id keyed registry of
// asynchronous response callbacks described in spec.md §4.5. It is
// grounded on original_source/EventBroker.hpp/.cpp, with the C++
// std::variant<HttpResponse, std::string> message re-expressed as a small
// closed interface (Message) with two concrete implementations.
package broker

import (
	"sync"

	"github.com/ehrlich-b/reactorhttp/internal/httpwire"
)

// Message is either an HTTP response or a raw byte fragment, matching
// EventBroker.hpp's std::variant<util::web::http::HttpResponse, std::string>.
type Message interface {
	isMessage()
}

// ResponseMessage wraps a full HTTP response as a broker message.
type ResponseMessage struct {
	Response httpwire.Response
}

func (ResponseMessage) isMessage() {}

// RawMessage wraps a raw byte fragment written directly to the connection's
// output path, bypassing response framing entirely.
type RawMessage struct {
	Data []byte
}

func (RawMessage) isMessage() {}

// Callback receives (producer-id, message) when a message is emitted for
// that producer. It MUST be non-blocking: its job is to enqueue work on
// the connection's owning worker, not to perform the work itself
// (spec.md §4.5).
type Callback func(producerID uint64, msg Message)

// EmitFunc is the thunk the worker/connection layer builds per request:
// given the producer id and a message, it delivers the bytes back to the
// exact worker owning the connection. A Callback registered with the
// broker typically closes over one of these and forwards its own (id,
// msg) straight through. Carrying id lets the worker remember which
// registry entries are backing a connection, so a write failure can
// unregister them (spec.md §3, §4.5).
type EmitFunc func(producerID uint64, msg Message)

// Registry is the producer-id -> callback map, guarded by a shared/
// exclusive lock: emit takes the read lock, register/unregister take the
// write lock, matching EventBroker's std::shared_mutex usage.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[uint64]Callback
}

// NewRegistry returns an empty broker registry.
func NewRegistry() *Registry {
	return &Registry{callbacks: make(map[uint64]Callback)}
}

// Register replaces any prior entry for id atomically.
func (r *Registry) Register(id uint64, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[id] = cb
}

// Unregister removes id; a missing id is not an error.
func (r *Registry) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, id)
}

// Emit looks up id under a shared lock and invokes its callback with the
// caller's own goroutine. No ordering is guaranteed across distinct
// producer ids; for a single id, ordering is the caller's responsibility.
func (r *Registry) Emit(id uint64, msg Message) {
	r.mu.RLock()
	cb, ok := r.callbacks[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	cb(id, msg)
}

// Has reports whether id currently has a registered callback.
func (r *Registry) Has(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.callbacks[id]
	return ok
}
