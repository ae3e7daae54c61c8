package broker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_EmitInvokesRegisteredCallbackExactlyOnce(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	calls := 0
	r.Register(42, func(id uint64, msg Message) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})

	r.Emit(42, RawMessage{Data: []byte("extra\n")})
	r.Unregister(42)
	r.Emit(42, RawMessage{Data: []byte("extra\n")})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestRegistry_EmitMissingProducerIsNoOp(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() {
		r.Emit(7, RawMessage{Data: []byte("x")})
	})
}

func TestRegistry_RegisterReplacesPriorEntry(t *testing.T) {
	r := NewRegistry()
	var first, second bool
	r.Register(1, func(id uint64, msg Message) { first = true })
	r.Register(1, func(id uint64, msg Message) { second = true })
	r.Emit(1, RawMessage{})
	assert.False(t, first)
	assert.True(t, second)
}

func TestRegistry_UnregisterMissingIsNotError(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Unregister(999) })
}

func TestRegistry_HasReflectsRegistration(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has(5))
	r.Register(5, func(uint64, Message) {})
	assert.True(t, r.Has(5))
	r.Unregister(5)
	assert.False(t, r.Has(5))
}
