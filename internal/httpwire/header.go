package httpwire

import "strings"

// Header is an ordered, case-insensitive HTTP header collection. Lookup is
// case-insensitive uniformly (spec.md §9 calls out the original source's
// inconsistent-case Content-Length lookup as a bug to fix; this type makes
// the mistake impossible to repeat).
type Header struct {
	keys   []string
	values []string
}

// NewHeader returns an empty header collection.
func NewHeader() Header {
	return Header{}
}

// Add appends a header, preserving insertion order and any existing values
// for the same (case-insensitive) name.
func (h *Header) Add(name, value string) {
	h.keys = append(h.keys, name)
	h.values = append(h.values, value)
}

// Set replaces all existing values for name with a single value.
func (h *Header) Set(name, value string) {
	lname := strings.ToLower(name)
	out := h.keys[:0]
	outv := h.values[:0]
	for i, k := range h.keys {
		if strings.ToLower(k) != lname {
			out = append(out, k)
			outv = append(outv, h.values[i])
		}
	}
	h.keys = out
	h.values = outv
	h.Add(name, value)
}

// Get returns the first value for name, case-insensitively, or "" if absent.
func (h Header) Get(name string) string {
	lname := strings.ToLower(name)
	for i, k := range h.keys {
		if strings.ToLower(k) == lname {
			return h.values[i]
		}
	}
	return ""
}

// Has reports whether name is present, case-insensitively.
func (h Header) Has(name string) bool {
	lname := strings.ToLower(name)
	for _, k := range h.keys {
		if strings.ToLower(k) == lname {
			return true
		}
	}
	return false
}

// Len returns the number of header entries.
func (h Header) Len() int { return len(h.keys) }

// Each calls fn for every (name, value) pair in insertion order.
func (h Header) Each(fn func(name, value string)) {
	for i, k := range h.keys {
		fn(k, h.values[i])
	}
}
