// Package httpwire implements the byte-level HTTP/1.1 grammar the
// connection state machine depends on: request-line + header parsing,
// case-insensitive header lookup, and response encoding. Grammar and
// limits follow spec.md §6; method validation mirrors
// original_source/SocketWorker.cpp's checkInputBufData.
package httpwire

import "strings"

// Method is one of the nine HTTP methods the server recognizes.
type Method string

const (
	GET     Method = "GET"
	HEAD    Method = "HEAD"
	POST    Method = "POST"
	PUT     Method = "PUT"
	DELETE  Method = "DELETE"
	CONNECT Method = "CONNECT"
	OPTIONS Method = "OPTIONS"
	TRACE   Method = "TRACE"
	PATCH   Method = "PATCH"
)

// supportedMethods lists every method the core accepts, in the order
// original_source/SocketWorker.cpp's checkInputBufData checks them.
var supportedMethods = []Method{GET, HEAD, POST, PUT, DELETE, CONNECT, OPTIONS, TRACE, PATCH}

// LooksLikeMethodPrefix reports whether the first bytes of a request begin
// with one of the nine supported method tokens. It is used on the first
// chunk of a connection's input, before a full request line has arrived,
// to reject obviously non-HTTP traffic early the way checkInputBufData does.
func LooksLikeMethodPrefix(prefix string) bool {
	for _, m := range supportedMethods {
		if strings.HasPrefix(prefix, string(m)) {
			return true
		}
	}
	return false
}

// ParseMethod validates a request-line token against the supported set.
func ParseMethod(tok string) (Method, bool) {
	for _, m := range supportedMethods {
		if string(m) == tok {
			return m, true
		}
	}
	return "", false
}
