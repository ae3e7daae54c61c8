package reactorhttp

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured reactorhttp error with enough context to
// tell operationally distinct failures apart without parsing strings.
type Error struct {
	Op    string    // operation that failed (e.g. "Start", "RegisterRoute")
	Kind  ErrorKind // high-level error category
	Errno syscall.Errno // kernel errno, 0 if not applicable
	Msg   string
	Inner error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("reactorhttp: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("reactorhttp: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is supports comparing against an ErrorKind-only sentinel.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Kind == te.Kind
	}
	return false
}

// ErrorKind categorizes an Error.
type ErrorKind string

const (
	ErrKindInvalidAddress ErrorKind = "invalid address"
	ErrKindInvalidRoute   ErrorKind = "invalid route"
	ErrKindRouteConflict  ErrorKind = "route conflict"
	ErrKindBind           ErrorKind = "bind failed"
	ErrKindNotStarted     ErrorKind = "server not started"
	ErrKindAlreadyStarted ErrorKind = "server already started"
	ErrKindIO             ErrorKind = "I/O error"
)

// NewError creates a structured Error.
func NewError(op string, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// WrapError wraps inner with reactorhttp context under the given kind,
// recording the errno in Errno when inner is itself a syscall.Errno.
func WrapError(op string, kind ErrorKind, inner error) *Error {
	if inner == nil {
		return nil
	}
	e := &Error{Op: op, Kind: kind, Msg: inner.Error(), Inner: inner}
	if errno, ok := inner.(syscall.Errno); ok {
		e.Errno = errno
	}
	return e
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
