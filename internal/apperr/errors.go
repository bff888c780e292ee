// Package apperr defines the error kinds every component reports so the HTTP
// facade can map failures to structured responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine-checkable category of a failure.
type Kind string

const (
	SessionUnavailable Kind = "session_unavailable"
	CaptureMiss        Kind = "capture_miss"
	CacheEmpty         Kind = "cache_empty"
	ElementNotFound    Kind = "element_not_found"
	Validation         Kind = "validation"
	Transport          Kind = "transport"
	NotFound           Kind = "not_found"
	Internal           Kind = "internal"
)

// Error carries a kind, the operation that failed and optional details.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// With attaches a detail to the error and returns it.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New builds an error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// DetailsOf returns the details attached to the first *Error in the chain.
func DetailsOf(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// ErrCacheEmpty is returned by every query when no search has been made.
var ErrCacheEmpty = &Error{Kind: CacheEmpty, Message: "no train search has been performed yet; call search first"}

// ElementMissing reports a workflow step whose target never appeared.
func ElementMissing(step, target string, err error) *Error {
	return (&Error{
		Kind:    ElementNotFound,
		Op:      step,
		Message: target + " not found",
		Err:     err,
	}).With("step", step)
}

// Hint returns the operator guidance attached to a kind, if any.
func Hint(kind Kind) string {
	switch kind {
	case CaptureMiss, ElementNotFound, SessionUnavailable:
		return "reset the session with POST /v1/session/reset and retry from the search step"
	case CacheEmpty:
		return "run a train search first"
	}
	return ""
}
