// Package apperr defines the error kinds surfaced to callers of the article,
// persona and improv services, and their transport mappings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindNotFound
	KindConflict
	KindUpstreamUnavailable
	KindPersistenceFailure
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindPersistenceFailure:
		return "persistence_failure"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error carries a kind, the failing operation and a message that is safe to
// show to callers. Err holds the underlying cause and is never rendered in
// responses.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotFound)
// works regardless of op and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrPersistenceFailure  = &Error{Kind: KindPersistenceFailure}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
)

func InvalidRequest(op, msg string) error {
	return &Error{Kind: KindInvalidRequest, Op: op, Msg: msg}
}

func NotFound(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg}
}

func Conflict(op, msg string) error {
	return &Error{Kind: KindConflict, Op: op, Msg: msg}
}

func Unauthorized(op, msg string) error {
	return &Error{Kind: KindUnauthorized, Op: op, Msg: msg}
}

func Upstream(op string, err error) error {
	return &Error{Kind: KindUpstreamUnavailable, Op: op, Msg: "text generation service unavailable", Err: err}
}

func Persistence(op string, err error) error {
	return &Error{Kind: KindPersistenceFailure, Op: op, Msg: "storage failure", Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-safe message for err. Causes wrapped inside an
// *Error are not included.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}
