// Package apperr defines the client-facing error kinds returned by the service.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidIdentifier
	KindConflict
	KindUnauthorized
	KindInvalidState
	KindGeocodeFailure
	KindRoutingFailure
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidIdentifier:
		return "invalid_identifier"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidState:
		return "invalid_state"
	case KindGeocodeFailure:
		return "geocode_failure"
	case KindRoutingFailure:
		return "routing_failure"
	case KindValidation:
		return "validation_failure"
	default:
		return "internal"
	}
}

// Error carries a kind and a short message safe to show to clients.
// The wrapped cause is for logs only.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can test against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrInvalidIdentifier = &Error{Kind: KindInvalidIdentifier, Msg: "invalid identifier"}
	ErrConflict          = &Error{Kind: KindConflict, Msg: "conflict"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Msg: "unauthorized"}
	ErrInvalidState      = &Error{Kind: KindInvalidState, Msg: "invalid state"}
	ErrGeocodeFailure    = &Error{Kind: KindGeocodeFailure, Msg: "could not geocode postcode"}
	ErrRoutingFailure    = &Error{Kind: KindRoutingFailure, Msg: "routing failed"}
	ErrValidation        = &Error{Kind: KindValidation, Msg: "validation failed"}
)

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the client-facing message, never the wrapped cause.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidIdentifier, KindConflict, KindInvalidState,
		KindGeocodeFailure, KindRoutingFailure, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
