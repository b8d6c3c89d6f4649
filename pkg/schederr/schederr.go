// Package schederr defines the scheduling engine's error taxonomy.
// Services return kinded errors; HTTP handlers map kinds to status
// codes with HTTPStatus. Kinds compare with errors.Is against the
// package sentinels, so wrapping with fmt.Errorf("...: %w", err)
// preserves classification.
package schederr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and the HTTP layer.
type Kind int

const (
	// KindConfiguration: required setup is missing, e.g. a doctor
	// with no availability templates.
	KindConfiguration Kind = iota + 1
	// KindConflict: a concurrent actor won a state transition race.
	KindConflict
	// KindNotFound: the referenced entity does not exist.
	KindNotFound
	// KindState: the entity exists but is in the wrong state for
	// the operation.
	KindState
	// KindValidation: the input is malformed or violates an
	// invariant.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks. Every kinded error matches exactly
// one of these.
var (
	ErrConfiguration = &Error{kind: KindConfiguration, msg: "configuration error"}
	ErrConflict      = &Error{kind: KindConflict, msg: "conflict"}
	ErrNotFound      = &Error{kind: KindNotFound, msg: "not found"}
	ErrState         = &Error{kind: KindState, msg: "invalid state"}
	ErrValidation    = &Error{kind: KindValidation, msg: "validation error"}
)

// Error is a kinded error with an optional wrapped cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Is matches any error of the same kind, so
// errors.Is(err, schederr.ErrConflict) works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind == e.kind
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

func newf(k Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{kind: k, msg: err.Error(), err: errors.Unwrap(err)}
}

// Configurationf builds a KindConfiguration error.
func Configurationf(format string, args ...any) *Error {
	return newf(KindConfiguration, format, args...)
}

// Conflictf builds a KindConflict error.
func Conflictf(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// NotFoundf builds a KindNotFound error.
func NotFoundf(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// Statef builds a KindState error.
func Statef(format string, args ...any) *Error {
	return newf(KindState, format, args...)
}

// Validationf builds a KindValidation error.
func Validationf(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// KindOf extracts the kind from err, or 0 when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return 0
}

// HTTPStatus maps an error to the status code the API returns for it.
// Unclassified errors are internal server errors.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConfiguration, KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
