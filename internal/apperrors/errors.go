// Package apperrors defines the coded error taxonomy shared across the
// service: local validation failures, remote version conflicts, session
// expiry, not-found, and unclassified internal errors.
package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for the caller.
type Code string

const (
	// ErrCodeValidation: local, recoverable input problem. Blocks
	// submission and is surfaced inline, never sent over the wire.
	ErrCodeValidation Code = "validation"
	// ErrCodeConflict: optimistic version mismatch. Recoverable via a
	// refresh-and-retry path, never by silent overwrite.
	ErrCodeConflict Code = "conflict"
	// ErrCodeUnauthorized: authentication or session expiry. Surfaced as
	// a distinct signal so the caller can prompt re-authentication
	// without losing in-progress state.
	ErrCodeUnauthorized Code = "unauthorized"
	ErrCodeNotFound     Code = "not_found"
	// ErrCodeInternal: unclassified error, surfaced verbatim and never
	// retried automatically.
	ErrCodeInternal Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %s not found", resource, id)}
}

// InvalidInput reports a local validation failure on a named field.
func InvalidInput(field, message string) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf("%s: %s", field, message)}
}

// Conflict reports an optimistic concurrency violation.
func Conflict(message string) *Error {
	return &Error{Code: ErrCodeConflict, Message: message}
}

// CodeOf extracts the code from an error chain, defaulting to internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
