// Package domain provides the core record types and canonical error
// taxonomy for the trace service.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a service error.
type ErrorKind string

const (
	// KindUnauthorized indicates a missing, invalid, or inactive
	// credential or session.
	KindUnauthorized ErrorKind = "unauthorized"

	// KindNotFound indicates an entity that is absent or not owned by
	// the caller. The two causes are deliberately indistinguishable.
	KindNotFound ErrorKind = "not_found"

	// KindInvalidInput indicates a missing or malformed required field.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindConflict indicates an unrecoverable identity uniqueness clash.
	KindConflict ErrorKind = "conflict"

	// KindInternal indicates a storage or downstream failure.
	KindInternal ErrorKind = "internal"
)

// Error is a canonical service error carrying a kind and message.
// Every core operation fails fast with one of these.
type Error struct {
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatusCode returns the HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new service error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// ErrUnauthorized creates an unauthorized error.
func ErrUnauthorized(message string) *Error {
	return NewError(KindUnauthorized, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *Error {
	return NewError(KindNotFound, message)
}

// ErrInvalidInput creates an invalid input error.
func ErrInvalidInput(message string) *Error {
	return NewError(KindInvalidInput, message)
}

// ErrConflict creates a conflict error.
func ErrConflict(message string) *Error {
	return NewError(KindConflict, message)
}

// ErrInternal creates an internal error.
func ErrInternal(message string) *Error {
	return NewError(KindInternal, message)
}

// KindOf extracts the error kind, defaulting to KindInternal for
// errors that did not originate in the core.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
