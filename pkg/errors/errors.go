package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Code is the
// user-facing error category emitted in response bodies; Retryable marks
// backing-service failures a caller may safely retry.
type Error struct {
	Code      string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"-"`
	Retryable bool   `json:"-"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the platform error taxonomy.
var (
	ErrBadRequest      = New("Bad Request", http.StatusBadRequest, "invalid request")
	ErrUnauthorized    = New("Unauthorized", http.StatusUnauthorized, "unauthorized")
	ErrForbidden       = New("Forbidden", http.StatusForbidden, "forbidden")
	ErrNotFound        = New("Not Found", http.StatusNotFound, "resource not found")
	ErrConflict        = New("Conflict", http.StatusConflict, "conflict")
	ErrPayloadTooLarge = New("Payload Too Large", http.StatusRequestEntityTooLarge, "payload too large")
	ErrDatabase        = &Error{Code: "Database Error", Status: http.StatusInternalServerError, Message: "database operation failed", Retryable: true}
	ErrStorage         = &Error{Code: "Storage Error", Status: http.StatusInternalServerError, Message: "storage operation failed", Retryable: true}
	ErrInternal        = New("Internal Server Error", http.StatusInternalServerError, "internal server error")
)

// Internal signalling errors, never sent to clients.
var (
	// ErrCacheMiss indicates a cache lookup found nothing.
	ErrCacheMiss = errors.New("cache miss")
	// ErrPreconditionFailed indicates a conditional update matched no rows.
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Database wraps a backing-store failure as a retryable 5xx error.
func Database(err error, message string) *Error {
	return &Error{Code: ErrDatabase.Code, Status: ErrDatabase.Status, Message: message, Retryable: true, Err: err}
}

// Storage wraps an object-store failure as a retryable 5xx error.
func Storage(err error, message string) *Error {
	return &Error{Code: ErrStorage.Code, Status: ErrStorage.Status, Message: message, Retryable: true, Err: err}
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// IsRetryable reports whether the error represents a transient backing-service
// failure.
func IsRetryable(err error) bool {
	e := FromError(err)
	return e != nil && e.Retryable
}
