// Package apierror defines the error taxonomy that the server propagates
// over HTTP as {success:false, code, message}.
package apierror

import "fmt"

// Code identifies one of the fixed error categories the server can report.
type Code string

const (
	// InvalidRequest indicates a malformed path, ".." in a public path, or
	// a missing required field.
	InvalidRequest Code = "invalid-request"
	// NotFound indicates an unknown library, a path not under any
	// library, or an absent entry.
	NotFound Code = "not-found"
	// IO indicates an unrecoverable filesystem error encountered during
	// reconcile. It is logged but never fatal to the server.
	IO Code = "io"
	// BackendUnavailable indicates that an optional platform backend can't
	// be used, such as reveal-in-file-manager on a platform without one.
	// It is surfaced with a 503 status. (ExternalSearch failures don't use
	// this code: Library logs them and continues with FileIndex results.)
	BackendUnavailable Code = "backend-unavailable"
	// Internal indicates an iterator terminated unexpectedly or some
	// other bug. Surfaced with a 500 status.
	Internal Code = "internal"
)

// Error is the concrete error type carrying one of the Code categories. It
// satisfies the standard error interface.
type Error struct {
	Code    Code
	Message string
	// Cause is the underlying error, if any. It is not included in
	// Error() to keep client-facing messages stable, but is available via
	// Unwrap for logging.
	Cause error
}

// New constructs an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error that carries an underlying cause for logging.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Unwrap allows errors.As/errors.Is to reach the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code that corresponds to this error's
// category.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case InvalidRequest:
		return 400
	case NotFound:
		return 404
	case IO:
		return 500
	case BackendUnavailable:
		return 503
	case Internal:
		return 500
	default:
		return 500
	}
}
