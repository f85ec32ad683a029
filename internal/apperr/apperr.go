// Package apperr defines the typed errors returned by the service layer.
// The HTTP boundary translates them into status codes and JSON bodies.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error class.
type Code string

const (
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeConflict     Code = "CONFLICT"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeExpired      Code = "EXPIRED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// HTTPStatus maps the code onto a response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized, CodeExpired:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a service error with a client-facing message.
// Verify and Refresh are hints telling the client to re-authenticate
// or to reload its visitor session.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Verify  bool
	Refresh bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithVerify returns a copy carrying the verify hint.
func (e *Error) WithVerify() *Error {
	c := *e
	c.Verify = true
	return &c
}

// WithRefresh returns a copy carrying the refresh hint.
func (e *Error) WithRefresh() *Error {
	c := *e
	c.Refresh = true
	return &c
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func InvalidInput(message string) *Error { return New(CodeInvalidInput, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Expired(message string) *Error      { return New(CodeExpired, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(cause error) *Error {
	return Wrap(CodeInternal, "Something went wrong. Please try again.", cause)
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code. Use errors.Is to
// match a specific sentinel.
func HasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
