package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the failure taxonomy shared by the HTTP API and the callable operations.
type Code string

const (
	Unauthenticated    Code = "unauthenticated"
	PermissionDenied   Code = "permission-denied"
	InvalidArgument    Code = "invalid-argument"
	AlreadyExists      Code = "already-exists"
	NotFound           Code = "not-found"
	FailedPrecondition Code = "failed-precondition"
	Unavailable        Code = "unavailable"
	Internal           Code = "internal"
)

// Error is a coded failure with a user-facing message.
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

// New builds an Error without a cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap builds an Error around a cause.
func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the code of err, defaulting to Internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var fe FieldError
	if errors.As(err, &fe) {
		return InvalidArgument
	}
	return Internal
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An internal error occurred."
}

// HTTPStatus maps a code to its response status.
func HTTPStatus(code Code) int {
	switch code {
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case InvalidArgument:
		return http.StatusBadRequest
	case AlreadyExists:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case Unavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// FromStatus is the inverse of HTTPStatus, used by API clients.
func FromStatus(status int) Code {
	switch status {
	case http.StatusUnauthorized:
		return Unauthenticated
	case http.StatusForbidden:
		return PermissionDenied
	case http.StatusBadRequest:
		return InvalidArgument
	case http.StatusConflict:
		return AlreadyExists
	case http.StatusNotFound:
		return NotFound
	case http.StatusPreconditionFailed:
		return FailedPrecondition
	case http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusBadGateway, http.StatusGatewayTimeout:
		return Unavailable
	}
	return Internal
}

// FieldError is implemented by validation failures that carry per-field
// messages. It always maps to InvalidArgument.
type FieldError interface {
	error
	FieldMessages() map[string]string
}

// Body is the JSON error envelope.
type Body struct {
	Error BodyError `json:"error"`
}

// BodyError is the content of the envelope.
type BodyError struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Response renders err as a status and envelope.
func Response(err error) (int, Body) {
	var fe FieldError
	if errors.As(err, &fe) {
		return http.StatusBadRequest, Body{Error: BodyError{
			Code:    InvalidArgument,
			Message: "Please correct the highlighted fields.",
			Fields:  fe.FieldMessages(),
		}}
	}
	code := CodeOf(err)
	return HTTPStatus(code), Body{Error: BodyError{Code: code, Message: MessageOf(err)}}
}
