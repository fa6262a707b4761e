package service

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies the outcome of a service operation.
//
// Codes are shared by the Directory, Files and Users services and map 1:1
// onto HTTP statuses at the REST boundary.
type ErrorCode int

const (
	// ErrInternal indicates an unexpected backend or I/O fault.
	ErrInternal ErrorCode = iota

	// ErrBadRequest indicates missing or malformed parameters, or a write
	// that no backend accepted.
	ErrBadRequest

	// ErrNotFound indicates the file or user does not exist.
	ErrNotFound

	// ErrForbidden indicates failed authentication or a rejected token.
	ErrForbidden

	// ErrConflict indicates the entity already exists.
	ErrConflict

	// ErrTimeout indicates a backend stopped answering after all retries.
	ErrTimeout

	// ErrRedirect is not a failure: the result is a queue of locations.
	ErrRedirect
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInternal:
		return "INTERNAL_ERROR"
	case ErrBadRequest:
		return "BAD_REQUEST"
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrForbidden:
		return "FORBIDDEN"
	case ErrConflict:
		return "CONFLICT"
	case ErrTimeout:
		return "TIMEOUT"
	case ErrRedirect:
		return "REDIRECT"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// ParseErrorCode is the inverse of ErrorCode.String.
func ParseErrorCode(s string) (ErrorCode, bool) {
	for c := ErrInternal; c <= ErrRedirect; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return ErrInternal, false
}

// HTTPStatus returns the status code used on the wire for c.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrForbidden:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrRedirect:
		return http.StatusTemporaryRedirect
	default:
		return http.StatusInternalServerError
	}
}

// CodeFromStatus maps an HTTP status back to an ErrorCode. The boolean is
// false for statuses that have no declared meaning.
func CodeFromStatus(status int) (ErrorCode, bool) {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest, true
	case http.StatusNotFound:
		return ErrNotFound, true
	case http.StatusForbidden:
		return ErrForbidden, true
	case http.StatusConflict:
		return ErrConflict, true
	case http.StatusGatewayTimeout:
		return ErrTimeout, true
	case http.StatusTemporaryRedirect:
		return ErrRedirect, true
	case http.StatusInternalServerError:
		return ErrInternal, true
	default:
		return ErrInternal, false
	}
}

// Error is the typed error returned by every service operation.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

// Is reports whether target is an *Error with the same code, so callers
// can match on errors.Is(err, &service.Error{Code: service.ErrNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError returns an *Error with no message.
func NewError(code ErrorCode) *Error {
	return &Error{Code: code}
}

// Errorf returns an *Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ErrorCode from err. Errors that are not *Error
// report ErrInternal.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrInternal
}

// AsError returns err as an *Error, wrapping foreign errors as
// ErrInternal. A nil err yields nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Code: ErrInternal, Message: err.Error()}
}

// IsNotFound reports whether err carries ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrNotFound
}

// IsForbidden reports whether err carries ErrForbidden.
func IsForbidden(err error) bool {
	return err != nil && CodeOf(err) == ErrForbidden
}

// IsTimeout reports whether err carries ErrTimeout.
func IsTimeout(err error) bool {
	return err != nil && CodeOf(err) == ErrTimeout
}
