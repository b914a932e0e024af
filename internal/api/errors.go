package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrValidation is matched by every client-side precondition failure.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a request rejected before it was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for constructing a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NetworkError wraps a transport failure: the request never produced a
// response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network error: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.Code, e.Message)
}

// AppError is a 2xx response whose body reports failure, e.g.
// {"success": false, "error": "..."}.
type AppError struct {
	Op      string
	Message string
}

func (e *AppError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Message) }

// IsUnauthorized reports whether err is a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
	}
	return false
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Message converts any error from this package into the single line shown
// to a user. It never returns an empty string for a non-nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		ve *ValidationError
		ne *NetworkError
		se *StatusError
		ae *AppError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ne):
		return "Could not reach the server. Check your connection and try again."
	case errors.As(err, &se):
		if se.Message != "" {
			return se.Message
		}
		return fmt.Sprintf("Server returned %d %s", se.Code, http.StatusText(se.Code))
	case errors.As(err, &ae):
		return ae.Message
	default:
		return err.Error()
	}
}
