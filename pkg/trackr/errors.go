package trackr

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrServer     = errors.New("server error")
	ErrTimeout    = errors.New("timeout")
	ErrValidation = errors.New("validation error")
	ErrAPI        = errors.New("api error")
)

// APIError is returned for any failed request that reached the transport.
type APIError struct {
	Path       string
	StatusCode int
	Detail     string

	kind  error
	cause error
}

// NewAPIError returns an APIError of the given kind, one of the Err*
// sentinels above.
func NewAPIError(path string, statusCode int, kind error) *APIError {
	return &APIError{Path: path, StatusCode: statusCode, kind: kind}
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("GET %s: %v (HTTP %d): %s", e.Path, e.kind, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("GET %s: %v (HTTP %d)", e.Path, e.kind, e.StatusCode)
	case e.cause != nil:
		return fmt.Sprintf("GET %s: %v: %v", e.Path, e.kind, e.cause)
	}
	return fmt.Sprintf("GET %s: %v", e.Path, e.kind)
}

// Is reports whether target is the error's kind.
func (e *APIError) Is(target error) bool { return target == e.kind }

func (e *APIError) Unwrap() error { return e.cause }

// Transient reports whether retrying the request could succeed.
func (e *APIError) Transient() bool {
	return e.kind == ErrServer || e.kind == ErrTimeout
}

// ValidationError is returned when an identifier fails its format check.
// No request is made in that case.
type ValidationError struct {
	Field   string
	Value   string
	Pattern string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q (expected %s)", e.Field, e.Value, e.Pattern)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
