package domain

import (
	"errors"
	"fmt"
)

// ErrAuth indicates the platform rejected the supplied credentials (401/403)
var ErrAuth = errors.New("authentication failed")

// ErrNotFound indicates a course, lecture or quiz does not exist or is not accessible
var ErrNotFound = errors.New("not found")

// ErrTransient indicates a network or remote-service failure that is safe to retry
var ErrTransient = errors.New("transient failure")

// ErrUsage indicates invalid user input, detected before any network call
var ErrUsage = errors.New("usage error")

// ParseError is returned when a platform response cannot be mapped onto its record type.
type ParseError struct {
	Resource string
	Field    string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parsing %s: field %q: %v", e.Resource, e.Field, e.Err)
	}
	return fmt.Sprintf("parsing %s: %v", e.Resource, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrMissingField is the cause used when a required response field is absent
var ErrMissingField = errors.New("missing required field")

// MissingField builds a ParseError for an absent field.
func MissingField(resource, field string) *ParseError {
	return &ParseError{Resource: resource, Field: field, Err: ErrMissingField}
}

// Usagef wraps a formatted message with ErrUsage.
func Usagef(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, v...))
}
