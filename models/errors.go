package models

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies why an operation failed
type ErrorKind string

const (
	ValidationErrorKind ErrorKind = "validation"
	TransportErrorKind  ErrorKind = "transport"
	TimeoutErrorKind    ErrorKind = "timeout"
	ParseErrorKind      ErrorKind = "parse"
)

// ValidationError is returned for malformed sources or arguments, before
// any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// FetchError is a source-scoped failure reported by a feed client
type FetchError struct {
	Kind ErrorKind
	Url  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error fetching %s: %v", e.Kind, e.Url, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf classifies an error. Errors that carry no explicit kind are
// treated as transport errors unless they look like a timeout.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ValidationErrorKind
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.Kind != "" {
		return fetchErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutErrorKind
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimeoutErrorKind
	}

	return TransportErrorKind
}
