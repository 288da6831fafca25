package core

import (
	"errors"
	"fmt"
)

const maxBodySnippet = 512

// ValidationError reports a required field missing from upstream data.
// It always fails the run; the message names the missing field.
type ValidationError struct {
	Field string
}

func NewValidationError(field string) *ValidationError {
	return &ValidationError{Field: field}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// ExternalServiceError reports a non-2xx response from a downstream
// dependency after retries are exhausted. Body is truncated on capture.
type ExternalServiceError struct {
	Service string
	Status  int
	Body    string
}

func NewExternalServiceError(service string, status int, body string) *ExternalServiceError {
	if len(body) > maxBodySnippet {
		body = body[:maxBodySnippet] + "...(truncated)"
	}
	return &ExternalServiceError{Service: service, Status: status, Body: body}
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Body)
}

// SkipError is an expected gate failure: the run is finalized as skipped
// rather than failed, and the condition is not treated as an error by
// callers beyond recording it.
type SkipError struct {
	Reason string
	Actual string
}

func NewSkipError(reason, actual string) *SkipError {
	return &SkipError{Reason: reason, Actual: actual}
}

func (e *SkipError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("skipped: %s", e.Reason)
	}
	return fmt.Sprintf("skipped: %s (got %q)", e.Reason, e.Actual)
}

// IsSkip reports whether err is a skip condition and returns it.
func IsSkip(err error) (*SkipError, bool) {
	var se *SkipError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
