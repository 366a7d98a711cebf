package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a story, segment, edge, or task does not
// exist, or exists but is owned by a different caller. Ownership misses
// deliberately look identical to missing records.
var ErrNotFound = errors.New("not found")

// ErrNoMessage is returned when the queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// ErrBackendUnavailable indicates a degraded embedding or generation
// backend. Under the fail_soft policy it is absorbed with placeholder
// output; under fail_hard it propagates as a step failure.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ValidationError reports a graph integrity or input violation. Validation
// errors surface synchronously, before any async task is dispatched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
