package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidStepType is returned when a step type is not one of the
	// supported outreach channels.
	ErrInvalidStepType = errors.New("invalid step type")

	// ErrInvalidDelayUnit is returned when a step delay unit is not valid.
	ErrInvalidDelayUnit = errors.New("invalid delay unit")

	// ErrInvalidInstanceStatus is returned when a sequence instance status
	// is not valid.
	ErrInvalidInstanceStatus = errors.New("invalid sequence instance status")

	// ErrInvalidTaskStatus is returned when a task status is not valid.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrInvalidMessageSource is returned when a step's message source is
	// neither a template reference nor an inline message.
	ErrInvalidMessageSource = errors.New("invalid message source")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ValidationError wraps ErrValidation with field-level context so callers
// can report which input was rejected without string matching.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return "validation failed for " + e.Field + ": " + e.Message + ": " + e.Err.Error()
	}
	return "validation failed for " + e.Field + ": " + e.Message
}

// Unwrap supports errors.Is/errors.As. Every ValidationError matches
// ErrValidation in addition to its specific cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil && !errors.Is(e.Err, ErrValidation) {
		return []error{ErrValidation, e.Err}
	}
	if e.Err != nil {
		return []error{e.Err}
	}
	return []error{ErrValidation}
}

// NewValidationError creates a new ValidationError for the given field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
