package service

import (
	"errors"
	"fmt"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in service-specific error types
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrTemplateNotFound indicates the sequence template does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrTemplateNotFound = errors.New("sequence template not found")

	// ErrRestaurantNotFound indicates the target restaurant does not exist.
	// Fatal for a single start; recorded per restaurant in bulk calls.
	ErrRestaurantNotFound = errors.New("restaurant not found")

	// ErrInstanceNotFound indicates the sequence instance does not exist.
	ErrInstanceNotFound = errors.New("sequence instance not found")

	// ErrBulkSizeInvalid indicates a bulk request's restaurant id list is
	// empty or exceeds the cap. The whole call is rejected before any
	// store access. API layer should map this to HTTP 400 Bad Request.
	ErrBulkSizeInvalid = fmt.Errorf(
		"%w: bulk start requires between 1 and 100 restaurant ids", domain.ErrValidation)

	// ErrTaskCountMismatch indicates the number of tasks persisted for a
	// new instance does not match the template's step count. The enclosing
	// transaction rolls the instance back.
	ErrTaskCountMismatch = errors.New("created task count does not match step count")

	// ErrInvalidTransition indicates a lifecycle operation is not valid
	// from the instance's current status, including any transition on an
	// already-terminal instance. API layer should map this to HTTP 409.
	ErrInvalidTransition = errors.New("invalid sequence state transition")

	// ErrInstanceNotAdvanceable indicates a step advance was requested on
	// an instance that is not active.
	ErrInstanceNotAdvanceable = errors.New("only active sequences can advance to the next step")

	// ErrNoActiveTask indicates a step advance found no active task to
	// complete; the instance's task set is in an unexpected shape.
	ErrNoActiveTask = errors.New("sequence instance has no active task")

	// ErrNextTemplateRequired indicates a finish-and-start-new request did
	// not name the template for the new sequence.
	ErrNextTemplateRequired = fmt.Errorf(
		"%w: finish mode %q requires a next template id", domain.ErrValidation, FinishModeStartNew)

	// ErrInvalidFinishMode indicates an unknown finish mode.
	ErrInvalidFinishMode = fmt.Errorf("%w: unknown finish mode", domain.ErrValidation)
)

// SequenceServiceError wraps errors from the sequence services with context.
type SequenceServiceError struct {
	// Operation is the operation that failed (e.g., "start", "bulk_start")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for SequenceServiceError.
func (e *SequenceServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sequence service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("sequence service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *SequenceServiceError) Unwrap() error {
	return e.Err
}

// NewSequenceServiceError creates a new SequenceServiceError.
// Known sentinel conditions pass through directly so callers can match
// them without unwrapping; store-level not-found errors are mapped to
// their service-level counterparts.
func NewSequenceServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrTemplateNotFound),
		errors.Is(err, ErrRestaurantNotFound),
		errors.Is(err, ErrInstanceNotFound),
		errors.Is(err, ErrInvalidTransition):
		return err
	case errors.Is(err, store.ErrTemplateNotFound):
		return ErrTemplateNotFound
	case errors.Is(err, store.ErrRestaurantNotFound):
		return ErrRestaurantNotFound
	case errors.Is(err, store.ErrInstanceNotFound):
		return ErrInstanceNotFound
	}

	return &SequenceServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
