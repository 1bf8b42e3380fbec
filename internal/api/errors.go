package api

import (
	"errors"
	"net/http"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/service"
	"github.com/forkline/outreach-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrTemplateNotFound),
		errors.Is(err, service.ErrRestaurantNotFound),
		errors.Is(err, service.ErrInstanceNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Lifecycle conflicts
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInstanceNotAdvanceable),
		errors.Is(err, service.ErrNoActiveTask):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for the given error.
// Validation failures surface their own message; everything else maps to a
// fixed phrase per status class so internals never leak.
func GetSafeErrorMessage(err error) string {
	status := MapErrorToStatusCode(err)

	switch status {
	case http.StatusBadRequest:
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			return validationErr.Error()
		}
		if errors.Is(err, service.ErrBulkSizeInvalid) ||
			errors.Is(err, service.ErrNextTemplateRequired) ||
			errors.Is(err, service.ErrInvalidFinishMode) {
			return err.Error()
		}
		return "Invalid request"
	case http.StatusUnauthorized:
		return "Authentication required"
	case http.StatusNotFound:
		switch {
		case errors.Is(err, service.ErrTemplateNotFound):
			return "Sequence template not found"
		case errors.Is(err, service.ErrRestaurantNotFound):
			return "Restaurant not found"
		case errors.Is(err, service.ErrInstanceNotFound):
			return "Sequence not found"
		}
		return "Resource not found"
	case http.StatusConflict:
		// The lifecycle sentinels are written for end users already.
		return err.Error()
	default:
		return "An internal error occurred"
	}
}
