// Package apperror holds the error kinds shared by every layer of the portal.
// Concrete errors in other packages report their kind through errors.Is, so
// handlers can pick a status code without knowing the concrete type.
package apperror

import (
	"errors"
	"net/http"
)

// Error kinds.
var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrUnauthorizedTransition = errors.New("unauthorized transition")
	ErrAttachmentPolicy       = errors.New("attachment policy violation")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")
	ErrExternalLookup         = errors.New("external lookup failure")
	ErrNotFound               = errors.New("not found")
	ErrDuplicate              = errors.New("duplicate record")
)

// Retryable reports whether the caller may retry the same request after
// re-fetching state.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrExternalLookup)
}

// HTTPStatus maps an error to the response status used by the handlers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAttachmentPolicy):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnauthorizedTransition):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConcurrencyConflict),
		errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrExternalLookup):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
