package service

import (
	"errors"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// errorCode classifies err by its domain sentinel. Used for metric labels.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "storage"
	}
}
