package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// trip or entry does not exist.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (missing title on a plan, missing asset path on a photo, end date before
// start date). It is always returned before any store access.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrUnauthorized is returned when an operation requires an authenticated
// actor and the context carries none.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when the actor is authenticated but is neither the
// creator of the entry nor the owner of its trip.
var ErrForbidden = errors.New("forbidden")

// ErrStorage wraps failures of the authoritative store or of object storage.
// It is surfaced to the caller and never retried automatically.
var ErrStorage = errors.New("storage error")
