// Package service contains the business logic for the trip timeline API.
// Services validate inputs, enforce permissions, and orchestrate repo and
// storage calls. No SQL lives here; services depend on repo interfaces,
// not implementations.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/auth"
	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Authorizer decides whether an actor may update or delete an entry.
type Authorizer interface {
	CanMutateEntry(ctx context.Context, entry domain.Entry, actorID uuid.UUID) bool
}

// PageInvalidator drops cached trip pages after a write.
type PageInvalidator interface {
	Invalidate(tripID uuid.UUID)
}

// PageCache stores rendered shared-trip pages.
type PageCache interface {
	PageInvalidator
	Get(tripID uuid.UUID) (domain.TripPage, bool)
	Put(page domain.TripPage)
}

// requireActor returns the authenticated user or domain.ErrUnauthorized.
func requireActor(ctx context.Context, op string) (uuid.UUID, error) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("%s: %w", op, domain.ErrUnauthorized)
	}
	return actor, nil
}
