// Package authz decides whether an actor may change a timeline entry.
package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// EntryGetter resolves an entry by id.
type EntryGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Entry, error)
}

// TripGetter resolves a trip by id.
type TripGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error)
}

// Oracle answers mutation permission questions. It never returns an error:
// anything it cannot resolve is a denial.
type Oracle struct {
	entries EntryGetter
	trips   TripGetter
	log     *slog.Logger
}

// NewOracle constructs an Oracle.
func NewOracle(entries EntryGetter, trips TripGetter, log *slog.Logger) *Oracle {
	return &Oracle{entries: entries, trips: trips, log: log.With("component", "authz")}
}

// CanMutate reports whether actorID may update or delete the entry: true iff
// the actor created it or owns the trip it belongs to.
func (o *Oracle) CanMutate(ctx context.Context, entryID, actorID uuid.UUID) bool {
	if actorID == uuid.Nil {
		return false
	}
	entry, err := o.entries.GetByID(ctx, entryID)
	if err != nil {
		o.logLookup(ctx, "entry", entryID, err)
		return false
	}
	return o.CanMutateEntry(ctx, entry, actorID)
}

// CanMutateEntry is CanMutate for an entry the caller already resolved.
func (o *Oracle) CanMutateEntry(ctx context.Context, entry domain.Entry, actorID uuid.UUID) bool {
	if actorID == uuid.Nil {
		return false
	}
	if entry.CreatedBy == actorID {
		return true
	}
	trip, err := o.trips.GetByID(ctx, entry.TripID)
	if err != nil {
		o.logLookup(ctx, "trip", entry.TripID, err)
		return false
	}
	return trip.IsOwner(actorID)
}

func (o *Oracle) logLookup(ctx context.Context, what string, id uuid.UUID, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	o.log.WarnContext(ctx, "permission lookup failed, denying", "lookup", what, "id", id, "error", err)
}
