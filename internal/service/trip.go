package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/repo"
	"github.com/pkordes/trip-timeline/backend/internal/storage"
)

// TripInput carries the editable trip fields.
type TripInput struct {
	Title     string
	StartDate *time.Time
	EndDate   *time.Time
}

// TripService implements business logic for Trip operations.
type TripService struct {
	trips    repo.TripRepo
	entries  repo.EntryRepo
	assets   storage.ObjectStorage
	pages    PageCache
	log      *slog.Logger
	newToken func() string
}

// NewTripService constructs a TripService.
func NewTripService(
	trips repo.TripRepo,
	entries repo.EntryRepo,
	assets storage.ObjectStorage,
	pages PageCache,
	log *slog.Logger,
) *TripService {
	return &TripService{
		trips:    trips,
		entries:  entries,
		assets:   assets,
		pages:    pages,
		log:      log.With("service", "trip"),
		newToken: func() string { return ulid.Make().String() },
	}
}

// Create validates and persists a new trip owned by the actor. The share
// token is issued here and never changes afterwards.
func (s *TripService) Create(ctx context.Context, in TripInput) (domain.Trip, error) {
	const op = "service.TripService.Create"

	actor, err := requireActor(ctx, op)
	if err != nil {
		return domain.Trip{}, err
	}
	if err := validateTrip(in); err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.trips.Create(ctx, domain.Trip{
		OwnerID:    actor,
		Title:      strings.TrimSpace(in.Title),
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		ShareToken: s.newToken(),
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.InfoContext(ctx, "trip created", "trip_id", created.ID, "owner", actor)
	return created, nil
}

// GetByShareToken resolves a share token to its trip.
func (s *TripService) GetByShareToken(ctx context.Context, token string) (domain.Trip, error) {
	trip, err := s.trips.GetByShareToken(ctx, token)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByShareToken: %w", err)
	}
	return trip, nil
}

// Page returns the shared page of a trip: the trip and its ordered entries.
// The share token is the capability, so no actor is required. Pages are
// served from the cache until a write invalidates them.
func (s *TripService) Page(ctx context.Context, token string) (domain.TripPage, error) {
	const op = "service.TripService.Page"

	trip, err := s.trips.GetByShareToken(ctx, token)
	if err != nil {
		return domain.TripPage{}, fmt.Errorf("%s: %w", op, err)
	}
	if page, ok := s.pages.Get(trip.ID); ok {
		pageCacheLookupsTotal.WithLabelValues("hit").Inc()
		return page, nil
	}
	pageCacheLookupsTotal.WithLabelValues("miss").Inc()

	entries, err := s.entries.ListByTrip(ctx, trip.ID)
	if err != nil {
		return domain.TripPage{}, fmt.Errorf("%s: %w", op, err)
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	page := domain.TripPage{Trip: trip, Entries: entries}
	s.pages.Put(page)
	return page, nil
}

// ListOwned returns one page of the actor's trips, newest first.
func (s *TripService) ListOwned(ctx context.Context, p domain.PaginationParams) (domain.TripList, error) {
	const op = "service.TripService.ListOwned"

	actor, err := requireActor(ctx, op)
	if err != nil {
		return domain.TripList{}, err
	}
	trips, total, err := s.trips.ListByOwner(ctx, actor, p)
	if err != nil {
		return domain.TripList{}, fmt.Errorf("%s: %w", op, err)
	}
	if trips == nil {
		trips = []domain.Trip{}
	}
	return domain.TripList{Trips: trips, Total: total, Page: p}, nil
}

// Update changes title and dates. Only the owner may do this.
func (s *TripService) Update(ctx context.Context, tripID uuid.UUID, in TripInput) (domain.Trip, error) {
	const op = "service.TripService.Update"

	current, err := s.ownedTrip(ctx, op, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	if err := validateTrip(in); err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}

	current.Title = strings.TrimSpace(in.Title)
	current.StartDate = in.StartDate
	current.EndDate = in.EndDate

	updated, err := s.trips.Update(ctx, current)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}
	s.pages.Invalidate(updated.ID)
	return updated, nil
}

// Delete removes a trip and its entries. Only the owner may do this. Photo
// assets are removed after the rows; failures there are logged, not returned.
func (s *TripService) Delete(ctx context.Context, tripID uuid.UUID) error {
	const op = "service.TripService.Delete"

	if _, err := s.ownedTrip(ctx, op, tripID); err != nil {
		return err
	}

	paths, err := s.entries.ListPhotoPaths(ctx, tripID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.trips.Delete(ctx, tripID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.pages.Invalidate(tripID)

	if len(paths) > 0 {
		if err := s.assets.Remove(ctx, paths); err != nil {
			assetCleanupFailuresTotal.Add(float64(len(paths)))
			s.log.WarnContext(ctx, "photo asset removal failed after trip delete",
				"trip_id", tripID, "assets", len(paths), "error", err)
		}
	}
	s.log.InfoContext(ctx, "trip deleted", "trip_id", tripID)
	return nil
}

// ownedTrip loads a trip and checks that the actor owns it.
func (s *TripService) ownedTrip(ctx context.Context, op string, tripID uuid.UUID) (domain.Trip, error) {
	actor, err := requireActor(ctx, op)
	if err != nil {
		return domain.Trip{}, err
	}
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, err)
	}
	if !trip.IsOwner(actor) {
		return domain.Trip{}, fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	}
	return trip, nil
}

// validateTrip enforces business rules on trip input.
// Returns a wrapped domain.ErrValidation describing the first violation found.
func validateTrip(in TripInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return fmt.Errorf("%w: end_date must not be before start_date", domain.ErrValidation)
	}
	return nil
}
