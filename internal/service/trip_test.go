package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/service"
)

// ---- helpers ---------------------------------------------------------------

func validTripInput() service.TripInput {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	return service.TripInput{Title: "Summer in Porto", StartDate: &start, EndDate: &end}
}

// echoTripRepo echoes whatever it receives back, useful for Create/Update
// tests that only care about validation logic.
func echoTripRepo(existing domain.Trip) *mockTripRepo {
	return &mockTripRepo{
		create: func(_ context.Context, t domain.Trip) (domain.Trip, error) {
			t.ID = uuid.New()
			return t, nil
		},
		getByID: func(_ context.Context, id uuid.UUID) (domain.Trip, error) {
			if id == existing.ID {
				return existing, nil
			}
			return domain.Trip{}, domain.ErrNotFound
		},
		update: func(_ context.Context, t domain.Trip) (domain.Trip, error) { return t, nil },
	}
}

func newTripService(trips *mockTripRepo, entries *mockEntryRepo, assets *mockAssets, pages *mockPages) *service.TripService {
	return service.NewTripService(trips, entries, assets, pages, discardLogger())
}

// ---- Create ----------------------------------------------------------------

func TestTripService_Create_Valid(t *testing.T) {
	owner := uuid.New()
	svc := newTripService(echoTripRepo(domain.Trip{}), &mockEntryRepo{}, &mockAssets{}, newMockPages())

	got, err := svc.Create(asActor(owner), validTripInput())

	require.NoError(t, err)
	assert.Equal(t, "Summer in Porto", got.Title)
	assert.Equal(t, owner, got.OwnerID)
	assert.Len(t, got.ShareToken, 26, "share token is a ULID")
}

func TestTripService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *service.TripInput)
	}{
		{name: "blank title", mutate: func(in *service.TripInput) { in.Title = "   " }},
		{name: "end before start", mutate: func(in *service.TripInput) {
			bad := in.StartDate.AddDate(0, 0, -1)
			in.EndDate = &bad
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTripService(&mockTripRepo{}, &mockEntryRepo{}, &mockAssets{}, newMockPages())
			in := validTripInput()
			tt.mutate(&in)

			_, err := svc.Create(asActor(uuid.New()), in)

			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestTripService_Create_SameDayAndOpenEnded(t *testing.T) {
	svc := newTripService(echoTripRepo(domain.Trip{}), &mockEntryRepo{}, &mockAssets{}, newMockPages())

	in := validTripInput()
	same := *in.StartDate
	in.EndDate = &same
	_, err := svc.Create(asActor(uuid.New()), in)
	assert.NoError(t, err)

	in.EndDate = nil
	_, err = svc.Create(asActor(uuid.New()), in)
	assert.NoError(t, err)
}

func TestTripService_Create_RequiresActor(t *testing.T) {
	svc := newTripService(&mockTripRepo{}, &mockEntryRepo{}, &mockAssets{}, newMockPages())

	_, err := svc.Create(context.Background(), validTripInput())

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// ---- Page ------------------------------------------------------------------

func TestTripService_Page_CachesUntilInvalidated(t *testing.T) {
	trip := domain.Trip{ID: uuid.New(), ShareToken: "share"}
	calls := 0
	trips := &mockTripRepo{getByShareToken: func(_ context.Context, token string) (domain.Trip, error) {
		if token == trip.ShareToken {
			return trip, nil
		}
		return domain.Trip{}, domain.ErrNotFound
	}}
	entries := &mockEntryRepo{listByTrip: func(context.Context, uuid.UUID) ([]domain.Entry, error) {
		calls++
		return []domain.Entry{{ID: uuid.New(), TripID: trip.ID, Body: domain.Plan{Title: "x"}}}, nil
	}}
	pages := newMockPages()
	svc := newTripService(trips, entries, &mockAssets{}, pages)
	ctx := context.Background()

	first, err := svc.Page(ctx, "share")
	require.NoError(t, err)
	_, err = svc.Page(ctx, "share")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second read served from cache")
	assert.Len(t, first.Entries, 1)

	pages.Invalidate(trip.ID)
	_, err = svc.Page(ctx, "share")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	_, err = svc.Page(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- ListOwned -------------------------------------------------------------

func TestTripService_ListOwned(t *testing.T) {
	owner := uuid.New()
	trips := &mockTripRepo{listByOwner: func(_ context.Context, o uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
		assert.Equal(t, owner, o)
		assert.Equal(t, 2, p.Page)
		return nil, 0, nil
	}}
	svc := newTripService(trips, &mockEntryRepo{}, &mockAssets{}, newMockPages())

	got, err := svc.ListOwned(asActor(owner), domain.PaginationParams{Page: 2, Limit: 10})

	require.NoError(t, err)
	assert.NotNil(t, got.Trips)
	assert.Equal(t, int64(0), got.Total)
}

// ---- Update ----------------------------------------------------------------

func TestTripService_Update_OwnerOnly(t *testing.T) {
	owner, other := uuid.New(), uuid.New()
	existing := domain.Trip{ID: uuid.New(), OwnerID: owner, Title: "Old", ShareToken: "keep"}
	pages := newMockPages()
	svc := newTripService(echoTripRepo(existing), &mockEntryRepo{}, &mockAssets{}, pages)

	_, err := svc.Update(asActor(other), existing.ID, validTripInput())
	require.ErrorIs(t, err, domain.ErrForbidden)

	got, err := svc.Update(asActor(owner), existing.ID, validTripInput())
	require.NoError(t, err)
	assert.Equal(t, "Summer in Porto", got.Title)
	assert.Equal(t, "keep", got.ShareToken)
	assert.Equal(t, owner, got.OwnerID)
	assert.Equal(t, []uuid.UUID{existing.ID}, pages.invalidated)
}

func TestTripService_Update_NotFound(t *testing.T) {
	svc := newTripService(echoTripRepo(domain.Trip{}), &mockEntryRepo{}, &mockAssets{}, newMockPages())

	_, err := svc.Update(asActor(uuid.New()), uuid.New(), validTripInput())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- Delete ----------------------------------------------------------------

func TestTripService_Delete_RemovesAssetsBestEffort(t *testing.T) {
	owner := uuid.New()
	existing := domain.Trip{ID: uuid.New(), OwnerID: owner}
	trips := echoTripRepo(existing)
	var deleted uuid.UUID
	trips.delete = func(_ context.Context, id uuid.UUID) error {
		deleted = id
		return nil
	}
	entries := &mockEntryRepo{listPhotoPaths: func(context.Context, uuid.UUID) ([]string, error) {
		return []string{"a.jpg", "b.jpg"}, nil
	}}
	assets := &mockAssets{remove: func(context.Context, []string) error { return errors.New("offline") }}
	svc := newTripService(trips, entries, assets, newMockPages())

	err := svc.Delete(asActor(owner), existing.ID)

	require.NoError(t, err)
	assert.Equal(t, existing.ID, deleted)
	assert.Equal(t, [][]string{{"a.jpg", "b.jpg"}}, assets.removed)
}

func TestTripService_Delete_Forbidden(t *testing.T) {
	existing := domain.Trip{ID: uuid.New(), OwnerID: uuid.New()}
	svc := newTripService(echoTripRepo(existing), &mockEntryRepo{}, &mockAssets{}, newMockPages())

	err := svc.Delete(asActor(uuid.New()), existing.ID)

	assert.ErrorIs(t, err, domain.ErrForbidden)
}
