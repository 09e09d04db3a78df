package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/repo"
)

// SeedTrip commits a fresh trip owned by a random user and deletes it, with
// its entries, when the test ends. Use it where a rolled-back transaction is
// not enough, e.g. when the test waits for a NOTIFY.
func SeedTrip(t *testing.T, pool *pgxpool.Pool, title string) domain.Trip {
	t.Helper()

	trips := repo.NewTripRepo(pool)
	trip, err := trips.Create(context.Background(), domain.Trip{
		OwnerID:    uuid.New(),
		Title:      title,
		ShareToken: ulid.Make().String(),
	})
	if err != nil {
		t.Fatalf("testutil.SeedTrip: %v", err)
	}
	t.Cleanup(func() { _ = trips.Delete(context.Background(), trip.ID) })
	return trip
}
