package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/repo"
	"github.com/pkordes/trip-timeline/backend/testutil"
)

// newTestRepos opens a transaction against the test database and returns a
// TripRepo and an EntryRepo backed by it. The transaction is rolled back when
// the test finishes, giving free per-test isolation.
//
// Requires TEST_DATABASE_URL to be set; TestMain applies the migrations.
func newTestRepos(t *testing.T) (repo.TripRepo, repo.EntryRepo) {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		// Rollback discards all changes made during the test, so no cleanup SQL is needed.
		_ = tx.Rollback(context.Background())
	})

	return repo.NewTripRepo(tx), repo.NewEntryRepo(tx)
}

// tripFixture returns a domain.Trip with sensible defaults for use in tests.
// Callers can override individual fields after calling this function.
func tripFixture(owner uuid.UUID) domain.Trip {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	return domain.Trip{
		OwnerID:    owner,
		Title:      "Kyoto",
		StartDate:  &start,
		EndDate:    &end,
		ShareToken: ulid.Make().String(),
	}
}

func TestTripRepo_Create(t *testing.T) {
	trips, _ := newTestRepos(t)
	ctx := context.Background()

	input := tripFixture(uuid.New())
	got, err := trips.Create(ctx, input)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID, "ID should be DB-generated UUID")
	assert.Equal(t, input.OwnerID, got.OwnerID)
	assert.Equal(t, input.Title, got.Title)
	assert.Equal(t, input.ShareToken, got.ShareToken)
	require.NotNil(t, got.StartDate)
	assert.True(t, got.StartDate.Equal(*input.StartDate), "StartDate mismatch")
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt should be set by DB")
}

func TestTripRepo_Create_EndBeforeStart(t *testing.T) {
	trips, _ := newTestRepos(t)

	input := tripFixture(uuid.New())
	end := input.StartDate.AddDate(0, 0, -1)
	input.EndDate = &end

	_, err := trips.Create(context.Background(), input)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTripRepo_GetByShareToken(t *testing.T) {
	trips, _ := newTestRepos(t)
	ctx := context.Background()

	created, err := trips.Create(ctx, tripFixture(uuid.New()))
	require.NoError(t, err)

	got, err := trips.GetByShareToken(ctx, created.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = trips.GetByShareToken(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_ListByOwner(t *testing.T) {
	trips, _ := newTestRepos(t)
	ctx := context.Background()
	owner := uuid.New()

	for _, title := range []string{"First", "Second", "Third"} {
		tr := tripFixture(owner)
		tr.Title = title
		_, err := trips.Create(ctx, tr)
		require.NoError(t, err)
	}
	_, err := trips.Create(ctx, tripFixture(uuid.New())) // someone else's
	require.NoError(t, err)

	page, total, err := trips.ListByOwner(ctx, owner, domain.PaginationParams{Page: 1, Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 2)
	for _, tr := range page {
		assert.Equal(t, owner, tr.OwnerID)
	}
}

func TestTripRepo_Update_KeepsShareToken(t *testing.T) {
	trips, _ := newTestRepos(t)
	ctx := context.Background()

	created, err := trips.Create(ctx, tripFixture(uuid.New()))
	require.NoError(t, err)

	changed := created
	changed.Title = "Osaka"
	changed.EndDate = nil
	changed.ShareToken = "ignored"

	updated, err := trips.Update(ctx, changed)

	require.NoError(t, err)
	assert.Equal(t, "Osaka", updated.Title)
	assert.Nil(t, updated.EndDate)
	assert.Equal(t, created.ShareToken, updated.ShareToken)
}

func TestTripRepo_Update_NotFound(t *testing.T) {
	trips, _ := newTestRepos(t)

	ghost := tripFixture(uuid.New())
	ghost.ID = uuid.New()

	_, err := trips.Update(context.Background(), ghost)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripRepo_Delete_CascadesEntries(t *testing.T) {
	trips, entries := newTestRepos(t)
	ctx := context.Background()

	created, err := trips.Create(ctx, tripFixture(uuid.New()))
	require.NoError(t, err)
	e, err := entries.Create(ctx, domain.Entry{
		TripID:    created.ID,
		Time:      time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		CreatedBy: created.OwnerID,
		Body:      domain.Plan{Title: "Temple"},
	})
	require.NoError(t, err)

	require.NoError(t, trips.Delete(ctx, created.ID))

	_, err = trips.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "trip should be gone after delete")
	_, err = entries.GetByID(ctx, e.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "entries should go with the trip")
}

func TestTripRepo_Delete_NotFound(t *testing.T) {
	trips, _ := newTestRepos(t)

	err := trips.Delete(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
