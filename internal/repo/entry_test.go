package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/repo"
)

var entryCols = []string{
	"id", "trip_id", "kind", "title", "time", "memo", "link_url",
	"is_completed", "photo_path", "created_by", "created_at",
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newMockEntryRepo(t *testing.T) (repo.EntryRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return repo.NewEntryRepo(mock), mock
}

type entryFixture struct {
	id, tripID, createdBy uuid.UUID
	at, createdAt         time.Time
}

func newEntryFixture() entryFixture {
	return entryFixture{
		id:        uuid.New(),
		tripID:    uuid.New(),
		createdBy: uuid.New(),
		at:        time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		createdAt: time.Date(2024, 4, 20, 12, 0, 0, 0, time.UTC),
	}
}

func (f entryFixture) planRow(title string, done bool) *pgxmock.Rows {
	return pgxmock.NewRows(entryCols).AddRow(
		f.id, f.tripID, "PLAN", strPtr(title), f.at, (*string)(nil), (*string)(nil),
		boolPtr(done), (*string)(nil), f.createdBy, f.createdAt,
	)
}

func (f entryFixture) photoRow(path, caption string) *pgxmock.Rows {
	return pgxmock.NewRows(entryCols).AddRow(
		f.id, f.tripID, "PHOTO", (*string)(nil), f.at, strPtr(caption), (*string)(nil),
		(*bool)(nil), strPtr(path), f.createdBy, f.createdAt,
	)
}

func TestEntryRepo_Create(t *testing.T) {
	f := newEntryFixture()

	tests := []struct {
		name    string
		entry   domain.Entry
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
		check   func(t *testing.T, got domain.Entry)
	}{
		{
			name:  "plan",
			entry: domain.Entry{TripID: f.tripID, Time: f.at, CreatedBy: f.createdBy, Body: domain.Plan{Title: "Museum"}},
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO timeline_entries`).
					WithArgs(pgxmock.AnyArg(), "PLAN", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnRows(f.planRow("Museum", false))
			},
			check: func(t *testing.T, got domain.Entry) {
				assert.Equal(t, f.id, got.ID)
				plan, ok := got.Plan()
				require.True(t, ok)
				assert.Equal(t, "Museum", plan.Title)
				assert.False(t, plan.Completed)
			},
		},
		{
			name:  "photo keeps caption in memo",
			entry: domain.Entry{TripID: f.tripID, Time: f.at, CreatedBy: f.createdBy, Body: domain.Photo{Path: "t/1.jpg", Caption: "view"}},
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO timeline_entries`).
					WithArgs(pgxmock.AnyArg(), "PHOTO", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnRows(f.photoRow("t/1.jpg", "view"))
			},
			check: func(t *testing.T, got domain.Entry) {
				photo, ok := got.Photo()
				require.True(t, ok)
				assert.Equal(t, "t/1.jpg", photo.Path)
				assert.Equal(t, "view", photo.Caption)
			},
		},
		{
			name:  "missing trip maps to not found",
			entry: domain.Entry{TripID: f.tripID, Time: f.at, CreatedBy: f.createdBy, Body: domain.Plan{Title: "Museum"}},
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO timeline_entries`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "timeline_entries_trip_id_fkey"})
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name:  "check violation maps to validation",
			entry: domain.Entry{TripID: f.tripID, Time: f.at, CreatedBy: f.createdBy, Body: domain.Plan{Title: "Museum"}},
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`INSERT INTO timeline_entries`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(&pgconn.PgError{Code: "23514", Message: "timeline_entries_variant_check"})
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newMockEntryRepo(t)
			tt.setup(mock)

			got, err := r.Create(context.Background(), tt.entry)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				tt.check(t, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEntryRepo_GetByID_NotFound(t *testing.T) {
	r, mock := newMockEntryRepo(t)
	mock.ExpectQuery(`SELECT .+ FROM timeline_entries WHERE id = \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := r.GetByID(context.Background(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_GetByID_UnknownKindIsRejected(t *testing.T) {
	f := newEntryFixture()
	r, mock := newMockEntryRepo(t)
	rows := pgxmock.NewRows(entryCols).AddRow(
		f.id, f.tripID, "NOTE", strPtr("x"), f.at, (*string)(nil), (*string)(nil),
		(*bool)(nil), (*string)(nil), f.createdBy, f.createdAt,
	)
	mock.ExpectQuery(`SELECT`).WithArgs(pgxmock.AnyArg()).WillReturnRows(rows)

	_, err := r.GetByID(context.Background(), f.id)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEntryRepo_ListByTrip_OrderedByTimeThenID(t *testing.T) {
	f := newEntryFixture()
	r, mock := newMockEntryRepo(t)
	mock.ExpectQuery(`SELECT .+ FROM timeline_entries WHERE trip_id = \$1 ORDER BY time ASC, id ASC`).
		WithArgs(f.tripID).
		WillReturnRows(f.planRow("Breakfast", true))

	got, err := r.ListByTrip(context.Background(), f.tripID)

	require.NoError(t, err)
	require.Len(t, got, 1)
	plan, _ := got[0].Plan()
	assert.True(t, plan.Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_ListByTrip_EmptyIsNotNil(t *testing.T) {
	r, mock := newMockEntryRepo(t)
	mock.ExpectQuery(`SELECT`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(entryCols))

	got, err := r.ListByTrip(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEntryRepo_ListPhotoPaths(t *testing.T) {
	r, mock := newMockEntryRepo(t)
	mock.ExpectQuery(`SELECT photo_path FROM timeline_entries`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"photo_path"}).
			AddRow(strPtr("t/1.jpg")).
			AddRow((*string)(nil)).
			AddRow(strPtr("t/2.png")))

	got, err := r.ListPhotoPaths(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, []string{"t/1.jpg", "t/2.png"}, got)
}

func TestEntryRepo_Update_WritesOnlySuppliedColumns(t *testing.T) {
	f := newEntryFixture()

	tests := []struct {
		name  string
		patch domain.EntryPatch
		query string
		args  int
	}{
		{name: "title only", patch: domain.EntryPatch{Title: strPtr("Dinner")}, query: `UPDATE timeline_entries SET title = \$1 WHERE id = \$2 RETURNING`, args: 2},
		{name: "memo only", patch: domain.EntryPatch{Memo: strPtr("bring cash")}, query: `UPDATE timeline_entries SET memo = \$1 WHERE id = \$2 RETURNING`, args: 2},
		{name: "time and link", patch: domain.EntryPatch{Time: &f.at, LinkURL: strPtr("https://x")}, query: `UPDATE timeline_entries SET link_url = \$1, time = \$2 WHERE id = \$3`, args: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newMockEntryRepo(t)
			args := make([]any, tt.args)
			for i := range args {
				args[i] = pgxmock.AnyArg()
			}
			mock.ExpectQuery(tt.query).WithArgs(args...).WillReturnRows(f.planRow("Dinner", false))

			_, err := r.Update(context.Background(), f.id, tt.patch)

			require.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEntryRepo_Update_EmptyPatch(t *testing.T) {
	r, mock := newMockEntryRepo(t)

	_, err := r.Update(context.Background(), uuid.New(), domain.EntryPatch{})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_SetCompleted_GuardsKind(t *testing.T) {
	f := newEntryFixture()
	r, mock := newMockEntryRepo(t)
	mock.ExpectQuery(`UPDATE timeline_entries SET is_completed = \$1 WHERE id = \$2 AND kind = \$3`).
		WithArgs(true, f.id, "PLAN").
		WillReturnRows(f.planRow("Hike", true))

	got, err := r.SetCompleted(context.Background(), f.id, true)

	require.NoError(t, err)
	plan, ok := got.Plan()
	require.True(t, ok)
	assert.True(t, plan.Completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_Delete(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		r, mock := newMockEntryRepo(t)
		mock.ExpectExec(`DELETE FROM timeline_entries WHERE id = \$1`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, r.Delete(context.Background(), uuid.New()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent", func(t *testing.T) {
		r, mock := newMockEntryRepo(t)
		mock.ExpectExec(`DELETE FROM timeline_entries`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := r.Delete(context.Background(), uuid.New())

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("connection failure is a storage error", func(t *testing.T) {
		r, mock := newMockEntryRepo(t)
		mock.ExpectExec(`DELETE FROM timeline_entries`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("conn reset"))

		err := r.Delete(context.Background(), uuid.New())

		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}
