package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/trip-timeline/backend/internal/auth"
	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/feed"
	"github.com/pkordes/trip-timeline/backend/internal/handler"
	"github.com/pkordes/trip-timeline/backend/internal/service"
)

// mockTripServicer is a test double for handler.TripServicer.
// Set only the method fields your test needs.
type mockTripServicer struct {
	create    func(ctx context.Context, in service.TripInput) (domain.Trip, error)
	page      func(ctx context.Context, token string) (domain.TripPage, error)
	listOwned func(ctx context.Context, p domain.PaginationParams) (domain.TripList, error)
	update    func(ctx context.Context, id uuid.UUID, in service.TripInput) (domain.Trip, error)
	delete    func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTripServicer) Create(ctx context.Context, in service.TripInput) (domain.Trip, error) {
	return m.create(ctx, in)
}
func (m *mockTripServicer) Page(ctx context.Context, token string) (domain.TripPage, error) {
	return m.page(ctx, token)
}
func (m *mockTripServicer) ListOwned(ctx context.Context, p domain.PaginationParams) (domain.TripList, error) {
	return m.listOwned(ctx, p)
}
func (m *mockTripServicer) Update(ctx context.Context, id uuid.UUID, in service.TripInput) (domain.Trip, error) {
	return m.update(ctx, id, in)
}
func (m *mockTripServicer) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

// mockEntryServicer is a test double for handler.EntryServicer.
type mockEntryServicer struct {
	create      func(ctx context.Context, in service.CreateEntryInput) (domain.Entry, error)
	update      func(ctx context.Context, id uuid.UUID, patch domain.EntryPatch) (domain.Entry, error)
	toggle      func(ctx context.Context, id uuid.UUID, completed bool) (domain.Entry, error)
	delete      func(ctx context.Context, in service.DeleteEntryInput) error
	listByTrip  func(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error)
	uploadPhoto func(ctx context.Context, tripID uuid.UUID, filename string, r io.Reader) (service.UploadedPhoto, error)
}

func (m *mockEntryServicer) Create(ctx context.Context, in service.CreateEntryInput) (domain.Entry, error) {
	return m.create(ctx, in)
}
func (m *mockEntryServicer) Update(ctx context.Context, id uuid.UUID, patch domain.EntryPatch) (domain.Entry, error) {
	return m.update(ctx, id, patch)
}
func (m *mockEntryServicer) ToggleCompletion(ctx context.Context, id uuid.UUID, completed bool) (domain.Entry, error) {
	return m.toggle(ctx, id, completed)
}
func (m *mockEntryServicer) Delete(ctx context.Context, in service.DeleteEntryInput) error {
	return m.delete(ctx, in)
}
func (m *mockEntryServicer) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error) {
	return m.listByTrip(ctx, tripID)
}
func (m *mockEntryServicer) UploadPhoto(ctx context.Context, tripID uuid.UUID, filename string, r io.Reader) (service.UploadedPhoto, error) {
	return m.uploadPhoto(ctx, tripID, filename, r)
}

// mockExportServicer is a test double for handler.ExportServicer.
type mockExportServicer struct {
	export func(ctx context.Context, tripID uuid.UUID) ([]domain.ExportRow, error)
}

func (m *mockExportServicer) Export(ctx context.Context, tripID uuid.UUID) ([]domain.ExportRow, error) {
	return m.export(ctx, tripID)
}

// compile-time checks: the mocks must satisfy the handler interfaces.
var (
	_ handler.TripServicer   = (*mockTripServicer)(nil)
	_ handler.EntryServicer  = (*mockEntryServicer)(nil)
	_ handler.ExportServicer = (*mockExportServicer)(nil)
)

// ---- helpers ---------------------------------------------------------------

type deps struct {
	trips   *mockTripServicer
	entries *mockEntryServicer
	export  *mockExportServicer
	feed    feed.Source
}

// newHTTPHandler wires a Server with the given mocks into its router.
// Requests carry the actor set by withActor, the way the auth middleware
// would in production.
func newHTTPHandler(d deps) http.Handler {
	if d.trips == nil {
		d.trips = &mockTripServicer{}
	}
	if d.entries == nil {
		d.entries = &mockEntryServicer{}
	}
	if d.export == nil {
		d.export = &mockExportServicer{}
	}
	if d.feed == nil {
		d.feed = feed.NewHub(8, discardLogger())
	}
	srv := handler.NewServer(d.trips, d.entries, d.export, d.feed, discardLogger())
	return srv.Routes()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withActor(req *http.Request, actor uuid.UUID) *http.Request {
	return req.WithContext(auth.WithActor(req.Context(), actor))
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, body io.Reader) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func tripFixture() domain.Trip {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	return domain.Trip{
		ID:         uuid.New(),
		OwnerID:    uuid.New(),
		Title:      "Kyoto",
		StartDate:  &start,
		EndDate:    &end,
		ShareToken: "01J0SHARETOKEN0000000000000",
		CreatedAt:  time.Now().UTC(),
	}
}

func planFixture(tripID uuid.UUID) domain.Entry {
	return domain.Entry{
		ID:        uuid.New(),
		TripID:    tripID,
		Time:      time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		CreatedBy: uuid.New(),
		CreatedAt: time.Now().UTC(),
		Body:      domain.Plan{Title: "Breakfast"},
	}
}
