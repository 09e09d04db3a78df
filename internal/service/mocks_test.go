package service_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/auth"
	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/repo"
	"github.com/pkordes/trip-timeline/backend/internal/service"
	"github.com/pkordes/trip-timeline/backend/internal/storage"
)

// mockTripRepo is a hand-written test double for repo.TripRepo.
// Each method is a function field; set only the ones your test needs.
type mockTripRepo struct {
	create          func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	getByID         func(ctx context.Context, id uuid.UUID) (domain.Trip, error)
	getByShareToken func(ctx context.Context, token string) (domain.Trip, error)
	listByOwner     func(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error)
	update          func(ctx context.Context, trip domain.Trip) (domain.Trip, error)
	delete          func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTripRepo) Create(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.create(ctx, trip)
}
func (m *mockTripRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.getByID(ctx, id)
}
func (m *mockTripRepo) GetByShareToken(ctx context.Context, token string) (domain.Trip, error) {
	return m.getByShareToken(ctx, token)
}
func (m *mockTripRepo) ListByOwner(ctx context.Context, owner uuid.UUID, p domain.PaginationParams) ([]domain.Trip, int64, error) {
	return m.listByOwner(ctx, owner, p)
}
func (m *mockTripRepo) Update(ctx context.Context, trip domain.Trip) (domain.Trip, error) {
	return m.update(ctx, trip)
}
func (m *mockTripRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

// mockEntryRepo is a hand-written test double for repo.EntryRepo.
type mockEntryRepo struct {
	create         func(ctx context.Context, e domain.Entry) (domain.Entry, error)
	getByID        func(ctx context.Context, id uuid.UUID) (domain.Entry, error)
	listByTrip     func(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error)
	listPhotoPaths func(ctx context.Context, tripID uuid.UUID) ([]string, error)
	update         func(ctx context.Context, id uuid.UUID, patch domain.EntryPatch) (domain.Entry, error)
	setCompleted   func(ctx context.Context, id uuid.UUID, completed bool) (domain.Entry, error)
	delete         func(ctx context.Context, id uuid.UUID) error
}

func (m *mockEntryRepo) Create(ctx context.Context, e domain.Entry) (domain.Entry, error) {
	return m.create(ctx, e)
}
func (m *mockEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Entry, error) {
	return m.getByID(ctx, id)
}
func (m *mockEntryRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error) {
	return m.listByTrip(ctx, tripID)
}
func (m *mockEntryRepo) ListPhotoPaths(ctx context.Context, tripID uuid.UUID) ([]string, error) {
	return m.listPhotoPaths(ctx, tripID)
}
func (m *mockEntryRepo) Update(ctx context.Context, id uuid.UUID, patch domain.EntryPatch) (domain.Entry, error) {
	return m.update(ctx, id, patch)
}
func (m *mockEntryRepo) SetCompleted(ctx context.Context, id uuid.UUID, completed bool) (domain.Entry, error) {
	return m.setCompleted(ctx, id, completed)
}
func (m *mockEntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

// mockAuthorizer answers with a fixed function.
type mockAuthorizer struct {
	canMutateEntry func(ctx context.Context, entry domain.Entry, actor uuid.UUID) bool
}

func (m *mockAuthorizer) CanMutateEntry(ctx context.Context, entry domain.Entry, actor uuid.UUID) bool {
	return m.canMutateEntry(ctx, entry, actor)
}

// mockAssets records removals and uploads.
type mockAssets struct {
	upload  func(ctx context.Context, path string, r io.Reader) error
	remove  func(ctx context.Context, paths []string) error
	removed [][]string
}

func (m *mockAssets) Upload(ctx context.Context, path string, r io.Reader) error {
	return m.upload(ctx, path, r)
}
func (m *mockAssets) Remove(ctx context.Context, paths []string) error {
	m.removed = append(m.removed, paths)
	if m.remove == nil {
		return nil
	}
	return m.remove(ctx, paths)
}
func (m *mockAssets) PublicURL(path string) string {
	return "http://assets.test/" + path
}

// mockPages is a map-backed page cache that records invalidations.
type mockPages struct {
	pages       map[uuid.UUID]domain.TripPage
	invalidated []uuid.UUID
}

func newMockPages() *mockPages {
	return &mockPages{pages: map[uuid.UUID]domain.TripPage{}}
}

func (m *mockPages) Get(id uuid.UUID) (domain.TripPage, bool) {
	p, ok := m.pages[id]
	return p, ok
}
func (m *mockPages) Put(p domain.TripPage) { m.pages[p.Trip.ID] = p }
func (m *mockPages) Invalidate(id uuid.UUID) {
	delete(m.pages, id)
	m.invalidated = append(m.invalidated, id)
}

// compile-time checks: mocks must satisfy the interfaces they stand in for.
var (
	_ repo.TripRepo         = (*mockTripRepo)(nil)
	_ repo.EntryRepo        = (*mockEntryRepo)(nil)
	_ service.Authorizer    = (*mockAuthorizer)(nil)
	_ storage.ObjectStorage = (*mockAssets)(nil)
	_ service.PageCache     = (*mockPages)(nil)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asActor(id uuid.UUID) context.Context {
	return auth.WithActor(context.Background(), id)
}
