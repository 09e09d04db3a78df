package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/repo"
	"github.com/pkordes/trip-timeline/backend/internal/storage"
)

// CreateEntryInput is a new entry as submitted by a collaborator.
type CreateEntryInput struct {
	TripID uuid.UUID
	Time   time.Time
	Body   domain.Body
}

// DeleteEntryInput names the entry to delete. Kind and PhotoPath repeat what
// the caller believes is stored; a mismatch is rejected.
type DeleteEntryInput struct {
	EntryID   uuid.UUID
	Kind      domain.Kind
	PhotoPath string
}

// UploadedPhoto is where an uploaded asset was stored.
type UploadedPhoto struct {
	Path string `json:"photo_path"`
	URL  string `json:"url"`
}

// EntryService is the only path through which timeline entries are written.
// Every operation requires an authenticated actor in ctx. Update and delete
// additionally require the actor to be the entry creator or the trip owner;
// creating entries and toggling completion only need authentication.
type EntryService struct {
	trips   repo.TripRepo
	entries repo.EntryRepo
	authz   Authorizer
	assets  storage.ObjectStorage
	pages   PageInvalidator
	log     *slog.Logger
	now     func() time.Time
}

// NewEntryService constructs an EntryService.
func NewEntryService(
	trips repo.TripRepo,
	entries repo.EntryRepo,
	authz Authorizer,
	assets storage.ObjectStorage,
	pages PageInvalidator,
	log *slog.Logger,
) *EntryService {
	return &EntryService{
		trips:   trips,
		entries: entries,
		authz:   authz,
		assets:  assets,
		pages:   pages,
		log:     log.With("service", "entry"),
		now:     time.Now,
	}
}

// Create validates and persists a new entry on an existing trip. The actor
// becomes its creator.
func (s *EntryService) Create(ctx context.Context, in CreateEntryInput) (_ domain.Entry, err error) {
	const op = "service.EntryService.Create"
	defer func() { observe("create", err) }()

	actor, err := requireActor(ctx, op)
	if err != nil {
		return domain.Entry{}, err
	}

	entry := domain.Entry{TripID: in.TripID, Time: in.Time, CreatedBy: actor, Body: in.Body}
	if err := entry.Validate(); err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.trips.GetByID(ctx, in.TripID); err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.entries.Create(ctx, entry)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	s.pages.Invalidate(created.TripID)

	s.log.InfoContext(ctx, "entry created",
		"entry_id", created.ID, "trip_id", created.TripID, "kind", created.Kind(), "actor", actor)
	return created, nil
}

// Update writes the supplied fields of an entry. Fields left nil keep their
// stored value, so concurrent edits of different fields both survive.
func (s *EntryService) Update(ctx context.Context, entryID uuid.UUID, patch domain.EntryPatch) (_ domain.Entry, err error) {
	const op = "service.EntryService.Update"
	defer func() { observe("update", err) }()

	actor, err := requireActor(ctx, op)
	if err != nil {
		return domain.Entry{}, err
	}
	if err := patch.Validate(); err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	current, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	if !s.authz.CanMutateEntry(ctx, current, actor) {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	}
	if err := patch.ValidateFor(current.Kind()); err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.entries.Update(ctx, entryID, patch)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	s.pages.Invalidate(updated.TripID)
	return updated, nil
}

// ToggleCompletion sets the completion flag of a PLAN. Any authenticated
// collaborator may do this; the creator/owner rule does not apply.
func (s *EntryService) ToggleCompletion(ctx context.Context, entryID uuid.UUID, completed bool) (_ domain.Entry, err error) {
	const op = "service.EntryService.ToggleCompletion"
	defer func() { observe("toggle", err) }()

	if _, err := requireActor(ctx, op); err != nil {
		return domain.Entry{}, err
	}

	current, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	if current.Kind() != domain.KindPlan {
		return domain.Entry{}, fmt.Errorf("%s: %w: only PLAN entries can be completed", op, domain.ErrValidation)
	}

	updated, err := s.entries.SetCompleted(ctx, entryID, completed)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%s: %w", op, err)
	}
	s.pages.Invalidate(updated.TripID)
	return updated, nil
}

// Delete removes an entry. For a PHOTO the stored asset is removed first;
// if that fails the failure is logged and counted and the row is deleted
// anyway.
func (s *EntryService) Delete(ctx context.Context, in DeleteEntryInput) (err error) {
	const op = "service.EntryService.Delete"
	defer func() { observe("delete", err) }()

	actor, err := requireActor(ctx, op)
	if err != nil {
		return err
	}
	kind, err := domain.ParseKind(string(in.Kind))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if kind == domain.KindPhoto && strings.TrimSpace(in.PhotoPath) == "" {
		return fmt.Errorf("%s: %w: photo_path is required for PHOTO entries", op, domain.ErrValidation)
	}

	current, err := s.entries.GetByID(ctx, in.EntryID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	// Refuse strangers before telling them anything about the entry.
	if !s.authz.CanMutateEntry(ctx, current, actor) {
		return fmt.Errorf("%s: %w", op, domain.ErrForbidden)
	}
	if current.Kind() != kind {
		return fmt.Errorf("%s: %w: entry is %s, not %s", op, domain.ErrValidation, current.Kind(), kind)
	}
	if photo, ok := current.Photo(); ok && photo.Path != in.PhotoPath {
		return fmt.Errorf("%s: %w: photo_path does not match the stored asset", op, domain.ErrValidation)
	}

	if photo, ok := current.Photo(); ok {
		if err := s.assets.Remove(ctx, []string{photo.Path}); err != nil {
			assetCleanupFailuresTotal.Inc()
			s.log.WarnContext(ctx, "photo asset removal failed, deleting entry anyway",
				"entry_id", current.ID, "photo_path", photo.Path, "error", err)
		}
	}

	if err := s.entries.Delete(ctx, current.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.pages.Invalidate(current.TripID)

	s.log.InfoContext(ctx, "entry deleted", "entry_id", current.ID, "trip_id", current.TripID, "actor", actor)
	return nil
}

// ListByTrip returns the entries of a trip in timeline order.
// Always returns a non-nil slice so callers can safely range over it.
func (s *EntryService) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error) {
	const op = "service.EntryService.ListByTrip"

	if _, err := requireActor(ctx, op); err != nil {
		return nil, err
	}
	if _, err := s.trips.GetByID(ctx, tripID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries, err := s.entries.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if entries == nil {
		return []domain.Entry{}, nil
	}
	return entries, nil
}

// UploadPhoto stores a photo asset for a trip at <tripId>/<unix-ms>.<ext>.
// The returned path is what a subsequent Create of a PHOTO entry refers to.
func (s *EntryService) UploadPhoto(ctx context.Context, tripID uuid.UUID, filename string, r io.Reader) (UploadedPhoto, error) {
	const op = "service.EntryService.UploadPhoto"

	if _, err := requireActor(ctx, op); err != nil {
		return UploadedPhoto{}, err
	}
	objectPath, err := storage.PhotoPath(tripID, filename, s.now())
	if err != nil {
		return UploadedPhoto{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.trips.GetByID(ctx, tripID); err != nil {
		return UploadedPhoto{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.assets.Upload(ctx, objectPath, r); err != nil {
		return UploadedPhoto{}, fmt.Errorf("%s: %w", op, err)
	}
	return UploadedPhoto{Path: objectPath, URL: s.assets.PublicURL(objectPath)}, nil
}
