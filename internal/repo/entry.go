package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// EntryRepo defines the persistence operations for timeline entries.
type EntryRepo interface {
	// Create inserts a new entry. id and created_at are assigned by the database.
	// Returns domain.ErrNotFound if the trip does not exist.
	Create(ctx context.Context, e domain.Entry) (domain.Entry, error)

	// GetByID retrieves a single entry. Returns domain.ErrNotFound if absent.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Entry, error)

	// ListByTrip returns every entry of the trip ordered by (time, id).
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error)

	// ListPhotoPaths returns the asset paths of all PHOTO entries of a trip.
	ListPhotoPaths(ctx context.Context, tripID uuid.UUID) ([]string, error)

	// Update writes only the columns the patch supplies and returns the row
	// as stored afterwards.
	Update(ctx context.Context, id uuid.UUID, patch domain.EntryPatch) (domain.Entry, error)

	// SetCompleted sets is_completed on a PLAN entry.
	// Returns domain.ErrNotFound if no PLAN with that id exists.
	SetCompleted(ctx context.Context, id uuid.UUID, completed bool) (domain.Entry, error)

	// Delete removes an entry. Returns domain.ErrNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error
}

const entriesTable = "timeline_entries"

var entryColumns = []string{
	"id", "trip_id", "kind", "title", "time", "memo", "link_url",
	"is_completed", "photo_path", "created_by", "created_at",
}

// psql builds Postgres statements with $n placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type pgEntryRepo struct {
	db db
}

// NewEntryRepo constructs an EntryRepo backed by the provided db connection.
func NewEntryRepo(db db) EntryRepo {
	return &pgEntryRepo{db: db}
}

func (r *pgEntryRepo) Create(ctx context.Context, e domain.Entry) (domain.Entry, error) {
	row := e.Row()

	sql, args, err := psql.Insert(entriesTable).
		Columns("trip_id", "kind", "title", "time", "memo", "link_url", "is_completed", "photo_path", "created_by").
		Values(row.TripID, string(row.Kind), row.Title, row.Time, row.Memo, row.LinkURL, row.IsCompleted, row.PhotoPath, row.CreatedBy).
		Suffix(returningEntry()).
		ToSql()
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.Create: build: %w", err)
	}

	created, err := scanEntry(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.Create: %w", mapError(err))
	}
	return created, nil
}

func (r *pgEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Entry, error) {
	sql, args, err := psql.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.GetByID: build: %w", err)
	}

	e, err := scanEntry(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.GetByID: %w", mapError(err))
	}
	return e, nil
}

func (r *pgEntryRepo) ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error) {
	sql, args, err := psql.Select(entryColumns...).
		From(entriesTable).
		Where(squirrel.Eq{"trip_id": tripID}).
		OrderBy("time ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo.EntryRepo.ListByTrip: build: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("repo.EntryRepo.ListByTrip: %w", mapError(err))
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.EntryRepo.ListByTrip: scan: %w", mapError(err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.EntryRepo.ListByTrip: rows: %w", mapError(err))
	}
	return entries, nil
}

func (r *pgEntryRepo) ListPhotoPaths(ctx context.Context, tripID uuid.UUID) ([]string, error) {
	sql, args, err := psql.Select("photo_path").
		From(entriesTable).
		Where(squirrel.Eq{"trip_id": tripID, "kind": string(domain.KindPhoto)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo.EntryRepo.ListPhotoPaths: build: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("repo.EntryRepo.ListPhotoPaths: %w", mapError(err))
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p *string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("repo.EntryRepo.ListPhotoPaths: scan: %w", mapError(err))
		}
		if p != nil && *p != "" {
			paths = append(paths, *p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.EntryRepo.ListPhotoPaths: rows: %w", mapError(err))
	}
	return paths, nil
}

// Update sets only the supplied columns, so two collaborators editing
// different fields of the same entry do not overwrite each other.
func (r *pgEntryRepo) Update(ctx context.Context, id uuid.UUID, patch domain.EntryPatch) (domain.Entry, error) {
	set := patchColumns(patch)
	if len(set) == 0 {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.Update: %w: nothing to update", domain.ErrValidation)
	}

	sql, args, err := psql.Update(entriesTable).
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		Suffix(returningEntry()).
		ToSql()
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.Update: build: %w", err)
	}

	e, err := scanEntry(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.Update: %w", mapError(err))
	}
	return e, nil
}

func (r *pgEntryRepo) SetCompleted(ctx context.Context, id uuid.UUID, completed bool) (domain.Entry, error) {
	sql, args, err := psql.Update(entriesTable).
		Set("is_completed", completed).
		Where(squirrel.Eq{"id": id, "kind": string(domain.KindPlan)}).
		Suffix(returningEntry()).
		ToSql()
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.SetCompleted: build: %w", err)
	}

	e, err := scanEntry(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.EntryRepo.SetCompleted: %w", mapError(err))
	}
	return e, nil
}

func (r *pgEntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	sql, args, err := psql.Delete(entriesTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("repo.EntryRepo.Delete: build: %w", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("repo.EntryRepo.Delete: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.EntryRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// patchColumns maps the supplied patch fields onto their columns. Memo holds
// the photo caption for PHOTO entries, so it maps to the same column for both.
func patchColumns(p domain.EntryPatch) map[string]any {
	set := map[string]any{}
	if p.Time != nil {
		set["time"] = *p.Time
	}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Memo != nil {
		set["memo"] = *p.Memo
	}
	if p.LinkURL != nil {
		set["link_url"] = *p.LinkURL
	}
	return set
}

func returningEntry() string {
	return "RETURNING " + strings.Join(entryColumns, ", ")
}

// scanEntry reads one row in entryColumns order and converts it into the
// tagged variant.
func scanEntry(s scanner) (domain.Entry, error) {
	var (
		row  domain.EntryRow
		kind string
	)
	err := s.Scan(
		&row.ID, &row.TripID, &kind, &row.Title, &row.Time, &row.Memo, &row.LinkURL,
		&row.IsCompleted, &row.PhotoPath, &row.CreatedBy, &row.CreatedAt,
	)
	if err != nil {
		return domain.Entry{}, err
	}
	row.Kind = domain.Kind(kind)
	return row.Entry()
}
