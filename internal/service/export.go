package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/repo"
	"github.com/pkordes/trip-timeline/backend/internal/storage"
)

// ExportService flattens a trip timeline into export rows.
type ExportService struct {
	trips   repo.TripRepo
	entries repo.EntryRepo
	assets  storage.ObjectStorage
}

// NewExportService constructs an ExportService backed by the provided repos.
func NewExportService(trips repo.TripRepo, entries repo.EntryRepo, assets storage.ObjectStorage) *ExportService {
	return &ExportService{trips: trips, entries: entries, assets: assets}
}

// Export returns one ExportRow per entry of the trip, in timeline order.
// A trip with no entries contributes one row with empty entry fields.
func (s *ExportService) Export(ctx context.Context, tripID uuid.UUID) ([]domain.ExportRow, error) {
	const op = "service.ExportService.Export"

	if _, err := requireActor(ctx, op); err != nil {
		return nil, err
	}
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	entries, err := s.entries.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	base := domain.ExportRow{
		TripID:        trip.ID.String(),
		TripTitle:     trip.Title,
		TripStartDate: formatDate(trip.StartDate),
		TripEndDate:   formatDate(trip.EndDate),
	}
	if len(entries) == 0 {
		return []domain.ExportRow{base}, nil
	}

	rows := make([]domain.ExportRow, 0, len(entries))
	for _, e := range entries {
		row := base
		at := e.Time
		row.EntryID = e.ID.String()
		row.Kind = e.Kind()
		row.Time = &at
		switch b := e.Body.(type) {
		case domain.Plan:
			row.Title = b.Title
			row.Memo = b.Memo
			row.LinkURL = b.LinkURL
			row.Completed = b.Completed
		case domain.Photo:
			row.Memo = b.Caption
			row.PhotoURL = s.assets.PublicURL(b.Path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
