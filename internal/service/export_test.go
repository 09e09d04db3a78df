package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/service"
)

func TestExportService_Export(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	trip := domain.Trip{ID: uuid.New(), Title: "Porto", StartDate: &start}
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	entries := []domain.Entry{
		{ID: uuid.New(), TripID: trip.ID, Time: at, Body: domain.Plan{Title: "Livraria", LinkURL: "https://x", Completed: true}},
		{ID: uuid.New(), TripID: trip.ID, Time: at.Add(time.Hour), Body: domain.Photo{Path: "p/1.jpg", Caption: "books"}},
	}
	svc := service.NewExportService(
		echoTripRepo(trip),
		&mockEntryRepo{listByTrip: func(context.Context, uuid.UUID) ([]domain.Entry, error) { return entries, nil }},
		&mockAssets{},
	)

	rows, err := svc.Export(asActor(uuid.New()), trip.ID)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Porto", rows[0].TripTitle)
	assert.Equal(t, "2025-06-01", rows[0].TripStartDate)
	assert.Equal(t, "", rows[0].TripEndDate)
	assert.Equal(t, domain.KindPlan, rows[0].Kind)
	assert.Equal(t, "Livraria", rows[0].Title)
	assert.True(t, rows[0].Completed)
	assert.Equal(t, domain.KindPhoto, rows[1].Kind)
	assert.Equal(t, "books", rows[1].Memo)
	assert.Equal(t, "http://assets.test/p/1.jpg", rows[1].PhotoURL)
}

func TestExportService_Export_EmptyTripYieldsOneRow(t *testing.T) {
	trip := domain.Trip{ID: uuid.New(), Title: "Empty"}
	svc := service.NewExportService(
		echoTripRepo(trip),
		&mockEntryRepo{listByTrip: func(context.Context, uuid.UUID) ([]domain.Entry, error) { return nil, nil }},
		&mockAssets{},
	)

	rows, err := svc.Export(asActor(uuid.New()), trip.ID)

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Empty", rows[0].TripTitle)
	assert.Empty(t, rows[0].EntryID)
}
