// Package handler implements the HTTP handlers for the Trip Timeline API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (trip.go, entry.go, feed.go, etc.) but share the same Server struct
// so they can access its dependencies.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/feed"
	"github.com/pkordes/trip-timeline/backend/internal/service"
)

// TripServicer defines the trip operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without touching the database or service layer.
type TripServicer interface {
	Create(ctx context.Context, in service.TripInput) (domain.Trip, error)
	Page(ctx context.Context, shareToken string) (domain.TripPage, error)
	ListOwned(ctx context.Context, p domain.PaginationParams) (domain.TripList, error)
	Update(ctx context.Context, id uuid.UUID, in service.TripInput) (domain.Trip, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EntryServicer defines the entry operations the handlers depend on.
type EntryServicer interface {
	Create(ctx context.Context, in service.CreateEntryInput) (domain.Entry, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.EntryPatch) (domain.Entry, error)
	ToggleCompletion(ctx context.Context, id uuid.UUID, completed bool) (domain.Entry, error)
	Delete(ctx context.Context, in service.DeleteEntryInput) error
	ListByTrip(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error)
	UploadPhoto(ctx context.Context, tripID uuid.UUID, filename string, r io.Reader) (service.UploadedPhoto, error)
}

// ExportServicer defines the export operation the handler depends on.
type ExportServicer interface {
	Export(ctx context.Context, tripID uuid.UUID) ([]domain.ExportRow, error)
}

// Server holds the dependencies of every API handler.
type Server struct {
	trips   TripServicer
	entries EntryServicer
	export  ExportServicer
	feed    feed.Source
	log     *slog.Logger

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewServer constructs the Server with all its dependencies.
func NewServer(trips TripServicer, entries EntryServicer, export ExportServicer, src feed.Source, log *slog.Logger) *Server {
	return &Server{
		trips:   trips,
		entries: entries,
		export:  export,
		feed:    src,
		log:     log.With("component", "handler"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Origins are enforced by the CORS layer and the bearer token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: 30 * time.Second,
		writeTimeout: 10 * time.Second,
	}
}

// Routes returns the API routes, ready to be mounted under a prefix.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)

	r.Route("/trips", func(r chi.Router) {
		r.Post("/", s.CreateTrip)
		r.Get("/", s.ListTrips)
		r.Route("/{tripId}", func(r chi.Router) {
			r.Put("/", s.UpdateTrip)
			r.Delete("/", s.DeleteTrip)
			r.Get("/entries", s.ListEntries)
			r.Post("/entries", s.CreateEntry)
			r.Post("/photos", s.UploadPhoto)
			r.Get("/export", s.GetExport)
			r.Get("/feed", s.ServeFeed)
		})
	})
	r.Get("/shared/{shareToken}", s.GetSharedTrip)

	r.Route("/entries/{entryId}", func(r chi.Router) {
		r.Patch("/", s.UpdateEntry)
		r.Put("/completion", s.SetCompletion)
		r.Delete("/", s.DeleteEntry)
	})
	return r
}
