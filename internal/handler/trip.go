package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/service"
)

// TripRequest is the body of POST /trips and PUT /trips/{tripId}.
type TripRequest struct {
	Title     string              `json:"title"`
	StartDate *openapi_types.Date `json:"start_date,omitempty"`
	EndDate   *openapi_types.Date `json:"end_date,omitempty"`
}

// Trip is the API representation of a trip.
type Trip struct {
	ID         uuid.UUID           `json:"id"`
	OwnerID    uuid.UUID           `json:"owner_id"`
	Title      string              `json:"title"`
	StartDate  *openapi_types.Date `json:"start_date,omitempty"`
	EndDate    *openapi_types.Date `json:"end_date,omitempty"`
	ShareToken string              `json:"share_token"`
	CreatedAt  time.Time           `json:"created_at"`
}

// TripPage is the body of GET /shared/{shareToken}.
type TripPage struct {
	Trip    Trip           `json:"trip"`
	Entries []domain.Entry `json:"entries"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// TripList is the body of GET /trips.
type TripList struct {
	Data       []Trip     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	in, err := decodeTripRequest(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	created, err := s.trips.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tripToResponse(created))
}

// ListTrips handles GET /trips.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	params, err := paginationParams(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	list, err := s.trips.ListOwned(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data := make([]Trip, len(list.Trips))
	for i, t := range list.Trips {
		data[i] = tripToResponse(t)
	}
	writeJSON(w, http.StatusOK, TripList{
		Data: data,
		Pagination: Pagination{
			Page:  list.Page.Page,
			Limit: list.Page.Limit,
			Total: int(list.Total),
		},
	})
}

// GetSharedTrip handles GET /shared/{shareToken}. The token is the
// capability; no actor is required.
func (s *Server) GetSharedTrip(w http.ResponseWriter, r *http.Request) {
	page, err := s.trips.Page(r.Context(), chi.URLParam(r, "shareToken"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries := page.Entries
	if entries == nil {
		entries = []domain.Entry{}
	}
	writeJSON(w, http.StatusOK, TripPage{Trip: tripToResponse(page.Trip), Entries: entries})
}

// UpdateTrip handles PUT /trips/{tripId}.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "tripId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	in, err := decodeTripRequest(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	updated, err := s.trips.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tripToResponse(updated))
}

// DeleteTrip handles DELETE /trips/{tripId}.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "tripId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	if err := s.trips.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- mapping helpers --------------------------------------------------------

// decodeTripRequest reads a TripRequest body into a service.TripInput.
func decodeTripRequest(r *http.Request) (service.TripInput, error) {
	var body TripRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.TripInput{}, errors.New("request body is required")
	}
	in := service.TripInput{Title: body.Title}
	if body.StartDate != nil {
		sd := body.StartDate.Time
		in.StartDate = &sd
	}
	if body.EndDate != nil {
		ed := body.EndDate.Time
		in.EndDate = &ed
	}
	return in, nil
}

// tripToResponse converts a domain.Trip into its API representation.
func tripToResponse(t domain.Trip) Trip {
	resp := Trip{
		ID:         t.ID,
		OwnerID:    t.OwnerID,
		Title:      t.Title,
		ShareToken: t.ShareToken,
		CreatedAt:  t.CreatedAt,
	}
	if t.StartDate != nil {
		sd := openapi_types.Date{Time: *t.StartDate}
		resp.StartDate = &sd
	}
	if t.EndDate != nil {
		ed := openapi_types.Date{Time: *t.EndDate}
		resp.EndDate = &ed
	}
	return resp
}
