package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/service"
)

// CreateEntryRequest is the body of POST /trips/{tripId}/entries.
// Which of the optional fields apply depends on Kind.
type CreateEntryRequest struct {
	Kind      string     `json:"kind"`
	Time      *time.Time `json:"time"`
	Title     string     `json:"title,omitempty"`
	Memo      string     `json:"memo,omitempty"`
	LinkURL   string     `json:"link_url,omitempty"`
	PhotoPath string     `json:"photo_path,omitempty"`
}

// UpdateEntryRequest is the body of PATCH /entries/{entryId}. Absent fields
// keep their stored value.
type UpdateEntryRequest struct {
	Time    *time.Time `json:"time,omitempty"`
	Title   *string    `json:"title,omitempty"`
	Memo    *string    `json:"memo,omitempty"`
	LinkURL *string    `json:"link_url,omitempty"`

	// Rejected when present.
	Kind        *string `json:"kind,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// CompletionRequest is the body of PUT /entries/{entryId}/completion.
type CompletionRequest struct {
	Completed *bool `json:"completed"`
}

// ListEntries handles GET /trips/{tripId}/entries.
func (s *Server) ListEntries(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	entries, err := s.entries.ListByTrip(r.Context(), tripID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// CreateEntry handles POST /trips/{tripId}/entries.
func (s *Server) CreateEntry(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("request body is required"))
		return
	}
	in, err := requestToEntry(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	in.TripID = tripID

	created, err := s.entries.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateEntry handles PATCH /entries/{entryId}.
func (s *Server) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entryId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("request body is required"))
		return
	}
	switch {
	case body.Kind != nil:
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("kind cannot be changed"))
		return
	case body.IsCompleted != nil:
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("use PUT /entries/{entryId}/completion to change is_completed"))
		return
	}

	updated, err := s.entries.Update(r.Context(), id, domain.EntryPatch{
		Time:    body.Time,
		Title:   body.Title,
		Memo:    body.Memo,
		LinkURL: body.LinkURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// SetCompletion handles PUT /entries/{entryId}/completion.
func (s *Server) SetCompletion(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entryId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Completed == nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("completed is required"))
		return
	}

	updated, err := s.entries.ToggleCompletion(r.Context(), id, *body.Completed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteEntry handles DELETE /entries/{entryId}?kind=PLAN|PHOTO&photo_path=.
func (s *Server) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "entryId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var (
		kind      string
		photoPath *string
	)
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "kind", q, &kind); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("kind is required"))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "photo_path", q, &photoPath); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("invalid format for parameter photo_path"))
		return
	}

	in := service.DeleteEntryInput{EntryID: id, Kind: domain.Kind(kind)}
	if photoPath != nil {
		in.PhotoPath = *photoPath
	}
	if err := s.entries.Delete(r.Context(), in); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadPhoto handles POST /trips/{tripId}/photos with the asset in the
// multipart field "photo".
func (s *Server) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathUUID(r, "tripId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("payload_too_large", "request body too large"))
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, requestBody("multipart field photo is required"))
		return
	}
	defer file.Close()

	uploaded, err := s.entries.UploadPhoto(r.Context(), tripID, header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploaded)
}

// requestToEntry converts a create body into service input. The kind
// decides which fields are read; fields of the other variant are rejected.
func requestToEntry(body CreateEntryRequest) (service.CreateEntryInput, error) {
	kind, err := domain.ParseKind(body.Kind)
	if err != nil {
		return service.CreateEntryInput{}, err
	}
	var in service.CreateEntryInput
	if body.Time != nil {
		in.Time = *body.Time
	}
	switch kind {
	case domain.KindPlan:
		if body.PhotoPath != "" {
			return in, fmt.Errorf("%w: photo_path does not apply to PLAN entries", domain.ErrValidation)
		}
		in.Body = domain.Plan{Title: body.Title, Memo: body.Memo, LinkURL: body.LinkURL}
	case domain.KindPhoto:
		if body.Title != "" || body.LinkURL != "" {
			return in, fmt.Errorf("%w: title and link_url do not apply to PHOTO entries", domain.ErrValidation)
		}
		in.Body = domain.Photo{Path: body.PhotoPath, Caption: body.Memo}
	}
	return in, nil
}
