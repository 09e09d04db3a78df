package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the immutable discriminant of a timeline entry.
type Kind string

const (
	KindPlan  Kind = "PLAN"
	KindPhoto Kind = "PHOTO"
)

// ParseKind validates a raw discriminant value.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPlan, KindPhoto:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown entry kind %q", ErrValidation, s)
	}
}

// Body is the variant-specific part of an entry. It is sealed: Plan and
// Photo are the only implementations.
type Body interface {
	Kind() Kind
	validate() error
}

// Plan is a scheduled item. Completed defaults to false.
type Plan struct {
	Title     string
	Memo      string
	LinkURL   string
	Completed bool
}

// Kind implements Body.
func (Plan) Kind() Kind { return KindPlan }

func (p Plan) validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

// Photo is a captured memory backed by an asset in object storage.
// Caption is persisted in the memo column.
type Photo struct {
	Path    string
	Caption string
}

// Kind implements Body.
func (Photo) Kind() Kind { return KindPhoto }

func (p Photo) validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("%w: photo_path is required", ErrValidation)
	}
	return nil
}

// Entry is a single PLAN or PHOTO on a trip's timeline.
// Entries of one trip are totally ordered by (Time, ID).
type Entry struct {
	ID        uuid.UUID
	TripID    uuid.UUID
	Time      time.Time
	CreatedBy uuid.UUID
	CreatedAt time.Time
	Body      Body
}

// Kind returns the discriminant of the entry's body, or "" when the body is unset.
func (e Entry) Kind() Kind {
	if e.Body == nil {
		return ""
	}
	return e.Body.Kind()
}

// Plan returns the plan body and true when the entry is a PLAN.
func (e Entry) Plan() (Plan, bool) {
	p, ok := e.Body.(Plan)
	return p, ok
}

// Photo returns the photo body and true when the entry is a PHOTO.
func (e Entry) Photo() (Photo, bool) {
	p, ok := e.Body.(Photo)
	return p, ok
}

// Validate checks the fields a new entry must carry: a trip, a time and the
// required fields of its variant.
func (e Entry) Validate() error {
	if e.TripID == uuid.Nil {
		return fmt.Errorf("%w: trip_id is required", ErrValidation)
	}
	if e.Time.IsZero() {
		return fmt.Errorf("%w: time is required", ErrValidation)
	}
	if e.Body == nil {
		return fmt.Errorf("%w: kind is required", ErrValidation)
	}
	return e.Body.validate()
}

// Before reports whether e sorts before other in timeline order.
// Ties on Time are broken by ID so the order is total and deterministic.
func (e Entry) Before(other Entry) bool {
	if !e.Time.Equal(other.Time) {
		return e.Time.Before(other.Time)
	}
	return bytes.Compare(e.ID[:], other.ID[:]) < 0
}

// EntryRow is the flat, nullable shape of a timeline_entries row. It is the
// JSON representation used by the HTTP API, by pg_notify payloads and by the
// websocket feed.
type EntryRow struct {
	ID          uuid.UUID `json:"id"`
	TripID      uuid.UUID `json:"trip_id"`
	Kind        Kind      `json:"kind"`
	Title       *string   `json:"title"`
	Time        time.Time `json:"time"`
	Memo        *string   `json:"memo"`
	LinkURL     *string   `json:"link_url"`
	IsCompleted *bool     `json:"is_completed"`
	PhotoPath   *string   `json:"photo_path"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Row flattens the entry into its row shape.
func (e Entry) Row() EntryRow {
	r := EntryRow{
		ID:        e.ID,
		TripID:    e.TripID,
		Kind:      e.Kind(),
		Time:      e.Time,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
	}
	switch b := e.Body.(type) {
	case Plan:
		done := b.Completed
		r.Title = &b.Title
		r.Memo = optional(b.Memo)
		r.LinkURL = optional(b.LinkURL)
		r.IsCompleted = &done
	case Photo:
		r.PhotoPath = &b.Path
		r.Memo = optional(b.Caption)
	}
	return r
}

// Entry converts a row back into the tagged variant. The discriminant decides
// which columns are read; columns belonging to the other variant are ignored.
func (r EntryRow) Entry() (Entry, error) {
	e := Entry{
		ID:        r.ID,
		TripID:    r.TripID,
		Time:      r.Time,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
	kind, err := ParseKind(string(r.Kind))
	if err != nil {
		return Entry{}, err
	}
	switch kind {
	case KindPlan:
		p := Plan{Title: deref(r.Title), Memo: deref(r.Memo), LinkURL: deref(r.LinkURL)}
		if r.IsCompleted != nil {
			p.Completed = *r.IsCompleted
		}
		e.Body = p
	case KindPhoto:
		e.Body = Photo{Path: deref(r.PhotoPath), Caption: deref(r.Memo)}
	}
	if err := e.Body.validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// MarshalJSON encodes the entry as an EntryRow.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Row())
}

// UnmarshalJSON decodes an EntryRow and validates the discriminant.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var r EntryRow
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	decoded, err := r.Entry()
	if err != nil {
		return err
	}
	*e = decoded
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
