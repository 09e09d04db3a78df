package domain

import "time"

// ExportRow is one entry of a trip timeline export: a flat, denormalized
// view with the trip fields repeated on every row. A trip with no entries
// yields one row with zero values for all entry fields.
type ExportRow struct {
	// Trip fields, repeated for every entry.
	TripID        string `json:"trip_id"`
	TripTitle     string `json:"trip_title"`
	TripStartDate string `json:"trip_start_date,omitempty"` // "2006-01-02", empty when unset
	TripEndDate   string `json:"trip_end_date,omitempty"`

	// Entry fields.
	EntryID   string     `json:"entry_id,omitempty"`
	Kind      Kind       `json:"kind,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
	Title     string     `json:"title,omitempty"`
	Memo      string     `json:"memo,omitempty"` // plan memo or photo caption
	LinkURL   string     `json:"link_url,omitempty"`
	Completed bool       `json:"is_completed,omitempty"`
	PhotoURL  string     `json:"photo_url,omitempty"`
}
