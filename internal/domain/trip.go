// Package domain contains the core data types for the trip timeline.
// This package depends only on uuid and is imported by every other
// internal package (repo, service, handler, feed, timeline).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trip is a shareable collection of timeline entries with exactly one owner.
// ShareToken is issued once at creation and never changes; it is the handle
// used in access URLs.
type Trip struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	Title      string     `json:"title"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	ShareToken string     `json:"share_token"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsOwner reports whether actorID owns the trip.
func (t Trip) IsOwner(actorID uuid.UUID) bool {
	return actorID != uuid.Nil && t.OwnerID == actorID
}

// TripPage is the rendered view of a shared trip: the trip itself plus its
// entries in timeline order. It is what the page cache stores.
type TripPage struct {
	Trip    Trip    `json:"trip"`
	Entries []Entry `json:"entries"`
}
