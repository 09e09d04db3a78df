package domain

import "github.com/google/uuid"

// ChangeKind is the type of a row-level change observed on timeline_entries.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is a normalized change notification for one entry.
// Entry is set for inserts and updates; deletes only carry EntryID.
type ChangeEvent struct {
	Kind    ChangeKind
	TripID  uuid.UUID
	EntryID uuid.UUID
	Entry   *Entry
}

// InsertEvent builds an insert event for e.
func InsertEvent(e Entry) ChangeEvent {
	return ChangeEvent{Kind: ChangeInsert, TripID: e.TripID, EntryID: e.ID, Entry: &e}
}

// UpdateEvent builds an update event for e.
func UpdateEvent(e Entry) ChangeEvent {
	return ChangeEvent{Kind: ChangeUpdate, TripID: e.TripID, EntryID: e.ID, Entry: &e}
}

// DeleteEvent builds a delete event for the entry id on trip tripID.
func DeleteEvent(tripID, entryID uuid.UUID) ChangeEvent {
	return ChangeEvent{Kind: ChangeDelete, TripID: tripID, EntryID: entryID}
}
