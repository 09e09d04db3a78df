// Package timeline keeps a client-side, always-ordered projection of one
// trip's entries and reconciles it with optimistic writes and feed events.
package timeline

import (
	"bytes"
	"slices"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Store is an ordered set of entries keyed by ID, sorted by (Time, ID).
// It is not safe for concurrent use; a Session confines it to one goroutine.
type Store struct {
	order []domain.Entry
	byID  map[uuid.UUID]domain.Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[uuid.UUID]domain.Entry)}
}

// Seed replaces the whole set. Duplicate IDs keep the last occurrence.
func (s *Store) Seed(entries []domain.Entry) {
	s.byID = make(map[uuid.UUID]domain.Entry, len(entries))
	for _, e := range entries {
		s.byID[e.ID] = e
	}
	s.order = make([]domain.Entry, 0, len(s.byID))
	for _, e := range s.byID {
		s.order = append(s.order, e)
	}
	slices.SortFunc(s.order, compareEntries)
}

// ApplyInsert adds e. An entry with the same ID is replaced instead, so a
// duplicate insert never yields a second row.
func (s *Store) ApplyInsert(e domain.Entry) {
	s.upsert(e)
}

// ApplyUpdate replaces the entry with e's ID, inserting it when absent.
func (s *Store) ApplyUpdate(e domain.Entry) {
	s.upsert(e)
}

// ApplyDelete removes the entry with id. Unknown IDs are ignored.
func (s *Store) ApplyDelete(id uuid.UUID) {
	old, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if i, found := slices.BinarySearchFunc(s.order, old, compareEntries); found {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// Get returns the entry with id.
func (s *Store) Get(id uuid.UUID) (domain.Entry, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Entries returns a copy of the set in timeline order.
func (s *Store) Entries() []domain.Entry {
	return slices.Clone(s.order)
}

// Len returns the number of entries held.
func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) upsert(e domain.Entry) {
	s.ApplyDelete(e.ID)
	s.byID[e.ID] = e
	i, _ := slices.BinarySearchFunc(s.order, e, compareEntries)
	s.order = slices.Insert(s.order, i, e)
}

func compareEntries(a, b domain.Entry) int {
	if c := a.Time.Compare(b.Time); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}
