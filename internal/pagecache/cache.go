// Package pagecache keeps rendered shared-trip pages in memory.
package pagecache

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Cache is a size-bounded LRU of trip pages keyed by trip id. It is safe for
// concurrent use.
type Cache struct {
	pages *lru.Cache[uuid.UUID, domain.TripPage]
}

// New returns a cache holding at most size pages.
func New(size int) (*Cache, error) {
	c, err := lru.New[uuid.UUID, domain.TripPage](size)
	if err != nil {
		return nil, fmt.Errorf("pagecache.New: %w", err)
	}
	return &Cache{pages: c}, nil
}

// Get returns the cached page of a trip.
func (c *Cache) Get(tripID uuid.UUID) (domain.TripPage, bool) {
	return c.pages.Get(tripID)
}

// Put stores a page. The entries slice is copied so later changes by the
// caller do not leak into the cache.
func (c *Cache) Put(page domain.TripPage) {
	page.Entries = append([]domain.Entry(nil), page.Entries...)
	c.pages.Add(page.Trip.ID, page)
}

// Invalidate drops the page of a trip. Unknown ids are ignored.
func (c *Cache) Invalidate(tripID uuid.UUID) {
	c.pages.Remove(tripID)
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	return c.pages.Len()
}
