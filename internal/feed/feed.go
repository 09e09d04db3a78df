// Package feed carries row-level changes of timeline entries from the
// database to every client watching a trip.
//
// Server side, PGNotifier LISTENs for trigger notifications and publishes
// normalized events into a Hub, which fans them out per trip. Client side,
// a Listener keeps a Source subscription alive and hands every event to
// the caller.
package feed

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Channel is the Postgres NOTIFY channel the timeline_entries trigger
// publishes on.
const Channel = "timeline_entries_changes"

var (
	// ErrSlowSubscriber ends a stream whose consumer fell behind the hub.
	ErrSlowSubscriber = errors.New("feed: subscriber too slow")

	// ErrStale is returned by Listener.Run once resubscription gave up. The
	// local view may miss changes from then on.
	ErrStale = errors.New("feed: subscription lost, view is stale")

	// ErrClosed ends streams of a closed hub.
	ErrClosed = errors.New("feed: closed")
)

// Source opens change streams filtered to one trip.
type Source interface {
	Subscribe(ctx context.Context, tripID uuid.UUID) (Stream, error)
}

// Stream delivers the changes of one subscription. Events is closed when the
// stream ends; Err then reports why (nil after Close).
type Stream interface {
	Events() <-chan domain.ChangeEvent
	Err() error
	Close()
}
