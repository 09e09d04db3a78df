package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Hub fans change events out to per-trip subscribers. Publish never blocks:
// a subscriber whose buffer is full is dropped with ErrSlowSubscriber and is
// expected to resubscribe and reseed.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*hubStream]struct{}
	buffer int
	closed bool
	log    *slog.Logger
}

// NewHub constructs a Hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int, log *slog.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*hubStream]struct{}),
		buffer: buffer,
		log:    log.With("component", "feed.hub"),
	}
}

var _ Source = (*Hub)(nil)

// Subscribe opens a stream of the changes to tripID. The stream ends when
// ctx is cancelled, Close is called, the hub closes or the consumer falls
// behind.
func (h *Hub) Subscribe(ctx context.Context, tripID uuid.UUID) (Stream, error) {
	s := &hubStream{
		hub:    h,
		tripID: tripID,
		events: make(chan domain.ChangeEvent, h.buffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	set, ok := h.subs[tripID]
	if !ok {
		set = make(map[*hubStream]struct{})
		h.subs[tripID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	feedSubscribers.Inc()

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

// Publish delivers ev to every subscriber of its trip.
func (h *Hub) Publish(ev domain.ChangeEvent) {
	feedEventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[ev.TripID] {
		select {
		case s.events <- ev:
		default:
			feedSlowDropsTotal.Inc()
			h.log.Warn("dropping slow subscriber", "trip_id", ev.TripID)
			h.removeLocked(s, ErrSlowSubscriber)
		}
	}
}

// Subscribers returns the number of open subscriptions for tripID.
func (h *Hub) Subscribers(tripID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[tripID])
}

// Close ends every open stream with ErrClosed. Later Subscribe calls fail.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, set := range h.subs {
		for s := range set {
			h.removeLocked(s, ErrClosed)
		}
	}
}

// removeLocked detaches s and closes its channel. Callers hold h.mu.
func (h *Hub) removeLocked(s *hubStream, err error) {
	set, ok := h.subs[s.tripID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.tripID)
	}
	s.err = err
	close(s.events)
	close(s.done)
	feedSubscribers.Dec()
}

type hubStream struct {
	hub    *Hub
	tripID uuid.UUID
	events chan domain.ChangeEvent
	done   chan struct{}
	err    error // guarded by hub.mu
}

func (s *hubStream) Events() <-chan domain.ChangeEvent { return s.events }

func (s *hubStream) Err() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.err
}

func (s *hubStream) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s, nil)
}
