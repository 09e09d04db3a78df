package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/feed"
)

// ErrSessionClosed is returned by Session methods after Close.
var ErrSessionClosed = errors.New("timeline: session closed")

// Mutator performs entry writes against the authoritative store.
type Mutator interface {
	CreateEntry(ctx context.Context, tripID uuid.UUID, at time.Time, body domain.Body) (domain.Entry, error)
	UpdateEntry(ctx context.Context, entryID uuid.UUID, patch domain.EntryPatch) (domain.Entry, error)
	ToggleCompletion(ctx context.Context, entryID uuid.UUID, completed bool) (domain.Entry, error)
	DeleteEntry(ctx context.Context, entryID uuid.UUID, kind domain.Kind, photoPath string) error
}

// Loader fetches the authoritative entries of a trip.
type Loader interface {
	LoadEntries(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error)

func (f LoaderFunc) LoadEntries(ctx context.Context, tripID uuid.UUID) ([]domain.Entry, error) {
	return f(ctx, tripID)
}

// Session is one client's live view of a trip. Feed events, reseeds and the
// phases of local mutations all run as closures on a single loop goroutine,
// so the Reconciler and its Store are never touched concurrently. Network
// calls happen outside the loop.
type Session struct {
	tripID  uuid.UUID
	mut     Mutator
	loader  Loader
	source  feed.Source
	listen  *feed.ListenerSettings
	log     *slog.Logger
	rec     *Reconciler
	ops     chan func(*Reconciler)
	done    chan struct{}
	cancel  context.CancelFunc
	feedErr chan error

	closeOnce sync.Once
	stale     bool // loop only
}

// NewSession builds a session for tripID. Nothing runs until Start.
func NewSession(tripID uuid.UUID, mut Mutator, loader Loader, source feed.Source, settings *feed.ListenerSettings, log *slog.Logger) *Session {
	return &Session{
		tripID:  tripID,
		mut:     mut,
		loader:  loader,
		source:  source,
		listen:  settings,
		log:     log.With("component", "timeline.session", "trip_id", tripID),
		rec:     NewReconciler(NewStore()),
		ops:     make(chan func(*Reconciler)),
		done:    make(chan struct{}),
		feedErr: make(chan error, 1),
	}
}

// Start runs the loop, subscribes to the feed and seeds the store. It
// returns once the first seed landed, or with the error that prevented it.
func (s *Session) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.loop()

	ready := make(chan struct{})
	var readyOnce sync.Once

	l := feed.NewListener(s.source, s.tripID, s.listen, s.log)
	l.OnSubscribed = func(ctx context.Context) error {
		entries, err := s.loader.LoadEntries(ctx, s.tripID)
		if err != nil {
			return fmt.Errorf("timeline.Session: load entries: %w", err)
		}
		s.do(func(r *Reconciler) {
			s.stale = false
			r.Seed(entries)
		})
		readyOnce.Do(func() { close(ready) })
		return nil
	}
	l.OnStale = func(error) {
		s.do(func(*Reconciler) { s.stale = true })
	}

	go func() {
		s.feedErr <- l.Run(runCtx, func(ev domain.ChangeEvent) {
			s.do(func(r *Reconciler) { r.Apply(ev) })
		})
	}()

	select {
	case <-ready:
		return nil
	case err := <-s.feedErr:
		s.feedErr <- err
		s.Close()
		if err == nil {
			err = ErrSessionClosed
		}
		return fmt.Errorf("timeline.Session.Start: %w", err)
	case <-ctx.Done():
		s.Close()
		return ctx.Err()
	}
}

// Wait blocks until the feed ends: nil after Close, an error wrapping
// feed.ErrStale when resubscription gave up. A stale session keeps serving
// its last state and mutations.
func (s *Session) Wait() error {
	err := <-s.feedErr
	s.feedErr <- err
	return err
}

// Close stops the feed and the loop. Mutations in flight still reach the
// server but their results are no longer applied.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		close(s.done)
	})
}

// Subscribe registers fn for every change of the ordered entries. fn runs
// on the session loop, first with the current state, and must not call back
// into the Session.
func (s *Session) Subscribe(fn func([]domain.Entry)) (unsubscribe func(), err error) {
	unsub, ok := call(s, func(r *Reconciler) func() { return r.Subscribe(fn) })
	if !ok {
		return nil, ErrSessionClosed
	}
	return func() { s.do(func(*Reconciler) { unsub() }) }, nil
}

// Entries returns the current ordered entries.
func (s *Session) Entries() ([]domain.Entry, error) {
	entries, ok := call(s, func(r *Reconciler) []domain.Entry { return r.Store().Entries() })
	if !ok {
		return nil, ErrSessionClosed
	}
	return entries, nil
}

// Stale reports whether the feed was lost for good.
func (s *Session) Stale() bool {
	stale, _ := call(s, func(*Reconciler) bool { return s.stale })
	return stale
}

// CreateEntry shows the entry right away under a provisional ID, then swaps
// in the server's copy or removes it again when the write fails.
func (s *Session) CreateEntry(ctx context.Context, at time.Time, body domain.Body) (domain.Entry, error) {
	provisional := domain.Entry{ID: uuid.New(), TripID: s.tripID, Time: at, Body: body}
	if err := provisional.Validate(); err != nil {
		return domain.Entry{}, fmt.Errorf("timeline.Session.CreateEntry: %w", err)
	}
	tok, ok := call(s, func(r *Reconciler) Token { return r.TentativeApply(InsertOp(provisional)) })
	if !ok {
		return domain.Entry{}, ErrSessionClosed
	}

	created, err := s.mut.CreateEntry(ctx, s.tripID, at, body)
	if err != nil {
		s.do(func(r *Reconciler) { r.Rollback(tok) })
		return domain.Entry{}, err
	}
	s.do(func(r *Reconciler) { r.Confirm(tok, &created) })
	return created, nil
}

// UpdateEntry applies patch locally, then on the server.
func (s *Session) UpdateEntry(ctx context.Context, entryID uuid.UUID, patch domain.EntryPatch) (domain.Entry, error) {
	return s.tentativeUpdate(ctx, entryID,
		func(e domain.Entry) domain.Entry { return patch.Apply(e) },
		func(ctx context.Context) (domain.Entry, error) { return s.mut.UpdateEntry(ctx, entryID, patch) })
}

// ToggleCompletion checks or unchecks a PLAN locally, then on the server.
func (s *Session) ToggleCompletion(ctx context.Context, entryID uuid.UUID, completed bool) (domain.Entry, error) {
	return s.tentativeUpdate(ctx, entryID,
		func(e domain.Entry) domain.Entry {
			if p, ok := e.Plan(); ok {
				p.Completed = completed
				e.Body = p
			}
			return e
		},
		func(ctx context.Context) (domain.Entry, error) { return s.mut.ToggleCompletion(ctx, entryID, completed) })
}

// DeleteEntry hides the entry locally, then deletes it on the server. The
// photo path is taken from the held copy when the entry is a PHOTO.
func (s *Session) DeleteEntry(ctx context.Context, entryID uuid.UUID) error {
	type held struct {
		entry domain.Entry
		ok    bool
	}
	h, ok := call(s, func(r *Reconciler) held {
		e, found := r.Store().Get(entryID)
		return held{e, found}
	})
	if !ok {
		return ErrSessionClosed
	}
	if !h.ok {
		return fmt.Errorf("timeline.Session.DeleteEntry: %w", domain.ErrNotFound)
	}
	var photoPath string
	if p, isPhoto := h.entry.Photo(); isPhoto {
		photoPath = p.Path
	}

	tok, ok := call(s, func(r *Reconciler) Token { return r.TentativeApply(DeleteOp(entryID)) })
	if !ok {
		return ErrSessionClosed
	}
	if err := s.mut.DeleteEntry(ctx, entryID, h.entry.Kind(), photoPath); err != nil {
		s.do(func(r *Reconciler) { r.Rollback(tok) })
		return err
	}
	s.do(func(r *Reconciler) { r.Confirm(tok, nil) })
	return nil
}

func (s *Session) tentativeUpdate(
	ctx context.Context,
	entryID uuid.UUID,
	local func(domain.Entry) domain.Entry,
	remote func(context.Context) (domain.Entry, error),
) (domain.Entry, error) {
	tok, ok := call(s, func(r *Reconciler) Token { return r.TentativeApply(UpdateOp(entryID, local)) })
	if !ok {
		return domain.Entry{}, ErrSessionClosed
	}
	updated, err := remote(ctx)
	if err != nil {
		s.do(func(r *Reconciler) { r.Rollback(tok) })
		return domain.Entry{}, err
	}
	s.do(func(r *Reconciler) { r.Confirm(tok, &updated) })
	return updated, nil
}

func (s *Session) loop() {
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.ops:
			fn(s.rec)
		}
	}
}

// do queues fn on the loop. It reports false when the session is closed.
func (s *Session) do(fn func(*Reconciler)) bool {
	select {
	case <-s.done:
		return false
	case s.ops <- fn:
		return true
	}
}

// call runs fn on the loop and waits for its result.
func call[T any](s *Session, fn func(*Reconciler) T) (T, bool) {
	reply := make(chan T, 1)
	if !s.do(func(r *Reconciler) { reply <- fn(r) }) {
		var zero T
		return zero, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-s.done:
		var zero T
		return zero, false
	}
}
