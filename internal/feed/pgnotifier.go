package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// Publisher receives normalized change events.
type Publisher interface {
	Publish(ev domain.ChangeEvent)
}

// EntryGetter reads back rows that were too large to travel in a
// notification.
type EntryGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Entry, error)
}

// PGNotifier listens on Channel and publishes every well-formed payload.
// It holds one pooled connection for as long as it runs.
type PGNotifier struct {
	pool      *pgxpool.Pool
	entries   EntryGetter
	publisher Publisher
	log       *slog.Logger

	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewPGNotifier constructs a PGNotifier.
func NewPGNotifier(pool *pgxpool.Pool, entries EntryGetter, publisher Publisher, log *slog.Logger) *PGNotifier {
	return &PGNotifier{
		pool:      pool,
		entries:   entries,
		publisher: publisher,
		log:       log.With("component", "feed.pgnotifier"),
		baseDelay: 500 * time.Millisecond,
		maxDelay:  30 * time.Second,
	}
}

// Run listens until ctx is cancelled. A lost connection is re-established
// with capped exponential backoff, indefinitely.
func (n *PGNotifier) Run(ctx context.Context) error {
	b := n.backoff()
	for {
		started := time.Now()
		err := n.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > n.maxDelay {
			b = n.backoff()
		}

		delay, _ := b.Next()
		feedNotifierReconnectsTotal.Inc()
		n.log.WarnContext(ctx, "notification listener lost, reconnecting", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (n *PGNotifier) listen(ctx context.Context) error {
	pooled, err := n.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("feed.PGNotifier: acquire: %w", err)
	}
	// A connection in LISTEN state must not go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("feed.PGNotifier: listen: %w", err)
	}
	n.log.InfoContext(ctx, "listening for entry changes", "channel", Channel)

	for {
		note, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("feed.PGNotifier: wait: %w", err)
		}
		n.handle(ctx, note.Payload)
	}
}

// handle publishes one payload. Malformed payloads are logged and dropped.
func (n *PGNotifier) handle(ctx context.Context, raw string) {
	p, err := ParsePayload(raw)
	if err != nil {
		feedMalformedTotal.Inc()
		n.log.WarnContext(ctx, "dropping malformed notification", "error", err)
		return
	}
	ev, err := Normalize(p)
	if errors.Is(err, ErrRowOmitted) {
		var ok bool
		if ev, ok = n.readBack(ctx, p); !ok {
			return
		}
		err = nil
	}
	if err != nil {
		feedMalformedTotal.Inc()
		n.log.WarnContext(ctx, "dropping malformed notification", "event_type", p.EventType, "error", err)
		return
	}
	n.publisher.Publish(ev)
}

// readBack loads the row of a cut-down insert or update. A row that is gone
// already is skipped; its DELETE notification follows.
func (n *PGNotifier) readBack(ctx context.Context, p Payload) (domain.ChangeEvent, bool) {
	ref, _ := p.Reference()
	e, err := n.entries.GetByID(ctx, ref.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		n.log.DebugContext(ctx, "changed entry already deleted", "entry_id", ref.ID)
		return domain.ChangeEvent{}, false
	case err != nil:
		feedReadBackFailuresTotal.Inc()
		n.log.WarnContext(ctx, "dropping notification, entry read failed", "entry_id", ref.ID, "error", err)
		return domain.ChangeEvent{}, false
	}
	if p.EventType == string(domain.ChangeInsert) {
		return domain.InsertEvent(e), true
	}
	return domain.UpdateEvent(e), true
}

func (n *PGNotifier) backoff() retry.Backoff {
	return retry.WithCappedDuration(n.maxDelay, retry.NewExponential(n.baseDelay))
}
