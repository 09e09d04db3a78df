package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

var errStreamEnded = errors.New("feed: stream ended")

// ListenerSettings bounds how hard a Listener tries to get a dropped
// subscription back.
type ListenerSettings struct {
	// MaxResubscribes is the number of consecutive attempts before giving up.
	MaxResubscribes uint64
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	// MinHealthy is how long a stream has to stay up for the attempt budget
	// to start over.
	MinHealthy time.Duration
}

func DefaultListenerSettings() *ListenerSettings {
	return &ListenerSettings{
		MaxResubscribes: 5,
		BaseDelay:       250 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		MinHealthy:      5 * time.Second,
	}
}

// Listener keeps one trip subscription alive on a Source and delivers every
// event it carries. Events are delivered on the goroutine that called Run,
// in the order the source emitted them.
type Listener struct {
	src      Source
	tripID   uuid.UUID
	settings *ListenerSettings
	log      *slog.Logger

	// OnSubscribed runs after every successful (re)subscription, before any
	// event of that stream is delivered. Events between two streams are lost,
	// so this is where callers reseed.
	OnSubscribed func(ctx context.Context) error
	// OnStale runs once when Run gives up.
	OnStale func(err error)
}

// NewListener constructs a Listener. A nil settings uses the defaults.
func NewListener(src Source, tripID uuid.UUID, settings *ListenerSettings, log *slog.Logger) *Listener {
	if settings == nil {
		settings = DefaultListenerSettings()
	}
	return &Listener{
		src:      src,
		tripID:   tripID,
		settings: settings,
		log:      log.With("component", "feed.listener", "trip_id", tripID),
	}
}

// Run subscribes and delivers events until ctx is cancelled, which returns
// nil. A dropped stream is resubscribed with exponential backoff; when the
// attempts run out OnStale is called and Run returns an error wrapping
// ErrStale.
func (l *Listener) Run(ctx context.Context, deliver func(domain.ChangeEvent)) error {
	b := l.backoff()
	for {
		started := time.Now()
		err := l.session(ctx, deliver)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) >= l.settings.MinHealthy {
			b = l.backoff()
		}

		delay, stop := b.Next()
		if stop {
			l.log.ErrorContext(ctx, "giving up on change feed", "error", err)
			if l.OnStale != nil {
				l.OnStale(err)
			}
			return fmt.Errorf("feed.Listener.Run: %w: %w", ErrStale, err)
		}

		feedResubscribesTotal.Inc()
		l.log.WarnContext(ctx, "change feed dropped, resubscribing", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// session runs one subscription to its end and reports why it ended.
func (l *Listener) session(ctx context.Context, deliver func(domain.ChangeEvent)) error {
	stream, err := l.src.Subscribe(ctx, l.tripID)
	if err != nil {
		return err
	}
	defer stream.Close()

	if l.OnSubscribed != nil {
		if err := l.OnSubscribed(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				if err := stream.Err(); err != nil {
					return err
				}
				return errStreamEnded
			}
			if ev.TripID != l.tripID {
				continue
			}
			deliver(ev)
		}
	}
}

func (l *Listener) backoff() retry.Backoff {
	b := retry.NewExponential(l.settings.BaseDelay)
	b = retry.WithCappedDuration(l.settings.MaxDelay, b)
	return retry.WithMaxRetries(l.settings.MaxResubscribes, b)
}
