package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
	"github.com/pkordes/trip-timeline/backend/internal/feed"
	"github.com/pkordes/trip-timeline/backend/internal/timeline"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var maxResubscribes uint64

	cmd := &cobra.Command{
		Use:   "watch <share-token>",
		Short: "Follow a shared trip timeline live",
		Long: `Print the timeline, then print it again after every change made by
any collaborator. If the live feed is lost for good the last known timeline
stays on screen and tripctl exits with an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := feed.DefaultListenerSettings()
			settings.MaxResubscribes = maxResubscribes
			return runWatch(cmd.Context(), rootOpts, args[0], settings, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().Uint64Var(&maxResubscribes, "max-resubscribes", feed.DefaultListenerSettings().MaxResubscribes,
		"consecutive feed reconnects before giving up")
	return cmd
}

func runWatch(ctx context.Context, opts *RootOptions, shareToken string, settings *feed.ListenerSettings, out, errOut io.Writer) error {
	log := opts.logger(errOut)
	c := opts.client()

	page, err := c.GetSharedTrip(ctx, shareToken)
	if err != nil {
		return err
	}
	trip := page.Trip

	// Viewers may be anonymous, so reseeds go through the shared page.
	loader := timeline.LoaderFunc(func(ctx context.Context, _ uuid.UUID) ([]domain.Entry, error) {
		p, err := c.GetSharedTrip(ctx, shareToken)
		if err != nil {
			return nil, err
		}
		return p.Entries, nil
	})
	source := feed.NewWSSource(opts.API, opts.Token, nil, log)

	sess := timeline.NewSession(trip.ID, c, loader, source, settings, log)
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer sess.Close()

	first := true
	unsubscribe, err := sess.Subscribe(func(entries []domain.Entry) {
		if !first {
			fmt.Fprintln(out, "\n----")
		}
		first = false
		if err := render(out, opts.Format, trip, entries); err != nil {
			log.Warn("render failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	waitErr := make(chan error, 1)
	go func() { waitErr <- sess.Wait() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-waitErr:
		if errors.Is(err, feed.ErrStale) {
			fmt.Fprintln(errOut, "live feed lost; the timeline above may be out of date")
		}
		return err
	}
}
