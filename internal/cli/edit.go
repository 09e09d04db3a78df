package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkordes/trip-timeline/backend/internal/domain"
)

// NewPlanCommand creates the plan command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage PLAN entries",
	}
	cmd.AddCommand(newPlanAddCommand(rootOpts))
	return cmd
}

func newPlanAddCommand(rootOpts *RootOptions) *cobra.Command {
	var title, memo, link, at string
	cmd := &cobra.Command{
		Use:   "add <share-token>",
		Short: "Add a PLAN to a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseTime(at)
			if err != nil {
				return err
			}
			body := domain.Plan{Title: title, Memo: memo, LinkURL: link}

			c := rootOpts.client()
			page, err := c.GetSharedTrip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			created, err := c.CreateEntry(cmd.Context(), page.Trip.ID, when, body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", created.ID.String()[:shortIDLen])
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "plan title (required)")
	cmd.Flags().StringVar(&memo, "memo", "", "free-form note")
	cmd.Flags().StringVar(&link, "link", "", "related URL")
	cmd.Flags().StringVar(&at, "at", time.Now().UTC().Format("2006-01-02 15:04"), `time, RFC 3339 or "YYYY-MM-DD HH:MM" UTC`)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <share-token> <entry-id>",
		Short: "Flip the completion of a PLAN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := rootOpts.client()
			page, err := c.GetSharedTrip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entry, err := resolveEntry(page.Entries, args[1])
			if err != nil {
				return err
			}
			plan, ok := entry.Plan()
			if !ok {
				return fmt.Errorf("%w: only PLAN entries can be completed", domain.ErrValidation)
			}
			updated, err := c.ToggleCompletion(cmd.Context(), entry.ID, !plan.Completed)
			if err != nil {
				return err
			}
			state := "open"
			if p, _ := updated.Plan(); p.Completed {
				state = "done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", entry.ID.String()[:shortIDLen], state)
			return nil
		},
	}
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <share-token> <entry-id>",
		Short: "Delete an entry, and its photo asset for a PHOTO",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := rootOpts.client()
			page, err := c.GetSharedTrip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entry, err := resolveEntry(page.Entries, args[1])
			if err != nil {
				return err
			}
			var photoPath string
			if photo, ok := entry.Photo(); ok {
				photoPath = photo.Path
			}
			if err := c.DeleteEntry(cmd.Context(), entry.ID, entry.Kind(), photoPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", entry.ID.String()[:shortIDLen])
			return nil
		},
	}
}
