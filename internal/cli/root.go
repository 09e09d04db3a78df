// Package cli implements tripctl, a terminal client for shared trip
// timelines.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/pkordes/trip-timeline/backend/internal/client"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	API     string
	Token   string
	Format  string // "text" | "json"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for tripctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tripctl",
		Short: "tripctl - shared trip timelines from the terminal",
		Long: `View and edit shared trip timelines.

Every command takes the trip's share token. Reading needs no credentials;
writing needs a bearer token via --token or TRIPCTL_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true, // main prints the error once
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.API, "api", envOr("TRIPCTL_API", "http://localhost:8080/api/v1"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("TRIPCTL_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log feed activity to stderr")

	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))

	return cmd
}

func (o *RootOptions) client() *client.Client {
	return client.New(o.API, o.Token, nil)
}

// logger writes to errOut so it never interleaves with rendered output.
func (o *RootOptions) logger(errOut io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
