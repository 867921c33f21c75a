package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/pilotlog/internal/buildinfo"
	"github.com/dmitrijs2005/pilotlog/internal/client/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"

	flags *config.Flags
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the pilotlog client.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pilotlog",
		Short: "pilotlog - local-first flight logbook",
		Long:  "Keeps a flight logbook in a local SQLite file and syncs it with a pilotlog server when online.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.flags = config.RegisterFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewAgentCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewFlightCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// withApp loads the config, builds an App and closes it when fn returns.
func (o *RootOptions) withApp(ctx context.Context, fn func(*App) error) error {
	cfg, err := o.flags.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// print writes v as indented JSON or via text depending on --format.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer) error) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
			return nil
		},
	}
}
