package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func NewAgentCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the background sync agent",
		Long:  "Watches server reachability, syncs on reconnect and every --sync-interval until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd.Context(), func(a *App) error {
				return a.RunAgent(cmd.Context())
			})
		},
	}
}

func NewSyncCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one full sync cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd.Context(), func(a *App) error {
				res, err := a.SyncOnce(cmd.Context())
				if err != nil {
					return err
				}
				return root.print(cmd.OutOrStdout(), res, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "pushed %d, pulled %d, failed %d, skipped %d\n",
						res.Pushed, res.Pulled, res.Failed, res.Skipped)
					return err
				})
			})
		},
	}
}

func NewStatusCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd.Context(), func(a *App) error {
				r, err := a.Report(cmd.Context())
				if err != nil {
					return err
				}
				return root.print(cmd.OutOrStdout(), r, func(w io.Writer) error {
					return writeReport(w, r)
				})
			})
		},
	}
}

func writeReport(w io.Writer, r *Report) error {
	last := "never"
	if r.Status.LastSyncAt > 0 {
		last = time.UnixMilli(r.Status.LastSyncAt).UTC().Format(time.RFC3339)
	}
	if _, err := fmt.Fprintf(w, "last sync: %s\noutbox: %d\n", last, r.Status.Outbox); err != nil {
		return err
	}

	names := make([]string, 0, len(r.Collections))
	for n := range r.Collections {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		s := r.Collections[n]
		if _, err := fmt.Fprintf(w, "%-10s total %d, pending %d, failed %d\n", n, s.Total, s.Pending, s.Failed); err != nil {
			return err
		}
	}
	return nil
}

func NewBackupCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Upload a snapshot of the logbook to S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd.Context(), func(a *App) error {
				key, err := a.Backup(cmd.Context())
				if err != nil {
					return err
				}
				return root.print(cmd.OutOrStdout(), map[string]string{"key": key}, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, key)
					return err
				})
			})
		},
	}
}
