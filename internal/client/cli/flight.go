package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/pilotlog/internal/client/models"
)

// FlightOptions holds flags for the flight subcommands.
type FlightOptions struct {
	*RootOptions

	Flight models.FlightLog

	FromDate string
	ToDate   string
}

func NewFlightCommand(root *RootOptions) *cobra.Command {
	opts := &FlightOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "flight",
		Short: "Add or list logbook flights",
	}
	cmd.AddCommand(newFlightAddCommand(opts))
	cmd.AddCommand(newFlightListCommand(opts))
	return cmd
}

func newFlightAddCommand(opts *FlightOptions) *cobra.Command {
	f := &opts.Flight
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a flight locally; it is pushed on the next sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *App) error {
				saved, err := a.Store().Flights.Add(cmd.Context(), f)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), saved, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, saved.ID)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&f.Date, "date", "", "flight date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.From, "from", "", "departure airport")
	cmd.Flags().StringVar(&f.To, "to", "", "arrival airport")
	cmd.Flags().StringVarP(&f.Registration, "registration", "r", "", "aircraft registration")
	cmd.Flags().StringVar(&f.AircraftType, "type", "", "aircraft type code")
	cmd.Flags().IntVar(&f.BlockMinutes, "block", 0, "block time in minutes")
	cmd.Flags().IntVar(&f.PICMinutes, "pic", 0, "PIC time in minutes")
	cmd.Flags().IntVar(&f.DayLandings, "day-landings", 0, "day landings")
	cmd.Flags().IntVar(&f.NightLandings, "night-landings", 0, "night landings")
	cmd.Flags().StringVar(&f.Remarks, "remarks", "", "free-text remarks")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newFlightListCommand(opts *FlightOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flights in a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *App) error {
				flights, err := a.Store().Flights.ListByDate(cmd.Context(), opts.FromDate, opts.ToDate)
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), flights, func(w io.Writer) error {
					return writeFlights(w, flights)
				})
			})
		},
	}
	cmd.Flags().StringVar(&opts.FromDate, "since", "0000-01-01", "first date (inclusive)")
	cmd.Flags().StringVar(&opts.ToDate, "until", "9999-12-31", "last date (inclusive)")
	return cmd
}

func writeFlights(w io.Writer, flights []*models.FlightLog) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tFROM\tTO\tREG\tBLOCK\tSTATUS")
	for _, f := range flights {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d:%02d\t%s\n",
			f.Date, f.From, f.To, f.Registration, f.BlockMinutes/60, f.BlockMinutes%60, f.SyncStatus)
	}
	return tw.Flush()
}
