package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/partline/internal/db"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/part"
	"github.com/zulandar/partline/internal/trace"
)

const timeLayout = "2006-01-02 15:04:05"

func newPartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "part",
		Short: "Part management commands",
	}

	cmd.AddCommand(newPartCreateCmd())
	cmd.AddCommand(newPartShowCmd())
	cmd.AddCommand(newPartHistoryCmd())
	cmd.AddCommand(newPartVerifyCmd())
	return cmd
}

func newPartCreateCmd() *cobra.Command {
	var (
		configPath string
		partType   string
		lot        string
	)

	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Register a new part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			p, err := part.Create(gormDB, part.CreateOpts{ID: args[0], PartType: partType, Lot: lot})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created part %s (type %s, lot %s)\n", p.ID, p.PartType, p.Lot)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&partType, "type", "", "part type (required)")
	cmd.Flags().StringVar(&lot, "lot", "", "production lot (required)")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("lot")
	return cmd
}

func newPartShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show part details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			p, err := part.Get(gormDB, args[0])
			if err != nil {
				return err
			}
			printPart(cmd.OutOrStdout(), p)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printPart(out io.Writer, p *models.Part) {
	fmt.Fprintf(out, "ID:          %s\n", p.ID)
	fmt.Fprintf(out, "Type:        %s\n", p.PartType)
	fmt.Fprintf(out, "Lot:         %s\n", p.Lot)
	fmt.Fprintf(out, "Status:      %s\n", p.Status)
	fmt.Fprintf(out, "Reworks:     %d\n", p.ReworkCount)
	fmt.Fprintf(out, "Cumulative:  %s\n", formatSeconds(p.CumulativeSeconds))
	if p.LastStationID != nil {
		fmt.Fprintf(out, "Station:     %d\n", *p.LastStationID)
	}
	fmt.Fprintf(out, "Created:     %s\n", p.CreatedAt.UTC().Format(timeLayout))
}

func formatSeconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).String()
}

func newPartHistoryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "List a part's trace events in order of entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			events, err := trace.History(context.Background(), gormDB, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintf(out, "No trace events for %s.\n", args[0])
				return nil
			}
			printEvents(out, events)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printEvents(out io.Writer, events []models.TraceEvent) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATION\tENTERED\tEXITED\tDURATION\tOUTCOME\tOPERATOR")
	for _, ev := range events {
		op := "-"
		if ev.OperatorID != nil {
			op = fmt.Sprintf("%d", *ev.OperatorID)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			ev.ID, ev.StationID,
			ev.EnteredAt.UTC().Format(timeLayout), ev.ExitedAt.UTC().Format(timeLayout),
			formatSeconds(ev.DurationSeconds), ev.Outcome, op)
	}
	w.Flush()
}

func newPartVerifyCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "verify <id>",
		Short: "Check a part's stored status against a replay of its events",
		Long:  "Replays the part's trace events from the initial state and compares the result with the stored aggregate. Exits non-zero on drift.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			v, err := part.Verify(gormDB, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Events:   %d\n", v.Events)
			fmt.Fprintf(out, "Stored:   %s, %d reworks, %s\n", v.Stored.Status, v.Stored.ReworkCount, formatSeconds(v.Stored.CumulativeSeconds))
			fmt.Fprintf(out, "Replayed: %s, %d reworks, %s\n", v.Replayed.Status, v.Replayed.ReworkCount, formatSeconds(v.Replayed.CumulativeSeconds))
			if !v.Consistent {
				return fmt.Errorf("part %s: stored aggregate does not match its history", v.PartID)
			}
			fmt.Fprintln(out, "Consistent.")
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
