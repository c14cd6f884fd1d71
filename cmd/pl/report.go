package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/partline/internal/db"
	"github.com/zulandar/partline/internal/report"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Production reports",
	}

	cmd.AddCommand(newReportOverviewCmd())
	return cmd
}

func newReportOverviewCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print part totals and today's activity, plus load per station",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			defer db.Close(gormDB)

			ctx := context.Background()
			ov, err := report.GetOverview(ctx, gormDB, time.Now())
			if err != nil {
				return err
			}
			load, err := report.StationLoad(ctx, gormDB, report.Filters{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date:            %s (UTC)\n", ov.Date)
			fmt.Fprintf(out, "Parts:           %d\n", ov.TotalParts)
			fmt.Fprintf(out, "In process:      %d\n", ov.InProcess)
			fmt.Fprintf(out, "Completed:       %d\n", ov.Completed)
			fmt.Fprintf(out, "Scrapped:        %d\n", ov.Scrapped)
			fmt.Fprintf(out, "Completed today: %d\n", ov.CompletedToday)
			fmt.Fprintf(out, "Scrap today:     %d\n", ov.ScrapToday)

			if len(load) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STATION\tNAME\tEVENTS")
			for _, r := range load {
				fmt.Fprintf(w, "%d\t%s\t%d\n", r.StationID, r.StationName, r.EventsCount)
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
