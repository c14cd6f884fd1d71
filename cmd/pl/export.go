package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/partline/internal/db"
	"github.com/zulandar/partline/internal/export"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/pagination"
	"github.com/zulandar/partline/internal/trace"
	"gorm.io/gorm"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export data to spreadsheets",
	}

	cmd.AddCommand(newExportEventsCmd())
	return cmd
}

type exportFlags struct {
	output    string
	partID    string
	stationID uint
	outcome   string
	from      string
	to        string
}

func newExportEventsCmd() *cobra.Command {
	var (
		configPath string
		f          exportFlags
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Write trace events to an XLSX workbook",
		Long:  "Writes every matching trace event, ordered by entry time, to a single-sheet XLSX workbook.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportEvents(cmd, configPath, f)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&f.output, "output", "o", "trace-events.xlsx", "output file")
	cmd.Flags().StringVar(&f.partID, "part", "", "only events of this part")
	cmd.Flags().UintVar(&f.stationID, "station", 0, "only events at this station")
	cmd.Flags().StringVar(&f.outcome, "outcome", "", "only events with this outcome")
	cmd.Flags().StringVar(&f.from, "from", "", "entered at or after, RFC3339")
	cmd.Flags().StringVar(&f.to, "to", "", "exited at or before, RFC3339")
	return cmd
}

func runExportEvents(cmd *cobra.Command, configPath string, f exportFlags) error {
	filters := trace.ListFilters{PartID: f.partID, StationID: f.stationID}
	var err error
	if f.outcome != "" {
		if filters.Outcome, err = models.ParseOutcome(f.outcome); err != nil {
			return err
		}
	}
	if filters.From, err = parseFlagTime("--from", f.from); err != nil {
		return err
	}
	if filters.To, err = parseFlagTime("--to", f.to); err != nil {
		return err
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	events, err := allEvents(context.Background(), gormDB, filters)
	if err != nil {
		return err
	}

	file, err := os.Create(f.output)
	if err != nil {
		return fmt.Errorf("create %s: %w", f.output, err)
	}
	if err := export.EventsXLSX(file, events); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d trace events to %s\n", len(events), f.output)
	return nil
}

// allEvents pages through trace.List until it runs dry.
func allEvents(ctx context.Context, gormDB *gorm.DB, f trace.ListFilters) ([]models.TraceEvent, error) {
	var out []models.TraceEvent
	f.Limit = pagination.MaxLimit
	for {
		page, err := trace.List(ctx, gormDB, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < f.Limit {
			return out, nil
		}
		f.Skip += len(page)
	}
}

func parseFlagTime(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}
