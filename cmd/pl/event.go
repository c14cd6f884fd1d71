package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/partline/internal/config"
	"github.com/zulandar/partline/internal/db"
	"github.com/zulandar/partline/internal/logger"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/trace"
	"gorm.io/gorm"
)

func newEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Trace event commands",
	}

	cmd.AddCommand(newEventRecordCmd())
	return cmd
}

type recordFlags struct {
	partID    string
	stationID uint
	entered   string
	exited    string
	outcome   string
	operator  uint
	notes     string
}

func newEventRecordCmd() *cobra.Command {
	var (
		configPath string
		f          recordFlags
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a part's visit to a station",
		Long: `Records one station visit and updates the part's status.

Times are RFC3339. Outcome is OK, SCRAP or REWORK (RETRABAJO is accepted for REWORK).
Events recorded here carry no authenticated actor; --operator attributes them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEventRecord(cmd, configPath, f)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&f.partID, "part", "", "part id (required)")
	cmd.Flags().UintVar(&f.stationID, "station", 0, "station id (required)")
	cmd.Flags().StringVar(&f.entered, "entered", "", "entry time, RFC3339 (required)")
	cmd.Flags().StringVar(&f.exited, "exited", "", "exit time, RFC3339 (required)")
	cmd.Flags().StringVar(&f.outcome, "outcome", "", "OK, SCRAP or REWORK (required)")
	cmd.Flags().UintVar(&f.operator, "operator", 0, "operator user id")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-form notes")
	for _, name := range []string{"part", "station", "entered", "exited", "outcome"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runEventRecord(cmd *cobra.Command, configPath string, f recordFlags) error {
	entered, err := time.Parse(time.RFC3339, f.entered)
	if err != nil {
		return fmt.Errorf("--entered: %w", err)
	}
	exited, err := time.Parse(time.RFC3339, f.exited)
	if err != nil {
		return fmt.Errorf("--exited: %w", err)
	}
	outcome, err := models.ParseOutcome(f.outcome)
	if err != nil {
		return err
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	opts := trace.RecordOpts{
		PartID:    f.partID,
		StationID: f.stationID,
		EnteredAt: entered,
		ExitedAt:  exited,
		Outcome:   outcome,
		Notes:     f.notes,
	}
	if f.operator != 0 {
		op := f.operator
		opts.OperatorID = &op
	}

	ev, err := newRecorder(cfg, gormDB, nil).Record(context.Background(), nil, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded event %d: part %s at station %d, %s (%s)\n",
		ev.ID, ev.PartID, ev.StationID, ev.Outcome, formatSeconds(ev.DurationSeconds))
	return nil
}

// newRecorder builds a Recorder with the configured policy.
func newRecorder(cfg *config.Config, gormDB *gorm.DB, log *logger.Logger, hooks ...trace.Hook) *trace.Recorder {
	return trace.NewRecorder(gormDB, log, trace.Policy{
		RejectAfterScrap:  cfg.Trace.RejectAfterScrap,
		EnforceChronology: cfg.Trace.EnforceChronology,
	}, hooks...)
}
