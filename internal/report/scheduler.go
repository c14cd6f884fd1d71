package report

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/partline/internal/logger"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether expr is a valid 5-field cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("report: invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Sink receives each overview snapshot.
type Sink func(ctx context.Context, ov *Overview)

// Scheduler takes an Overview snapshot on a cron schedule, logs it and hands
// it to the sinks.
type Scheduler struct {
	db    *gorm.DB
	log   *logger.Logger
	cron  *cron.Cron
	sinks []Sink
	now   func() time.Time
}

// NewScheduler creates a Scheduler firing on expr, in UTC.
func NewScheduler(db *gorm.DB, log *logger.Logger, expr string, sinks ...Sink) (*Scheduler, error) {
	if err := ValidateSchedule(expr); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Scheduler{
		db:    db,
		log:   log.With("component", "report-scheduler"),
		cron:  cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC)),
		sinks: sinks,
		now:   time.Now,
	}
	if _, err := s.cron.AddFunc(expr, func() { s.Snapshot(context.Background()) }); err != nil {
		return nil, fmt.Errorf("report: schedule %q: %w", expr, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits for a
// running snapshot to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	s.log.Info("report scheduler started", "next", s.Next())
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("report scheduler stopped")
}

// Next returns the next planned snapshot time, or zero before Run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Snapshot computes and publishes one overview.
func (s *Scheduler) Snapshot(ctx context.Context) (*Overview, error) {
	ov, err := GetOverview(ctx, s.db, s.now())
	if err != nil {
		s.log.Error("overview snapshot failed", "error", err)
		return nil, err
	}
	s.log.Info("overview snapshot",
		"date", ov.Date,
		"total_parts", ov.TotalParts,
		"in_process", ov.InProcess,
		"completed", ov.Completed,
		"scrapped", ov.Scrapped,
		"completed_today", ov.CompletedToday,
		"scrap_today", ov.ScrapToday,
	)
	for _, sink := range s.sinks {
		sink(ctx, ov)
	}
	return ov, nil
}
