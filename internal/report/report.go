// Package report computes read-only production metrics.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/partline/internal/models"
	"gorm.io/gorm"
)

// Filters narrows a report. Zero values mean "no filter". For part-based
// reports From/To bound the part creation time; for event-based reports From
// bounds entry and To bounds exit.
type Filters struct {
	From      time.Time
	To        time.Time
	PartType  string
	StationID uint
}

// StatusCount is the number of parts in one status.
type StatusCount struct {
	Status models.PartStatus `json:"status"`
	Count  int64             `json:"count"`
}

// DayCount is the number of parts created on one UTC day.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// StationCycle is the mean visit duration at one station.
type StationCycle struct {
	StationID       uint    `json:"station_id"`
	StationName     string  `json:"station_name"`
	AvgCycleSeconds float64 `json:"avg_cycle_time_seconds"`
}

// ScrapRow is the scrap ratio of one part type at one station.
type ScrapRow struct {
	PartType    string  `json:"part_type"`
	StationID   uint    `json:"station_id"`
	StationName string  `json:"station_name"`
	Total       int64   `json:"total"`
	Scrap       int64   `json:"scrap"`
	ScrapRate   float64 `json:"scrap_rate"`
}

// StationCount is the number of events recorded at one station.
type StationCount struct {
	StationID   uint   `json:"station_id"`
	StationName string `json:"station_name"`
	EventsCount int64  `json:"events_count"`
}

// Overview is a one-day snapshot of the line.
type Overview struct {
	Date           string `json:"date"`
	TotalParts     int64  `json:"total_parts"`
	InProcess      int64  `json:"in_process"`
	Completed      int64  `json:"completed"`
	Scrapped       int64  `json:"scrapped"`
	CompletedToday int64  `json:"completed_today"`
	ScrapToday     int64  `json:"scrap_today"`
}

// DayBounds returns the first and last instant of t's UTC day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Nanosecond)
}

func partScope(f Filters) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if !f.From.IsZero() {
			q = q.Where("parts.created_at >= ?", f.From.UTC())
		}
		if !f.To.IsZero() {
			q = q.Where("parts.created_at <= ?", f.To.UTC())
		}
		if f.PartType != "" {
			q = q.Where("parts.part_type = ?", f.PartType)
		}
		return q
	}
}

func eventScope(f Filters) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if !f.From.IsZero() {
			q = q.Where("trace_events.entered_at >= ?", f.From.UTC())
		}
		if !f.To.IsZero() {
			q = q.Where("trace_events.exited_at <= ?", f.To.UTC())
		}
		if f.StationID != 0 {
			q = q.Where("trace_events.station_id = ?", f.StationID)
		}
		if f.PartType != "" {
			q = q.Joins("JOIN parts ON parts.id = trace_events.part_id").
				Where("parts.part_type = ?", f.PartType)
		}
		return q
	}
}

// PartsByStatus counts parts per status.
func PartsByStatus(ctx context.Context, db *gorm.DB, f Filters) ([]StatusCount, error) {
	rows := []StatusCount{}
	if err := db.WithContext(ctx).Model(&models.Part{}).
		Scopes(partScope(f)).
		Select("parts.status AS status, COUNT(*) AS count").
		Group("parts.status").
		Order("parts.status ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("report: parts by status: %w", err)
	}
	return rows, nil
}

// Throughput counts parts created per UTC day, oldest first. Days are bucketed
// here rather than in SQL so every driver agrees.
func Throughput(ctx context.Context, db *gorm.DB, f Filters) ([]DayCount, error) {
	var created []time.Time
	if err := db.WithContext(ctx).Model(&models.Part{}).
		Scopes(partScope(f)).
		Pluck("parts.created_at", &created).Error; err != nil {
		return nil, fmt.Errorf("report: throughput: %w", err)
	}

	byDay := map[string]int64{}
	for _, t := range created {
		byDay[t.UTC().Format(time.DateOnly)]++
	}
	out := make([]DayCount, 0, len(byDay))
	for d, n := range byDay {
		out = append(out, DayCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// StationCycleTime averages visit duration per station.
func StationCycleTime(ctx context.Context, db *gorm.DB, f Filters) ([]StationCycle, error) {
	rows := []StationCycle{}
	if err := db.WithContext(ctx).Model(&models.TraceEvent{}).
		Scopes(eventScope(f)).
		Joins("JOIN stations ON stations.id = trace_events.station_id").
		Select("stations.id AS station_id, stations.name AS station_name, AVG(trace_events.duration_seconds) AS avg_cycle_seconds").
		Group("stations.id, stations.name").
		Order("stations.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("report: station cycle time: %w", err)
	}
	return rows, nil
}

// ScrapRate computes the share of SCRAP events per part type and station.
func ScrapRate(ctx context.Context, db *gorm.DB, f Filters) ([]ScrapRow, error) {
	q := db.WithContext(ctx).Model(&models.TraceEvent{}).
		Joins("JOIN stations ON stations.id = trace_events.station_id")
	if f.PartType == "" {
		q = q.Joins("JOIN parts ON parts.id = trace_events.part_id")
	}

	rows := []ScrapRow{}
	if err := q.Scopes(eventScope(f)).
		Select("parts.part_type AS part_type, stations.id AS station_id, stations.name AS station_name, "+
			"COUNT(trace_events.id) AS total, "+
			"COUNT(CASE WHEN trace_events.outcome = ? THEN 1 END) AS scrap", models.OutcomeScrap).
		Group("parts.part_type, stations.id, stations.name").
		Order("parts.part_type ASC, stations.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("report: scrap rate: %w", err)
	}
	for i := range rows {
		if rows[i].Total > 0 {
			rows[i].ScrapRate = float64(rows[i].Scrap) / float64(rows[i].Total)
		}
	}
	return rows, nil
}

// StationLoad counts events per station.
func StationLoad(ctx context.Context, db *gorm.DB, f Filters) ([]StationCount, error) {
	rows := []StationCount{}
	if err := db.WithContext(ctx).Model(&models.TraceEvent{}).
		Scopes(eventScope(f)).
		Joins("JOIN stations ON stations.id = trace_events.station_id").
		Select("stations.id AS station_id, stations.name AS station_name, COUNT(trace_events.id) AS events_count").
		Group("stations.id, stations.name").
		Order("stations.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("report: station load: %w", err)
	}
	return rows, nil
}

// GetOverview summarizes part counts and the UTC day containing now.
func GetOverview(ctx context.Context, db *gorm.DB, now time.Time) (*Overview, error) {
	db = db.WithContext(ctx)
	start, end := DayBounds(now)
	ov := &Overview{Date: start.Format(time.DateOnly)}

	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&ov.TotalParts, db.Model(&models.Part{})},
		{&ov.InProcess, db.Model(&models.Part{}).Where("status = ?", models.PartInProcess)},
		{&ov.Completed, db.Model(&models.Part{}).Where("status = ?", models.PartCompleted)},
		{&ov.Scrapped, db.Model(&models.Part{}).Where("status = ?", models.PartScrapped)},
		{&ov.CompletedToday, db.Model(&models.Part{}).
			Where("status = ? AND created_at >= ? AND created_at <= ?", models.PartCompleted, start, end)},
		{&ov.ScrapToday, db.Model(&models.TraceEvent{}).
			Where("outcome = ? AND entered_at >= ? AND entered_at <= ?", models.OutcomeScrap, start, end)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("report: overview: %w", err)
		}
	}
	return ov, nil
}
