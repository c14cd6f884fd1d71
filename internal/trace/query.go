package trace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/pagination"
	"gorm.io/gorm"
)

// ListFilters holds optional filters for listing trace events. Zero values
// mean "no filter".
type ListFilters struct {
	PartID    string
	StationID uint
	Outcome   models.Outcome
	From      time.Time // entered_at >= From
	To        time.Time // exited_at <= To
	Skip      int
	Limit     int
}

// History returns every event of a part in chronological order of entry,
// ties broken by recording order.
func History(ctx context.Context, db *gorm.DB, partID string) ([]models.TraceEvent, error) {
	db = db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Part{}).Where("id = ?", partID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("trace: check part %s: %w", partID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, partID)
	}

	events := []models.TraceEvent{}
	if err := db.Where("part_id = ?", partID).
		Order("entered_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("trace: history %s: %w", partID, err)
	}
	return events, nil
}

// List returns events matching filters, ordered by entry time.
func List(ctx context.Context, db *gorm.DB, filters ListFilters) ([]models.TraceEvent, error) {
	q := db.WithContext(ctx).Model(&models.TraceEvent{})

	if filters.PartID != "" {
		q = q.Where("part_id = ?", filters.PartID)
	}
	if filters.StationID != 0 {
		q = q.Where("station_id = ?", filters.StationID)
	}
	if filters.Outcome != "" {
		q = q.Where("outcome = ?", filters.Outcome)
	}
	if !filters.From.IsZero() {
		q = q.Where("entered_at >= ?", filters.From.UTC())
	}
	if !filters.To.IsZero() {
		q = q.Where("exited_at <= ?", filters.To.UTC())
	}

	events := []models.TraceEvent{}
	if err := q.Scopes(pagination.Scope(filters.Skip, filters.Limit)).
		Order("entered_at ASC, id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("trace: list: %w", err)
	}
	return events, nil
}

// Get retrieves a single event.
func Get(ctx context.Context, db *gorm.DB, id uint) (*models.TraceEvent, error) {
	var ev models.TraceEvent
	if err := db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrEventNotFound, id)
		}
		return nil, fmt.Errorf("trace: get %d: %w", id, err)
	}
	return &ev, nil
}

// Since returns up to limit events recorded after afterID, oldest first.
func Since(ctx context.Context, db *gorm.DB, afterID uint, limit int) ([]models.TraceEvent, error) {
	events := []models.TraceEvent{}
	if err := db.WithContext(ctx).Where("id > ?", afterID).
		Scopes(pagination.Scope(0, limit)).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("trace: since %d: %w", afterID, err)
	}
	return events, nil
}

// LatestID returns the highest event id, or 0 when no events exist.
func LatestID(ctx context.Context, db *gorm.DB) (uint, error) {
	var ev models.TraceEvent
	result := db.WithContext(ctx).Order("id DESC").Limit(1).Find(&ev)
	if result.Error != nil {
		return 0, fmt.Errorf("trace: latest id: %w", result.Error)
	}
	return ev.ID, nil
}
