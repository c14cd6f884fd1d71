// Package trace records part transits through stations and answers history
// queries over them.
package trace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/partline/internal/logger"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/part"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPartNotFound     = errors.New("trace: part not found")
	ErrStationNotFound  = errors.New("trace: station not found")
	ErrInvalidTimeRange = errors.New("trace: exit time must be after entry time")
	ErrPartScrapped     = errors.New("trace: part is scrapped")
	ErrOutOfOrder       = errors.New("trace: entry precedes the part's last recorded exit")
	ErrEventNotFound    = errors.New("trace: event not found")
)

// Policy holds optional checks applied on top of the base preconditions.
// The zero Policy accepts every well-formed transit.
type Policy struct {
	// RejectAfterScrap refuses new events for parts already SCRAPPED.
	RejectAfterScrap bool
	// EnforceChronology refuses events entering before the part's latest exit.
	EnforceChronology bool
}

// Hook runs after a recorded event has been committed. ev and p are copies;
// hooks must not block.
type Hook func(ctx context.Context, ev models.TraceEvent, p models.Part)

// RecordOpts holds the parameters of one station visit.
type RecordOpts struct {
	PartID     string
	StationID  uint
	EnteredAt  time.Time
	ExitedAt   time.Time
	Outcome    models.Outcome
	OperatorID *uint // used only when no actor is present
	Notes      string
}

// Recorder writes trace events and the part aggregate they imply.
type Recorder struct {
	db     *gorm.DB
	log    *logger.Logger
	policy Policy
	hooks  []Hook
}

// NewRecorder creates a Recorder. A nil log discards output.
func NewRecorder(db *gorm.DB, log *logger.Logger, policy Policy, hooks ...Hook) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{db: db, log: log, policy: policy, hooks: hooks}
}

// Record validates a transit, appends it as a trace event and applies it to
// the part, all in one transaction. The part row is locked for the duration
// so concurrent records against the same part serialize.
//
// Preconditions are checked in order, before any write: part exists, station
// exists, exit after entry, then the configured Policy.
func (r *Recorder) Record(ctx context.Context, actor *models.Actor, opts RecordOpts) (*models.TraceEvent, error) {
	operatorID := r.operatorFor(actor, opts.OperatorID)

	var ev models.TraceEvent
	var updated models.Part

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Part
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", opts.PartID).
			Limit(1).
			Find(&p)
		if result.Error != nil {
			return fmt.Errorf("trace: load part %s: %w", opts.PartID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrPartNotFound, opts.PartID)
		}

		var stations int64
		if err := tx.Model(&models.Station{}).Where("id = ?", opts.StationID).Count(&stations).Error; err != nil {
			return fmt.Errorf("trace: check station %d: %w", opts.StationID, err)
		}
		if stations == 0 {
			return fmt.Errorf("%w: %d", ErrStationNotFound, opts.StationID)
		}

		entered, exited := opts.EnteredAt.UTC(), opts.ExitedAt.UTC()
		if !exited.After(entered) {
			return ErrInvalidTimeRange
		}

		if err := r.checkPolicy(tx, &p, entered); err != nil {
			return err
		}

		next := p
		transit := part.NewTransit(opts.StationID, entered, exited, opts.Outcome)
		if err := part.Apply(&next, transit); err != nil {
			return err
		}

		ev = models.TraceEvent{
			PartID:          p.ID,
			StationID:       opts.StationID,
			EnteredAt:       entered,
			ExitedAt:        exited,
			DurationSeconds: transit.Seconds,
			Outcome:         opts.Outcome,
			OperatorID:      operatorID,
			Notes:           opts.Notes,
			CreatedAt:       time.Now().UTC(),
		}
		if err := tx.Create(&ev).Error; err != nil {
			return fmt.Errorf("trace: insert event for %s: %w", p.ID, err)
		}

		if err := tx.Model(&models.Part{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"status":             next.Status,
			"rework_count":       next.ReworkCount,
			"cumulative_seconds": next.CumulativeSeconds,
			"last_station_id":    next.LastStationID,
		}).Error; err != nil {
			return fmt.Errorf("trace: update part %s: %w", p.ID, err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("trace event recorded",
		"event_id", ev.ID,
		"part_id", ev.PartID,
		"station_id", ev.StationID,
		"outcome", ev.Outcome,
		"status", updated.Status,
		"rework_count", updated.ReworkCount,
	)
	for _, h := range r.hooks {
		h(ctx, ev, updated)
	}
	return &ev, nil
}

// operatorFor attributes an event to the authenticated actor when present,
// falling back to the explicitly supplied operator.
func (r *Recorder) operatorFor(actor *models.Actor, explicit *uint) *uint {
	if actor == nil {
		return explicit
	}
	id := actor.UserID
	if explicit != nil && *explicit != id {
		r.log.Debug("explicit operator ignored for authenticated actor",
			"actor_id", id, "operator_id", *explicit)
	}
	return &id
}

func (r *Recorder) checkPolicy(tx *gorm.DB, p *models.Part, entered time.Time) error {
	if r.policy.RejectAfterScrap && p.Status == models.PartScrapped {
		return fmt.Errorf("%w: %s", ErrPartScrapped, p.ID)
	}
	if r.policy.EnforceChronology {
		var last models.TraceEvent
		result := tx.Where("part_id = ?", p.ID).Order("exited_at DESC").Limit(1).Find(&last)
		if result.Error != nil {
			return fmt.Errorf("trace: load last event for %s: %w", p.ID, result.Error)
		}
		if result.RowsAffected > 0 && entered.Before(last.ExitedAt) {
			return fmt.Errorf("%w: %s entered %s, last exit %s", ErrOutOfOrder, p.ID,
				entered.Format(time.RFC3339), last.ExitedAt.UTC().Format(time.RFC3339))
		}
	}
	return nil
}
