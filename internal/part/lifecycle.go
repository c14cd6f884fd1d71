package part

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/partline/internal/models"
)

var (
	ErrUnknownOutcome   = errors.New("part: unknown outcome")
	ErrNegativeDuration = errors.New("part: negative transit duration")
)

// Transit is one completed visit of a part to a station, reduced to what the
// lifecycle needs.
type Transit struct {
	StationID uint
	Outcome   models.Outcome
	Seconds   float64
}

// NewTransit builds a Transit from a station visit's entry and exit times.
func NewTransit(stationID uint, enteredAt, exitedAt time.Time, outcome models.Outcome) Transit {
	return Transit{
		StationID: stationID,
		Outcome:   outcome,
		Seconds:   exitedAt.Sub(enteredAt).Seconds(),
	}
}

// TransitOf converts a recorded event. The stored duration is used so replays
// add exactly the values that were added at record time.
func TransitOf(ev models.TraceEvent) Transit {
	return Transit{
		StationID: ev.StationID,
		Outcome:   ev.Outcome,
		Seconds:   ev.DurationSeconds,
	}
}

// Aggregate is the event-derived portion of a part.
type Aggregate struct {
	Status            models.PartStatus `json:"status"`
	ReworkCount       int               `json:"rework_count"`
	CumulativeSeconds float64           `json:"cumulative_seconds"`
	LastStationID     *uint             `json:"last_station_id"`
}

// Initial is the aggregate of a part with no recorded events.
func Initial() Aggregate {
	return Aggregate{Status: models.PartInProcess}
}

// Snapshot extracts the aggregate fields of p.
func Snapshot(p *models.Part) Aggregate {
	a := Aggregate{
		Status:            p.Status,
		ReworkCount:       p.ReworkCount,
		CumulativeSeconds: p.CumulativeSeconds,
	}
	if p.LastStationID != nil {
		id := *p.LastStationID
		a.LastStationID = &id
	}
	return a
}

// Equal reports whether two aggregates are identical.
func (a Aggregate) Equal(b Aggregate) bool {
	if a.Status != b.Status || a.ReworkCount != b.ReworkCount || a.CumulativeSeconds != b.CumulativeSeconds {
		return false
	}
	if (a.LastStationID == nil) != (b.LastStationID == nil) {
		return false
	}
	return a.LastStationID == nil || *a.LastStationID == *b.LastStationID
}

// Apply advances p by one transit. On error p is left untouched.
//
//	SCRAP  -> SCRAPPED
//	REWORK -> IN_PROCESS, rework count +1
//	OK     -> COMPLETED
//
// Every transit moves the last station and adds its duration, whatever the
// current status.
func Apply(p *models.Part, t Transit) error {
	var next models.PartStatus
	switch t.Outcome {
	case models.OutcomeScrap:
		next = models.PartScrapped
	case models.OutcomeRework:
		next = models.PartInProcess
	case models.OutcomeOK:
		next = models.PartCompleted
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutcome, t.Outcome)
	}
	if t.Seconds < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeDuration, t.Seconds)
	}

	station := t.StationID
	p.LastStationID = &station
	p.CumulativeSeconds += t.Seconds
	p.Status = next
	if t.Outcome == models.OutcomeRework {
		p.ReworkCount++
	}
	return nil
}

// Replay folds events, in recording order, from the initial aggregate.
func Replay(events []models.TraceEvent) (Aggregate, error) {
	var p models.Part
	a := Initial()
	p.Status = a.Status
	for _, ev := range events {
		if err := Apply(&p, TransitOf(ev)); err != nil {
			return Aggregate{}, fmt.Errorf("part: replay event %d: %w", ev.ID, err)
		}
	}
	return Snapshot(&p), nil
}
