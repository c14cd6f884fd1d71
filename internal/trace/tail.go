package trace

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/pagination"
	"gorm.io/gorm"
)

const (
	// DefaultTailGrace is how long a Tail waits for a skipped id to commit.
	DefaultTailGrace = 30 * time.Second
	maxTailGaps      = 1000
)

// Tail follows newly committed events by id. Ids are assigned at insert but
// concurrent transactions may commit out of id order, so a lower id can
// become visible after a higher one. Tail remembers every id it skipped over
// and delivers it if it commits within the grace period. Ids freed by
// rolled-back inserts simply expire.
type Tail struct {
	db    *gorm.DB
	last  uint
	gaps  map[uint]time.Time // skipped id -> give-up deadline
	grace time.Duration
	now   func() time.Time
}

// NewTail follows events with ids above after. A non-positive grace means
// DefaultTailGrace.
func NewTail(db *gorm.DB, after uint, grace time.Duration) *Tail {
	if grace <= 0 {
		grace = DefaultTailGrace
	}
	return &Tail{db: db, last: after, gaps: map[uint]time.Time{}, grace: grace, now: time.Now}
}

// Last returns the highest id delivered so far.
func (t *Tail) Last() uint { return t.last }

// Pending returns the number of skipped ids still awaited.
func (t *Tail) Pending() int { return len(t.gaps) }

// Poll returns up to limit events not delivered before, late commits of
// skipped ids first, each group in id order.
func (t *Tail) Poll(ctx context.Context, limit int) ([]models.TraceEvent, error) {
	now := t.now()
	for id, deadline := range t.gaps {
		if now.After(deadline) {
			delete(t.gaps, id)
		}
	}

	var events []models.TraceEvent
	if len(t.gaps) == 0 {
		var err error
		if events, err = Since(ctx, t.db, t.last, limit); err != nil {
			return nil, err
		}
	} else {
		ids := make([]uint, 0, len(t.gaps))
		for id := range t.gaps {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		events = []models.TraceEvent{}
		if err := t.db.WithContext(ctx).
			Where("id > ? OR id IN ?", t.last, ids).
			Scopes(pagination.Scope(0, limit)).
			Order("id ASC").
			Find(&events).Error; err != nil {
			return nil, fmt.Errorf("trace: tail after %d: %w", t.last, err)
		}
	}

	for _, ev := range events {
		if ev.ID <= t.last {
			delete(t.gaps, ev.ID)
			continue
		}
		start := t.last + 1
		if ev.ID-start > maxTailGaps {
			start = ev.ID - maxTailGaps
		}
		for id := start; id < ev.ID && len(t.gaps) < maxTailGaps; id++ {
			t.gaps[id] = now.Add(t.grace)
		}
		t.last = ev.ID
	}
	return events, nil
}
