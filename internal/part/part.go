// Package part provides part registration, lookup and the part lifecycle.
package part

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/pagination"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("part: not found")
	ErrDuplicate = errors.New("part: serial already registered")
	ErrInvalid   = errors.New("part: invalid input")
)

// CreateOpts holds parameters for registering a part.
type CreateOpts struct {
	ID       string // serial supplied by the line
	PartType string
	Lot      string
}

// ListFilters holds optional filters for listing parts. Zero values mean
// "no filter".
type ListFilters struct {
	Status      models.PartStatus
	PartType    string
	Lot         string
	CreatedFrom time.Time // inclusive
	CreatedTo   time.Time // inclusive
	Skip        int
	Limit       int
}

// UpdateOpts holds the editable descriptive fields of a part. Nil leaves the
// field unchanged.
type UpdateOpts struct {
	PartType *string
	Lot      *string
}

// Verification compares a part's stored aggregate with a replay of its events.
type Verification struct {
	PartID     string    `json:"part_id"`
	Events     int       `json:"events"`
	Stored     Aggregate `json:"stored"`
	Replayed   Aggregate `json:"replayed"`
	Consistent bool      `json:"consistent"`
}

// Create registers a new part in IN_PROCESS with an empty aggregate.
func Create(db *gorm.DB, opts CreateOpts) (*models.Part, error) {
	opts.ID = strings.TrimSpace(opts.ID)
	if opts.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if opts.PartType == "" {
		return nil, fmt.Errorf("%w: part type is required", ErrInvalid)
	}
	if opts.Lot == "" {
		return nil, fmt.Errorf("%w: lot is required", ErrInvalid)
	}

	var count int64
	if err := db.Model(&models.Part{}).Where("id = ?", opts.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("part: check %s: %w", opts.ID, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, opts.ID)
	}

	p := models.Part{
		ID:        opts.ID,
		PartType:  opts.PartType,
		Lot:       opts.Lot,
		Status:    models.PartInProcess,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, opts.ID)
		}
		return nil, fmt.Errorf("part: create %s: %w", opts.ID, err)
	}
	return &p, nil
}

// Get retrieves a part by serial.
func Get(db *gorm.DB, id string) (*models.Part, error) {
	var p models.Part
	if err := db.Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("part: get %s: %w", id, err)
	}
	return &p, nil
}

// List returns parts matching filters, oldest first.
func List(db *gorm.DB, filters ListFilters) ([]models.Part, error) {
	q := db.Model(&models.Part{})

	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.PartType != "" {
		q = q.Where("part_type = ?", filters.PartType)
	}
	if filters.Lot != "" {
		q = q.Where("lot = ?", filters.Lot)
	}
	if !filters.CreatedFrom.IsZero() {
		q = q.Where("created_at >= ?", filters.CreatedFrom.UTC())
	}
	if !filters.CreatedTo.IsZero() {
		q = q.Where("created_at <= ?", filters.CreatedTo.UTC())
	}

	parts := []models.Part{}
	if err := q.Scopes(pagination.Scope(filters.Skip, filters.Limit)).
		Order("created_at ASC, id ASC").Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("part: list: %w", err)
	}
	return parts, nil
}

// Update changes a part's descriptive fields. The aggregate is never written
// here.
func Update(db *gorm.DB, id string, opts UpdateOpts) (*models.Part, error) {
	p, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if opts.PartType != nil {
		if *opts.PartType == "" {
			return nil, fmt.Errorf("%w: part type cannot be empty", ErrInvalid)
		}
		updates["part_type"] = *opts.PartType
	}
	if opts.Lot != nil {
		if *opts.Lot == "" {
			return nil, fmt.Errorf("%w: lot cannot be empty", ErrInvalid)
		}
		updates["lot"] = *opts.Lot
	}
	if len(updates) == 0 {
		return p, nil
	}

	if err := db.Model(&models.Part{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("part: update %s: %w", id, err)
	}
	return Get(db, id)
}

// Verify replays a part's events in recording order and compares the result
// with the stored aggregate.
func Verify(db *gorm.DB, id string) (*Verification, error) {
	p, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	var events []models.TraceEvent
	if err := db.Where("part_id = ?", id).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("part: load events for %s: %w", id, err)
	}

	replayed, err := Replay(events)
	if err != nil {
		return nil, err
	}
	stored := Snapshot(p)
	return &Verification{
		PartID:     id,
		Events:     len(events),
		Stored:     stored,
		Replayed:   replayed,
		Consistent: stored.Equal(replayed),
	}, nil
}
