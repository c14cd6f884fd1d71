// Package station manages the process steps parts pass through.
package station

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/pagination"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("station: not found")
	ErrDuplicateName = errors.New("station: name already in use")
	ErrInUse         = errors.New("station: referenced by trace events")
	ErrInvalid       = errors.New("station: invalid input")
)

// CreateOpts holds parameters for creating a station.
type CreateOpts struct {
	Name string
	Type models.StationType
	Line string
}

// UpdateOpts holds editable fields. Nil leaves the field unchanged.
type UpdateOpts struct {
	Name *string
	Type *models.StationType
	Line *string
}

// ListFilters holds optional filters for listing stations.
type ListFilters struct {
	Type  models.StationType
	Line  string
	Skip  int
	Limit int
}

// Create adds a station.
func Create(db *gorm.DB, opts CreateOpts) (*models.Station, error) {
	opts.Name = strings.TrimSpace(opts.Name)
	opts.Line = strings.TrimSpace(opts.Line)
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if opts.Line == "" {
		return nil, fmt.Errorf("%w: line is required", ErrInvalid)
	}
	typ, err := models.ParseStationType(string(opts.Type))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := ensureNameFree(db, opts.Name, 0); err != nil {
		return nil, err
	}

	s := models.Station{Name: opts.Name, Type: typ, Line: opts.Line}
	if err := db.Create(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, opts.Name)
		}
		return nil, fmt.Errorf("station: create %s: %w", opts.Name, err)
	}
	return &s, nil
}

func ensureNameFree(db *gorm.DB, name string, exceptID uint) error {
	var count int64
	q := db.Model(&models.Station{}).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("station: check name %s: %w", name, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	return nil
}

// Get retrieves a station by ID.
func Get(db *gorm.DB, id uint) (*models.Station, error) {
	var s models.Station
	if err := db.Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("station: get %d: %w", id, err)
	}
	return &s, nil
}

// List returns stations ordered by ID.
func List(db *gorm.DB, filters ListFilters) ([]models.Station, error) {
	q := db.Model(&models.Station{})
	if filters.Type != "" {
		q = q.Where("type = ?", filters.Type)
	}
	if filters.Line != "" {
		q = q.Where("line = ?", filters.Line)
	}

	stations := []models.Station{}
	if err := q.Scopes(pagination.Scope(filters.Skip, filters.Limit)).
		Order("id ASC").Find(&stations).Error; err != nil {
		return nil, fmt.Errorf("station: list: %w", err)
	}
	return stations, nil
}

// Update applies opts to station id and returns the result.
func Update(db *gorm.DB, id uint, opts UpdateOpts) (*models.Station, error) {
	if _, err := Get(db, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalid)
		}
		if err := ensureNameFree(db, name, id); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if opts.Type != nil {
		typ, err := models.ParseStationType(string(*opts.Type))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		updates["type"] = typ
	}
	if opts.Line != nil {
		line := strings.TrimSpace(*opts.Line)
		if line == "" {
			return nil, fmt.Errorf("%w: line cannot be empty", ErrInvalid)
		}
		updates["line"] = line
	}

	if len(updates) > 0 {
		if err := db.Model(&models.Station{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("station: update %d: %w", id, err)
		}
	}
	return Get(db, id)
}

// Delete removes a station that no trace event refers to.
func Delete(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}
		var refs int64
		if err := tx.Model(&models.TraceEvent{}).Where("station_id = ?", id).Count(&refs).Error; err != nil {
			return fmt.Errorf("station: count events for %d: %w", id, err)
		}
		if refs > 0 {
			return fmt.Errorf("%w: station %d has %d events", ErrInUse, id, refs)
		}
		if err := tx.Delete(&models.Station{}, id).Error; err != nil {
			return fmt.Errorf("station: delete %d: %w", id, err)
		}
		return nil
	})
}
