// Package pagination bounds skip/limit windows for list queries.
package pagination

import "gorm.io/gorm"

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Clamp normalizes a skip/limit pair. Negative skip becomes 0, a non-positive
// limit becomes DefaultLimit and anything above MaxLimit is capped.
func Clamp(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return skip, limit
}

// Scope applies a clamped offset/limit to a query.
func Scope(skip, limit int) func(*gorm.DB) *gorm.DB {
	skip, limit = Clamp(skip, limit)
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(skip).Limit(limit)
	}
}
