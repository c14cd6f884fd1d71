package models

import "time"

// TraceEvent records one visit of a part to a station. Rows are append-only.
type TraceEvent struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	PartID          string    `gorm:"size:50;not null;index"`
	StationID       uint      `gorm:"not null;index"`
	EnteredAt       time.Time `gorm:"not null;index"`
	ExitedAt        time.Time `gorm:"not null;index"`
	DurationSeconds float64   `gorm:"not null;default:0"`
	Outcome         Outcome   `gorm:"size:16;not null;index"`
	OperatorID      *uint     `gorm:"index"`
	Notes           string    `gorm:"type:text"`
	CreatedAt       time.Time
}
