package models

import "time"

// Part is a physical unit tracked through production. ID is the serial
// supplied by the line, not generated here.
//
// Status, ReworkCount, CumulativeSeconds and LastStationID form the derived
// aggregate. They are written only by part.Apply as trace events are recorded.
type Part struct {
	ID                string     `gorm:"primaryKey;size:50"`
	PartType          string     `gorm:"size:50;not null;index"`
	Lot               string     `gorm:"size:50;not null;index"`
	Status            PartStatus `gorm:"size:16;not null;default:IN_PROCESS;index"`
	CreatedAt         time.Time  `gorm:"index"`
	ReworkCount       int        `gorm:"not null;default:0"`
	CumulativeSeconds float64    `gorm:"not null;default:0"`
	LastStationID     *uint
}
