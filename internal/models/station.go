package models

// Station is a fixed process step on a production line.
type Station struct {
	ID   uint        `gorm:"primaryKey;autoIncrement"`
	Name string      `gorm:"size:100;not null;uniqueIndex"`
	Type StationType `gorm:"size:16;not null"`
	Line string      `gorm:"size:100;not null"`
}
