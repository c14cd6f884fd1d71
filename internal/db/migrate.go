package db

import (
	"fmt"

	"github.com/zulandar/partline/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Station{},
		&models.Part{},
		&models.TraceEvent{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table and recreates the schema.
func Reset(db *gorm.DB) error {
	all := AllModels()
	// Reverse order so referencing tables go first.
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("db: drop %T: %w", all[i], err)
		}
	}
	return AutoMigrate(db)
}
