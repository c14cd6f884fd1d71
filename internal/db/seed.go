package db

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/partline/internal/logger"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/part"
	"github.com/zulandar/partline/internal/station"
	"github.com/zulandar/partline/internal/trace"
	"github.com/zulandar/partline/internal/user"
	"gorm.io/gorm"
)

// SeedResult counts the rows each seeder inserted.
type SeedResult struct {
	Users    int
	Stations int
	Parts    int
	Events   int
}

// DemoUsers are the accounts created by SeedUsers.
var DemoUsers = []user.CreateOpts{
	{Name: "Admin", Email: "admin@example.com", Password: "admin123", Role: models.RoleAdmin},
	{Name: "Operator One", Email: "operador1@example.com", Password: "password1", Role: models.RoleOperator},
	{Name: "Operator Two", Email: "operador2@example.com", Password: "password2", Role: models.RoleOperator},
	{Name: "Supervisor One", Email: "supervisor1@example.com", Password: "password3", Role: models.RoleSupervisor},
	{Name: "Supervisor Two", Email: "supervisor2@example.com", Password: "password4", Role: models.RoleSupervisor},
}

// DemoStations are the stations created by SeedStations.
var DemoStations = []station.CreateOpts{
	{Name: "Initial Inspection", Type: models.StationInspection, Line: "Line 1"},
	{Name: "Base Assembly", Type: models.StationAssembly, Line: "Line 1"},
	{Name: "Final Assembly", Type: models.StationAssembly, Line: "Line 2"},
	{Name: "Functional Test", Type: models.StationTest, Line: "Line 2"},
	{Name: "Final Inspection", Type: models.StationInspection, Line: "Line 3"},
}

// DemoParts are the parts created by SeedParts.
var DemoParts = []part.CreateOpts{
	{ID: "PZA-001", PartType: "X1", Lot: "L001"},
	{ID: "PZA-002", PartType: "X1", Lot: "L001"},
	{ID: "PZA-003", PartType: "X2", Lot: "L002"},
	{ID: "PZA-004", PartType: "X2", Lot: "L002"},
	{ID: "PZA-005", PartType: "X3", Lot: "L003"},
}

// Seed fills an empty database with demo data. Each table is seeded only when
// it is empty, so running Seed twice is harmless.
func Seed(ctx context.Context, db *gorm.DB, log *logger.Logger) (SeedResult, error) {
	if log == nil {
		log = logger.Nop()
	}
	var res SeedResult
	var err error

	if res.Users, err = SeedUsers(db); err != nil {
		return res, err
	}
	if res.Stations, err = SeedStations(db); err != nil {
		return res, err
	}
	if res.Parts, err = SeedParts(db); err != nil {
		return res, err
	}
	rec := trace.NewRecorder(db, log, trace.Policy{})
	if res.Events, err = SeedEvents(ctx, db, rec, time.Now().UTC()); err != nil {
		return res, err
	}

	log.Info("seed complete",
		"users", res.Users, "stations", res.Stations, "parts", res.Parts, "events", res.Events)
	return res, nil
}

func isEmpty(db *gorm.DB, model interface{}) (bool, error) {
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		return false, fmt.Errorf("db: count %T: %w", model, err)
	}
	return n == 0, nil
}

// SeedUsers creates DemoUsers when no user exists.
func SeedUsers(db *gorm.DB) (int, error) {
	empty, err := isEmpty(db, &models.User{})
	if err != nil || !empty {
		return 0, err
	}
	for _, u := range DemoUsers {
		if _, err := user.Create(db, u); err != nil {
			return 0, fmt.Errorf("db: seed user %s: %w", u.Email, err)
		}
	}
	return len(DemoUsers), nil
}

// SeedStations creates DemoStations when no station exists.
func SeedStations(db *gorm.DB) (int, error) {
	empty, err := isEmpty(db, &models.Station{})
	if err != nil || !empty {
		return 0, err
	}
	for _, s := range DemoStations {
		if _, err := station.Create(db, s); err != nil {
			return 0, fmt.Errorf("db: seed station %s: %w", s.Name, err)
		}
	}
	return len(DemoStations), nil
}

// SeedParts creates DemoParts when no part exists.
func SeedParts(db *gorm.DB) (int, error) {
	empty, err := isEmpty(db, &models.Part{})
	if err != nil || !empty {
		return 0, err
	}
	for _, p := range DemoParts {
		if _, err := part.Create(db, p); err != nil {
			return 0, fmt.Errorf("db: seed part %s: %w", p.ID, err)
		}
	}
	return len(DemoParts), nil
}

// SeedEvents records one visit per seeded part through rec, so part
// aggregates match their history. The fourth part passes a first station and
// is then sent to rework. Does nothing when events already exist.
func SeedEvents(ctx context.Context, db *gorm.DB, rec *trace.Recorder, now time.Time) (int, error) {
	empty, err := isEmpty(db, &models.TraceEvent{})
	if err != nil || !empty {
		return 0, err
	}

	var parts []models.Part
	if err := db.Order("id ASC").Limit(5).Find(&parts).Error; err != nil {
		return 0, fmt.Errorf("db: load parts: %w", err)
	}
	var stations []models.Station
	if err := db.Order("id ASC").Limit(5).Find(&stations).Error; err != nil {
		return 0, fmt.Errorf("db: load stations: %w", err)
	}
	var users []models.User
	if err := db.Order("id ASC").Limit(5).Find(&users).Error; err != nil {
		return 0, fmt.Errorf("db: load users: %w", err)
	}
	n := min(len(parts), len(stations))
	if n == 0 {
		return 0, nil
	}

	var opts []trace.RecordOpts
	for i := 0; i < n; i++ {
		entered := now.Add(-time.Duration(20*(i+1)) * time.Minute)
		exited := now.Add(-time.Duration(10*(i+1)) * time.Minute)
		outcome := models.OutcomeOK
		if i%2 == 1 {
			outcome = models.OutcomeScrap
		}
		if i == 3 {
			opts = append(opts, trace.RecordOpts{
				PartID:    parts[i].ID,
				StationID: stations[(i+1)%len(stations)].ID,
				EnteredAt: entered.Add(-30 * time.Minute),
				ExitedAt:  entered.Add(-25 * time.Minute),
				Outcome:   models.OutcomeOK,
				Notes:     "Seed pre-check",
			})
			outcome = models.OutcomeRework
		}
		o := trace.RecordOpts{
			PartID:    parts[i].ID,
			StationID: stations[i].ID,
			EnteredAt: entered,
			ExitedAt:  exited,
			Outcome:   outcome,
			Notes:     fmt.Sprintf("Seed event %d", i+1),
		}
		if i < len(users) {
			id := users[i].ID
			o.OperatorID = &id
		}
		opts = append(opts, o)
	}

	for _, o := range opts {
		if _, err := rec.Record(ctx, nil, o); err != nil {
			return 0, fmt.Errorf("db: seed event for %s: %w", o.PartID, err)
		}
	}
	return len(opts), nil
}
