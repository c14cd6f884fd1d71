package part

import (
	"errors"
	"testing"
	"time"

	"github.com/zulandar/partline/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Station{}, &models.Part{}, &models.TraceEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreate(t *testing.T) {
	db := testDB(t)
	p, err := Create(db, CreateOpts{ID: " PZA-001 ", PartType: "X1", Lot: "L001"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != "PZA-001" {
		t.Errorf("ID = %q, want trimmed serial", p.ID)
	}
	if p.Status != models.PartInProcess || p.ReworkCount != 0 || p.CumulativeSeconds != 0 || p.LastStationID != nil {
		t.Errorf("new part aggregate = %+v", Snapshot(p))
	}

	got, err := Get(db, "PZA-001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PartType != "X1" || got.Lot != "L001" {
		t.Errorf("Get = %+v", got)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testDB(t)
	tests := []CreateOpts{
		{PartType: "X", Lot: "L"},
		{ID: "  ", PartType: "X", Lot: "L"},
		{ID: "P", Lot: "L"},
		{ID: "P", PartType: "X"},
	}
	for _, opts := range tests {
		if _, err := Create(db, opts); !errors.Is(err, ErrInvalid) {
			t.Errorf("Create(%+v) err = %v, want ErrInvalid", opts, err)
		}
	}
}

func TestCreate_Duplicate(t *testing.T) {
	db := testDB(t)
	if _, err := Create(db, CreateOpts{ID: "P1", PartType: "X", Lot: "L"}); err != nil {
		t.Fatal(err)
	}
	_, err := Create(db, CreateOpts{ID: "P1", PartType: "Y", Lot: "M"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := Get(db, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err.Error() != "part: not found: missing" {
		t.Errorf("err = %q", err.Error())
	}
}

func TestList_Filters(t *testing.T) {
	db := testDB(t)
	for _, o := range []CreateOpts{
		{ID: "A", PartType: "X1", Lot: "L1"},
		{ID: "B", PartType: "X1", Lot: "L2"},
		{ID: "C", PartType: "X2", Lot: "L2"},
	} {
		if _, err := Create(db, o); err != nil {
			t.Fatal(err)
		}
	}
	db.Model(&models.Part{}).Where("id = ?", "C").Update("status", models.PartScrapped)

	tests := []struct {
		name    string
		filters ListFilters
		want    int
	}{
		{"all", ListFilters{}, 3},
		{"by type", ListFilters{PartType: "X1"}, 2},
		{"by lot", ListFilters{Lot: "L2"}, 2},
		{"by status", ListFilters{Status: models.PartScrapped}, 1},
		{"type and lot", ListFilters{PartType: "X1", Lot: "L2"}, 1},
		{"limit", ListFilters{Limit: 2}, 2},
		{"skip", ListFilters{Skip: 2}, 1},
		{"future window", ListFilters{CreatedFrom: time.Now().Add(time.Hour)}, 0},
		{"past window", ListFilters{CreatedTo: time.Now().Add(-time.Hour)}, 0},
		{"open window", ListFilters{CreatedFrom: time.Now().Add(-time.Hour), CreatedTo: time.Now().Add(time.Hour)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := List(db, tt.filters)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List returned %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	db := testDB(t)
	got, err := List(db, ListFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("List should return an empty slice, not nil")
	}
}

func TestUpdate_DescriptiveFieldsOnly(t *testing.T) {
	db := testDB(t)
	if _, err := Create(db, CreateOpts{ID: "P", PartType: "X", Lot: "L"}); err != nil {
		t.Fatal(err)
	}
	lot := "L9"
	p, err := Update(db, "P", UpdateOpts{Lot: &lot})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Lot != "L9" || p.PartType != "X" {
		t.Errorf("after update = %+v", p)
	}
	if p.Status != models.PartInProcess {
		t.Errorf("status changed by Update: %s", p.Status)
	}

	empty := ""
	if _, err := Update(db, "P", UpdateOpts{PartType: &empty}); !errors.Is(err, ErrInvalid) {
		t.Error("empty part type should fail")
	}
	if _, err := Update(db, "nope", UpdateOpts{Lot: &lot}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestVerify(t *testing.T) {
	db := testDB(t)
	if _, err := Create(db, CreateOpts{ID: "P", PartType: "X", Lot: "L"}); err != nil {
		t.Fatal(err)
	}
	in := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	events := []models.TraceEvent{
		{PartID: "P", StationID: 1, EnteredAt: in, ExitedAt: in.Add(time.Minute), DurationSeconds: 60, Outcome: models.OutcomeRework},
		{PartID: "P", StationID: 2, EnteredAt: in.Add(2 * time.Minute), ExitedAt: in.Add(3 * time.Minute), DurationSeconds: 60, Outcome: models.OutcomeOK},
	}
	if err := db.Create(&events).Error; err != nil {
		t.Fatal(err)
	}

	v, err := Verify(db, "P")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.Consistent {
		t.Error("stored aggregate was never updated; verify should report drift")
	}
	if v.Events != 2 || v.Replayed.Status != models.PartCompleted || v.Replayed.ReworkCount != 1 || v.Replayed.CumulativeSeconds != 120 {
		t.Errorf("replayed = %+v", v.Replayed)
	}

	db.Model(&models.Part{}).Where("id = ?", "P").Updates(map[string]interface{}{
		"status": models.PartCompleted, "rework_count": 1, "cumulative_seconds": 120.0, "last_station_id": 2,
	})
	v, err = Verify(db, "P")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Consistent {
		t.Errorf("expected consistent, stored=%+v replayed=%+v", v.Stored, v.Replayed)
	}
}

func TestVerify_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := Verify(db, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
