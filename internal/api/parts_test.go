package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/part"
	"github.com/zulandar/partline/internal/report"
)

func TestParts(t *testing.T) {
	e := newEnv(t)
	body := gin.H{"id": "PZA-100", "part_type": "X1", "lot": "L001"}

	expectError(t, e.do(t, http.MethodPost, "/api/parts", models.RoleOperator, body), http.StatusForbidden, "forbidden")

	w := e.do(t, http.MethodPost, "/api/parts", models.RoleSupervisor, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var p partDTO
	decode(t, w, &p)
	if p.Status != models.PartInProcess || p.ReworkCount != 0 || p.LastStationID != nil {
		t.Errorf("created = %+v", p)
	}

	expectError(t, e.do(t, http.MethodPost, "/api/parts", models.RoleSupervisor, body), http.StatusConflict, "duplicate_part")
	expectError(t, e.do(t, http.MethodPost, "/api/parts", models.RoleSupervisor, gin.H{"id": "PZA-101"}), http.StatusBadRequest, "bad_request")
	expectError(t, e.do(t, http.MethodGet, "/api/parts/NOPE", models.RoleSupervisor, nil), http.StatusNotFound, "part_not_found")

	w = e.do(t, http.MethodPatch, "/api/parts/PZA-100", models.RoleAdmin, gin.H{"lot": "L009"})
	decode(t, w, &p)
	if p.Lot != "L009" || p.PartType != "X1" {
		t.Errorf("patched = %+v", p)
	}
	expectError(t, e.do(t, http.MethodPatch, "/api/parts/PZA-100", models.RoleAdmin, gin.H{"status": "COMPLETED"}), http.StatusBadRequest, "bad_request")
	expectError(t, e.do(t, http.MethodPatch, "/api/parts/PZA-100", models.RoleAdmin, gin.H{"lot": " "}), http.StatusBadRequest, "invalid_input")
}

func TestParts_ListFilters(t *testing.T) {
	e := newEnv(t)
	for i, pt := range []string{"X1", "X1", "X2"} {
		if _, err := part.Create(e.db, part.CreateOpts{ID: fmt.Sprintf("P-%d", i), PartType: pt, Lot: "L1"}); err != nil {
			t.Fatal(err)
		}
	}
	var got []partDTO
	decode(t, e.do(t, http.MethodGet, "/api/parts?part_type=X1", models.RoleSupervisor, nil), &got)
	if len(got) != 2 {
		t.Errorf("X1 = %d, want 2", len(got))
	}
	decode(t, e.do(t, http.MethodGet, "/api/parts?status=completed", models.RoleSupervisor, nil), &got)
	if len(got) != 0 {
		t.Errorf("completed = %d, want 0", len(got))
	}
	today := time.Now().UTC().Format(time.DateOnly)
	decode(t, e.do(t, http.MethodGet, "/api/parts?from="+today+"&to="+today+"&skip=1", models.RoleSupervisor, nil), &got)
	if len(got) != 2 {
		t.Errorf("today skip 1 = %d, want 2", len(got))
	}
	expectError(t, e.do(t, http.MethodGet, "/api/parts?status=LOST", models.RoleSupervisor, nil), http.StatusBadRequest, "bad_request")
	expectError(t, e.do(t, http.MethodGet, "/api/parts?from=2025-06-02&to=2025-06-01", models.RoleSupervisor, nil), http.StatusBadRequest, "bad_request")
}

func TestParts_HistoryAndVerify(t *testing.T) {
	e := newEnv(t)
	stID := e.line(t)

	var hist []eventDTO
	w := e.do(t, http.MethodGet, "/api/parts/PZA-001/history", models.RoleSupervisor, nil)
	decode(t, w, &hist)
	if w.Code != http.StatusOK || hist == nil || len(hist) != 0 {
		t.Errorf("empty history = %d %s", w.Code, w.Body.String())
	}
	expectError(t, e.do(t, http.MethodGet, "/api/parts/GHOST/history", models.RoleSupervisor, nil), http.StatusNotFound, "part_not_found")

	// Recorded out of entry order; history comes back chronological.
	for _, h := range []int{2, 0, 1} {
		e.do(t, http.MethodPost, "/api/trace-events", models.RoleOperator, visitBody(stID, t0.Add(time.Duration(h)*time.Hour), 30, "REWORK"))
	}
	decode(t, e.do(t, http.MethodGet, "/api/parts/PZA-001/history", models.RoleSupervisor, nil), &hist)
	if len(hist) != 3 || !hist[0].EnteredAt.Equal(t0) || !hist[2].EnteredAt.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("history = %+v", hist)
	}

	var v part.Verification
	decode(t, e.do(t, http.MethodGet, "/api/parts/PZA-001/verify", models.RoleAdmin, nil), &v)
	if !v.Consistent || v.Events != 3 || v.Stored.ReworkCount != 3 {
		t.Errorf("verify = %+v", v)
	}

	if err := e.db.Model(&models.Part{}).Where("id = ?", "PZA-001").Update("rework_count", 0).Error; err != nil {
		t.Fatal(err)
	}
	decode(t, e.do(t, http.MethodGet, "/api/parts/PZA-001/verify", models.RoleAdmin, nil), &v)
	if v.Consistent {
		t.Error("tampered aggregate reported consistent")
	}
}

func TestStations(t *testing.T) {
	e := newEnv(t)
	body := gin.H{"name": "Functional Test", "type": "prueba", "line": "Line 2"}

	expectError(t, e.do(t, http.MethodPost, "/api/stations", models.RoleSupervisor, body), http.StatusForbidden, "forbidden")
	w := e.do(t, http.MethodPost, "/api/stations", models.RoleAdmin, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	var st stationDTO
	decode(t, w, &st)
	if st.Type != models.StationTest {
		t.Errorf("type = %s, want TEST", st.Type)
	}
	path := fmt.Sprintf("/api/stations/%d", st.ID)

	expectError(t, e.do(t, http.MethodPost, "/api/stations", models.RoleAdmin, body), http.StatusConflict, "duplicate_station")
	expectError(t, e.do(t, http.MethodPost, "/api/stations", models.RoleAdmin, gin.H{"name": "S", "type": "PAINT", "line": "L"}), http.StatusBadRequest, "invalid_input")

	var list []stationDTO
	decode(t, e.do(t, http.MethodGet, "/api/stations?type=TEST", models.RoleSupervisor, nil), &list)
	if len(list) != 1 {
		t.Errorf("list = %+v", list)
	}
	expectError(t, e.do(t, http.MethodGet, "/api/stations", models.RoleOperator, nil), http.StatusForbidden, "forbidden")

	decode(t, e.do(t, http.MethodPut, path, models.RoleAdmin, gin.H{"line": "Line 3"}), &st)
	if st.Line != "Line 3" || st.Name != "Functional Test" {
		t.Errorf("updated = %+v", st)
	}

	if _, err := part.Create(e.db, part.CreateOpts{ID: "PZA-001", PartType: "X1", Lot: "L1"}); err != nil {
		t.Fatal(err)
	}
	e.do(t, http.MethodPost, "/api/trace-events", models.RoleOperator, visitBody(st.ID, t0, 10, "OK"))
	expectError(t, e.do(t, http.MethodDelete, path, models.RoleAdmin, nil), http.StatusConflict, "station_in_use")

	other, _ := stationID(t, e, gin.H{"name": "Spare", "type": "ENSAMBLE", "line": "Line 1"})
	if w := e.do(t, http.MethodDelete, fmt.Sprintf("/api/stations/%d", other), models.RoleAdmin, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete unused = %d", w.Code)
	}
	expectError(t, e.do(t, http.MethodGet, fmt.Sprintf("/api/stations/%d", other), models.RoleAdmin, nil), http.StatusNotFound, "station_not_found")
}

func stationID(t *testing.T, e *testEnv, body gin.H) (uint, int) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/stations", models.RoleAdmin, body)
	var st stationDTO
	decode(t, w, &st)
	return st.ID, w.Code
}

func TestMetrics(t *testing.T) {
	e := newEnv(t)
	stID := e.line(t)
	now := time.Now().UTC()
	e.do(t, http.MethodPost, "/api/trace-events", models.RoleOperator, visitBody(stID, now.Add(-time.Hour), 120, "SCRAP"))

	expectError(t, e.do(t, http.MethodGet, "/api/metrics/overview", models.RoleOperator, nil), http.StatusForbidden, "forbidden")

	var ov report.Overview
	decode(t, e.do(t, http.MethodGet, "/api/metrics/overview", models.RoleSupervisor, nil), &ov)
	if ov.TotalParts != 1 || ov.Scrapped != 1 || ov.Date != now.Format(time.DateOnly) {
		t.Errorf("overview = %+v", ov)
	}

	var byStatus []report.StatusCount
	decode(t, e.do(t, http.MethodGet, "/api/metrics/parts-by-status?part_type=X1", models.RoleSupervisor, nil), &byStatus)
	if len(byStatus) != 1 || byStatus[0].Status != models.PartScrapped {
		t.Errorf("by status = %+v", byStatus)
	}

	expectError(t, e.do(t, http.MethodGet, "/api/metrics/throughput", models.RoleSupervisor, nil), http.StatusBadRequest, "bad_request")
	var days []report.DayCount
	today := now.Format(time.DateOnly)
	decode(t, e.do(t, http.MethodGet, "/api/metrics/throughput?from="+today+"&to="+today, models.RoleSupervisor, nil), &days)
	if len(days) != 1 || days[0].Count != 1 {
		t.Errorf("throughput = %+v", days)
	}

	var cycle []report.StationCycle
	decode(t, e.do(t, http.MethodGet, "/api/metrics/station-cycle-time", models.RoleSupervisor, nil), &cycle)
	if len(cycle) != 1 || cycle[0].AvgCycleSeconds != 120 {
		t.Errorf("cycle = %+v", cycle)
	}

	var scrap []report.ScrapRow
	decode(t, e.do(t, http.MethodGet, fmt.Sprintf("/api/metrics/scrap-rate?station_id=%d", stID), models.RoleSupervisor, nil), &scrap)
	if len(scrap) != 1 || scrap[0].ScrapRate != 1 {
		t.Errorf("scrap = %+v", scrap)
	}
	expectError(t, e.do(t, http.MethodGet, "/api/metrics/scrap-rate?station_id=x", models.RoleSupervisor, nil), http.StatusBadRequest, "bad_request")

	var load []report.StationCount
	decode(t, e.do(t, http.MethodGet, "/api/metrics/station-load", models.RoleAdmin, nil), &load)
	if len(load) != 1 || load[0].EventsCount != 1 {
		t.Errorf("load = %+v", load)
	}
}
