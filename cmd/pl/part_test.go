package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"github.com/zulandar/partline/internal/export"
)

func TestPartCreateAndShow(t *testing.T) {
	cfg := seeded(t)

	out, err := run(t, nil, "part", "create", "PZA-900", "--type", "X9", "--lot", "L900", "-c", cfg)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "Created part PZA-900 (type X9, lot L900)") {
		t.Errorf("create output = %q", out)
	}

	out, err = run(t, nil, "part", "show", "PZA-900", "-c", cfg)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"ID:          PZA-900", "Status:      IN_PROCESS", "Reworks:     0"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Station:") {
		t.Errorf("new part should have no last station:\n%s", out)
	}

	if _, err := run(t, nil, "part", "create", "PZA-900", "--type", "X9", "--lot", "L900", "-c", cfg); err == nil {
		t.Error("duplicate create succeeded")
	}
	if _, err := run(t, nil, "part", "create", "PZA-901", "--lot", "L900", "-c", cfg); err == nil {
		t.Error("create without --type succeeded")
	}
}

func TestEventRecord(t *testing.T) {
	cfg := seeded(t)

	out, err := run(t, nil, "event", "record", "-c", cfg,
		"--part", "PZA-003", "--station", "2",
		"--entered", "2025-06-01T08:00:00Z", "--exited", "2025-06-01T08:05:00Z",
		"--outcome", "retrabajo", "--operator", "2", "--notes", "burr on flange")
	if err != nil {
		t.Fatalf("record: %v\n%s", err, out)
	}
	if !strings.Contains(out, "part PZA-003 at station 2, REWORK (5m0s)") {
		t.Errorf("record output = %q", out)
	}

	out, _ = run(t, nil, "part", "show", "PZA-003", "-c", cfg)
	if !strings.Contains(out, "Status:      IN_PROCESS") || !strings.Contains(out, "Reworks:     1") {
		t.Errorf("part after rework:\n%s", out)
	}

	_, err = run(t, nil, "event", "record", "-c", cfg,
		"--part", "PZA-003", "--station", "2",
		"--entered", "2025-06-01T08:05:00Z", "--exited", "2025-06-01T08:00:00Z",
		"--outcome", "OK")
	if err == nil || !strings.Contains(err.Error(), "exit time must be after entry time") {
		t.Errorf("reversed range error = %v", err)
	}

	_, err = run(t, nil, "event", "record", "-c", cfg,
		"--part", "PZA-003", "--station", "2",
		"--entered", "yesterday", "--exited", "2025-06-01T08:00:00Z",
		"--outcome", "OK")
	if err == nil || !strings.Contains(err.Error(), "--entered") {
		t.Errorf("bad time error = %v", err)
	}

	_, err = run(t, nil, "event", "record", "-c", cfg,
		"--part", "GHOST", "--station", "2",
		"--entered", "2025-06-01T08:00:00Z", "--exited", "2025-06-01T08:05:00Z",
		"--outcome", "OK")
	if err == nil || !strings.Contains(err.Error(), "part not found") {
		t.Errorf("unknown part error = %v", err)
	}
}

func TestPartHistoryAndVerify(t *testing.T) {
	cfg := seeded(t)

	out, err := run(t, nil, "part", "history", "PZA-004", "-c", cfg)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("history output:\n%s", out)
	}
	if !strings.Contains(lines[1], "OK") || !strings.Contains(lines[2], "REWORK") {
		t.Errorf("history not in entry order:\n%s", out)
	}

	if _, err := run(t, nil, "part", "create", "PZA-777", "--type", "X1", "--lot", "L1", "-c", cfg); err != nil {
		t.Fatal(err)
	}
	out, _ = run(t, nil, "part", "history", "PZA-777", "-c", cfg)
	if !strings.Contains(out, "No trace events for PZA-777.") {
		t.Errorf("empty history output = %q", out)
	}

	out, err = run(t, nil, "part", "verify", "PZA-004", "-c", cfg)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Events:   2") || !strings.Contains(out, "Consistent.") {
		t.Errorf("verify output:\n%s", out)
	}

	if _, err := run(t, nil, "part", "verify", "GHOST", "-c", cfg); err == nil {
		t.Error("verify of unknown part succeeded")
	}
}

func TestExportEvents(t *testing.T) {
	cfg := seeded(t)
	dest := filepath.Join(t.TempDir(), "events.xlsx")

	out, err := run(t, nil, "export", "events", "-c", cfg, "-o", dest)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "Exported 6 trace events") {
		t.Errorf("export output = %q", out)
	}

	f, err := excelize.OpenFile(dest)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.EventsSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 7 {
		t.Errorf("rows = %d, want header + 6", len(rows))
	}

	out, err = run(t, nil, "export", "events", "-c", cfg, "-o", dest, "--outcome", "scrap")
	if err != nil {
		t.Fatalf("export scrap: %v", err)
	}
	if !strings.Contains(out, "Exported 1 trace events") {
		t.Errorf("scrap export output = %q", out)
	}

	if _, err := run(t, nil, "export", "events", "-c", cfg, "-o", dest, "--from", "monday"); err == nil {
		t.Error("bad --from accepted")
	}
}

func TestReportOverview(t *testing.T) {
	cfg := seeded(t)
	out, err := run(t, nil, "report", "overview", "-c", cfg)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	for _, want := range []string{"Parts:           5", "Scrapped:        1", "Completed:       3", "In process:      1", "STATION", "Initial Inspection"} {
		if !strings.Contains(out, want) {
			t.Errorf("overview missing %q:\n%s", want, out)
		}
	}
}

func TestUserAdd(t *testing.T) {
	cfg := seeded(t)

	out, err := run(t, strings.NewReader("s3cret-pass\n"), "user", "add", "-c", cfg,
		"--name", "Night Shift", "--email", "Night@Example.com", "--role", "supervisor")
	if err != nil {
		t.Fatalf("user add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "(night@example.com, SUPERVISOR)") {
		t.Errorf("user add output = %q", out)
	}

	if _, err := run(t, strings.NewReader("s3cret-pass\n"), "user", "add", "-c", cfg,
		"--name", "Dup", "--email", "night@example.com"); err == nil {
		t.Error("duplicate email accepted")
	}
	if _, err := run(t, strings.NewReader("x\n"), "user", "add", "-c", cfg,
		"--name", "Short", "--email", "short@example.com"); err == nil {
		t.Error("short password accepted")
	}
	if _, err := run(t, nil, "user", "add", "-c", cfg,
		"--name", "Bad", "--email", "bad@example.com", "--role", "OWNER"); err == nil {
		t.Error("unknown role accepted")
	}
}
