// Package export writes trace data to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/zulandar/partline/internal/models"
)

// EventsSheet is the sheet name EventsXLSX writes to.
const EventsSheet = "Events"

var eventsHeader = []interface{}{
	"ID", "Part", "Station", "Entered (UTC)", "Exited (UTC)", "Duration (s)", "Outcome", "Operator", "Notes",
}

// EventsXLSX writes events, one per row after a header, as an XLSX workbook.
// Times are written as RFC 3339 UTC strings so the sheet round-trips without
// locale-dependent date formats.
func EventsXLSX(w io.Writer, events []models.TraceEvent) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), EventsSheet); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(EventsSheet)
	if err != nil {
		return fmt.Errorf("export: stream writer: %w", err)
	}
	if err := sw.SetColWidth(4, 5, 22); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}
	if err := sw.SetRow("A1", eventsHeader); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}

	for i, ev := range events {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
		var operator interface{}
		if ev.OperatorID != nil {
			operator = *ev.OperatorID
		}
		row := []interface{}{
			ev.ID,
			ev.PartID,
			ev.StationID,
			ev.EnteredAt.UTC().Format(time.RFC3339),
			ev.ExitedAt.UTC().Format(time.RFC3339),
			ev.DurationSeconds,
			string(ev.Outcome),
			operator,
			ev.Notes,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}
