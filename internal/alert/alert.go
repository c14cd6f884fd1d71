// Package alert pushes line alerts to chat platforms.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zulandar/partline/internal/logger"
	"github.com/zulandar/partline/internal/models"
	"github.com/zulandar/partline/internal/report"
	"github.com/zulandar/partline/internal/trace"
)

// Color constants for alert severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// DefaultTimeout bounds a single notifier call.
const DefaultTimeout = 10 * time.Second

// Field is a key/value pair rendered as a structured field.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Alert is a platform-neutral notification.
type Alert struct {
	Title  string
	Body   string
	Color  string
	Fields []Field
}

// Notifier delivers an Alert to one platform.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// FormatScrap renders a SCRAP event for the part it scrapped.
func FormatScrap(ev models.TraceEvent, p models.Part) Alert {
	fields := []Field{
		{Name: "Part", Value: p.ID, Short: true},
		{Name: "Type / Lot", Value: p.PartType + " / " + p.Lot, Short: true},
		{Name: "Station", Value: fmt.Sprintf("#%d", ev.StationID), Short: true},
		{Name: "Event", Value: fmt.Sprintf("#%d", ev.ID), Short: true},
		{Name: "Reworks", Value: fmt.Sprintf("%d", p.ReworkCount), Short: true},
		{Name: "Exited", Value: ev.ExitedAt.UTC().Format(time.RFC3339), Short: true},
	}
	body := fmt.Sprintf("Part %s was scrapped at station #%d after %.0fs.", p.ID, ev.StationID, ev.DurationSeconds)
	if ev.Notes != "" {
		body += "\n" + ev.Notes
	}
	return Alert{
		Title:  "Part scrapped: " + p.ID,
		Body:   body,
		Color:  ColorError,
		Fields: fields,
	}
}

// FormatOverview renders an overview snapshot as a digest.
func FormatOverview(ov *report.Overview) Alert {
	color := ColorSuccess
	if ov.ScrapToday > 0 {
		color = ColorWarning
	}
	return Alert{
		Title: "Line overview " + ov.Date,
		Color: color,
		Fields: []Field{
			{Name: "Total parts", Value: fmt.Sprintf("%d", ov.TotalParts), Short: true},
			{Name: "In process", Value: fmt.Sprintf("%d", ov.InProcess), Short: true},
			{Name: "Completed", Value: fmt.Sprintf("%d", ov.Completed), Short: true},
			{Name: "Scrapped", Value: fmt.Sprintf("%d", ov.Scrapped), Short: true},
			{Name: "Completed today", Value: fmt.Sprintf("%d", ov.CompletedToday), Short: true},
			{Name: "Scrap today", Value: fmt.Sprintf("%d", ov.ScrapToday), Short: true},
		},
	}
}

// Dispatcher fans alerts out to every notifier. Delivery failures are logged
// and never returned to the code that raised the alert.
type Dispatcher struct {
	notifiers []Notifier
	log       *logger.Logger
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A nil log discards output.
func NewDispatcher(log *logger.Logger, notifiers ...Notifier) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		notifiers: notifiers,
		log:       log.With("component", "alert"),
		timeout:   DefaultTimeout,
	}
}

// Len returns the number of configured notifiers.
func (d *Dispatcher) Len() int {
	return len(d.notifiers)
}

// Dispatch sends a to every notifier concurrently and waits for all of them.
// It returns the joined delivery errors, which have already been logged.
func (d *Dispatcher) Dispatch(ctx context.Context, a Alert) error {
	errs := make([]error, len(d.notifiers))
	var wg sync.WaitGroup
	for i, n := range d.notifiers {
		wg.Add(1)
		go func(i int, n Notifier) {
			defer wg.Done()
			nctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := n.Notify(nctx, a); err != nil {
				d.log.Warn("alert delivery failed", "notifier", n.Name(), "title", a.Title, "error", err)
				errs[i] = fmt.Errorf("alert: %s: %w", n.Name(), err)
			}
		}(i, n)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Go dispatches a in the background. Wait blocks until it finishes.
func (d *Dispatcher) Go(a Alert) {
	if len(d.notifiers) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Dispatch(context.Background(), a)
	}()
}

// Wait blocks until every background dispatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Hook returns a trace hook that raises an alert for every SCRAP event.
func (d *Dispatcher) Hook() trace.Hook {
	return func(_ context.Context, ev models.TraceEvent, p models.Part) {
		if ev.Outcome != models.OutcomeScrap {
			return
		}
		d.Go(FormatScrap(ev, p))
	}
}

// Sink returns a report sink that posts each overview snapshot as a digest.
func (d *Dispatcher) Sink() report.Sink {
	return func(ctx context.Context, ov *report.Overview) {
		d.Dispatch(ctx, FormatOverview(ov))
	}
}
