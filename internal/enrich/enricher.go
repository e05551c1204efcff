// Package enrich fills the optional structured fields of labels and parses
// catalog event dates through pluggable collaborators.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/labelsort/internal/daterange"
	"github.com/ppiankov/labelsort/internal/geo"
	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/names"
	"github.com/ppiankov/labelsort/internal/worker"
)

// DateParser extracts a date range from free text. Find also returns the
// text the range was read from.
type DateParser interface {
	Parse(text string) (daterange.Range, bool)
	Find(text string) (daterange.Range, string, bool)
}

// Geocoder resolves a place mentioned in free text.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (geo.Place, bool, error)
}

// NameMatcher recognizes a collector mentioned in free text.
type NameMatcher interface {
	Find(text string) (names.Hit, bool)
}

// Enricher runs the configured collaborators. Any of them may be nil.
type Enricher struct {
	Dates    DateParser
	Geocoder Geocoder
	Names    NameMatcher
	Workers  int
	Logger   zerolog.Logger
}

type labelOutcome struct {
	label   model.Label
	skipped *model.Skipped
}

// Labels returns enriched copies of labels in input order. Fields already
// present are kept. A geocoding failure leaves the location unset and is
// reported as a degraded label; it never aborts the batch.
func (e *Enricher) Labels(ctx context.Context, labels []model.Label) ([]model.Label, []model.Skipped, error) {
	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}

	outcomes, err := worker.Map(ctx, workers, len(labels), func(ctx context.Context, i int) (labelOutcome, error) {
		return e.label(ctx, i, labels[i]), nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("enrich labels: %w", err)
	}

	out := make([]model.Label, len(outcomes))
	var skipped []model.Skipped
	for i, o := range outcomes {
		out[i] = o.label
		if o.skipped != nil {
			skipped = append(skipped, *o.skipped)
		}
	}

	e.Logger.Debug().Int("labels", len(out)).Int("degraded", len(skipped)).Msg("labels enriched")
	return out, skipped, nil
}

func (e *Enricher) label(ctx context.Context, i int, l model.Label) labelOutcome {
	o := labelOutcome{label: l}
	if l.IsBlank() {
		return o
	}

	var verbatim model.Verbatim
	if l.Verbatim != nil {
		verbatim = *l.Verbatim
	}
	if e.Dates != nil && l.DateRange == nil {
		if r, span, ok := e.Dates.Find(l.Text); ok {
			o.label.DateRange = &r
			verbatim.Date = span
		}
	}
	if e.Names != nil && l.Collector == nil {
		if hit, ok := e.Names.Find(l.Text); ok {
			o.label.Collector = model.StringPtr(hit.CollectorID)
			verbatim.Collector = hit.Matched
		}
	}
	if e.Geocoder != nil && l.Location == nil {
		place, ok, err := e.Geocoder.Geocode(ctx, l.Text)
		switch {
		case err != nil:
			e.Logger.Warn().Err(err).Str("label", l.ID).Msg("geocoding failed")
			o.skipped = &model.Skipped{Kind: model.KindLabel, ID: l.ID, Index: i, Reason: "geocode: " + err.Error(), Degraded: true}
		case ok:
			o.label.Location = model.StringPtr(place.Address())
			verbatim.Geo = place.Query
		}
	}
	if verbatim != (model.Verbatim{}) {
		o.label.Verbatim = &verbatim
	}
	return o
}

// Events parses each event's raw date. Events whose date is missing or
// cannot be parsed keep an unknown range and are reported as degraded; the
// date filter then excludes them. A blank Text is rebuilt from the other
// fields.
func (e *Enricher) Events(events []model.CollectingEvent) ([]model.CollectingEvent, []model.Skipped) {
	out := make([]model.CollectingEvent, len(events))
	var skipped []model.Skipped

	for i, ev := range events {
		if strings.TrimSpace(ev.Text) == "" {
			ev.Text = EventText(ev)
		}

		if e.Dates != nil && ev.DateRange == nil {
			raw := strings.TrimSpace(ev.Date)
			if r, ok := e.Dates.Parse(raw); ok {
				ev.DateRange = &r
			} else {
				reason := fmt.Sprintf("unparseable date %q", raw)
				if raw == "" {
					reason = "no date"
				}
				skipped = append(skipped, model.Skipped{Kind: model.KindEvent, ID: ev.ID, Index: i, Reason: reason, Degraded: true})
			}
		}
		out[i] = ev
	}

	if len(skipped) > 0 {
		e.Logger.Info().Int("events", len(events)).Int("undated", len(skipped)).Msg("some events have no usable date")
	}
	return out, skipped
}

// EventText joins the non-empty location, date and collector of an event.
func EventText(ev model.CollectingEvent) string {
	var parts []string
	for _, p := range []string{ev.Location, ev.Date, ev.Collector} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}
