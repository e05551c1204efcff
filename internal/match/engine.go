// Package match ranks catalog collecting events against labels (or cluster
// representatives) and keeps the best candidate per query.
package match

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/labelsort/internal/daterange"
	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/similarity"
	"github.com/ppiankov/labelsort/internal/worker"
)

// Options configures an Engine.
type Options struct {
	DateFilter         bool
	PermissiveFallback bool
	TopK               int
	MinScore           float64
	TextFields         []string
	Workers            int
}

// OptionsFromConfig extracts the matching options of a run.
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		DateFilter:         cfg.Match.DateFilter,
		PermissiveFallback: cfg.Match.PermissiveFallback,
		TopK:               cfg.Match.TopK,
		MinScore:           cfg.Match.MinScore,
		TextFields:         cfg.Match.TextFields,
		Workers:            cfg.Concurrency.Workers,
	}
}

// Query is the text and optional date range matched against the catalog.
type Query struct {
	ID        string
	Text      string
	DateRange *daterange.Range
}

// LabelQueries builds one query per label.
func LabelQueries(labels []model.Label) []Query {
	out := make([]Query, len(labels))
	for i, l := range labels {
		out[i] = Query{ID: l.ID, Text: l.Text, DateRange: l.DateRange}
	}
	return out
}

// ClusterQueries builds one query per cluster from its representative text.
// The date range is taken from the first member that has one.
func ClusterQueries(clusters []model.Cluster, labels []model.Label) []Query {
	byID := make(map[string]model.Label, len(labels))
	for _, l := range labels {
		byID[l.ID] = l
	}
	out := make([]Query, len(clusters))
	for i, c := range clusters {
		q := Query{ID: c.ID, Text: c.Representative}
		for _, m := range c.Members {
			if l, ok := byID[m]; ok && l.DateRange != nil {
				q.DateRange = l.DateRange
				break
			}
		}
		out[i] = q
	}
	return out
}

// Result is the outcome of a matching run. Every non-blank query appears
// exactly once, either in Matches or in Unmatched, in input order.
type Result struct {
	Matches   []model.MatchResult
	Unmatched []model.UnmatchedLabel
	Skipped   []model.Skipped
}

// Engine scores queries against a collecting event catalog.
type Engine struct {
	opts   Options
	scorer similarity.Scorer
	logger zerolog.Logger
}

// NewEngine builds a matching engine.
func NewEngine(opts Options, scorer similarity.Scorer, logger zerolog.Logger) (*Engine, error) {
	if scorer == nil {
		return nil, fmt.Errorf("matching requires a scorer")
	}
	if opts.TopK < 1 {
		return nil, model.ConfigErrorf("top_k must be at least 1, got %d", opts.TopK)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if len(opts.TextFields) == 0 {
		opts.TextFields = []string{model.EventFieldText}
	}
	return &Engine{opts: opts, scorer: scorer, logger: logger}, nil
}

type outcome struct {
	match     *model.MatchResult
	unmatched *model.UnmatchedLabel
}

// Match scores every query against the eligible events. Scoring runs on the
// worker pool; results keep query order.
func (e *Engine) Match(ctx context.Context, queries []Query, events []model.CollectingEvent) (*Result, error) {
	res := &Result{}
	kept := make([]Query, 0, len(queries))
	for i, q := range queries {
		if strings.TrimSpace(q.Text) == "" {
			res.Skipped = append(res.Skipped, model.Skipped{Kind: model.KindLabel, ID: q.ID, Index: i, Reason: "empty text"})
			continue
		}
		kept = append(kept, q)
	}

	searchable := make([]model.CollectingEvent, len(events))
	for i, ev := range events {
		ev.Text = SearchText(ev, e.opts.TextFields)
		searchable[i] = ev
	}

	outcomes, err := worker.Map(ctx, e.opts.Workers, len(kept), func(_ context.Context, i int) (outcome, error) {
		return e.matchOne(kept[i], searchable), nil
	})
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}

	bypassed := 0
	for _, o := range outcomes {
		if o.match != nil {
			res.Matches = append(res.Matches, *o.match)
			if o.match.DateFilterBypassed {
				bypassed++
			}
			continue
		}
		res.Unmatched = append(res.Unmatched, *o.unmatched)
	}

	e.logger.Debug().
		Int("queries", len(kept)).
		Int("events", len(events)).
		Int("matched", len(res.Matches)).
		Int("unmatched", len(res.Unmatched)).
		Int("date_filter_bypassed", bypassed).
		Msg("matching complete")

	return res, nil
}

func (e *Engine) matchOne(q Query, events []model.CollectingEvent) outcome {
	candidates, filtered, bypassed := e.eligible(q, events)
	if len(candidates) == 0 {
		return outcome{unmatched: &model.UnmatchedLabel{LabelID: q.ID, Reason: model.ReasonNoCandidates}}
	}

	ranked := make([]model.Candidate, len(candidates))
	for i, ev := range candidates {
		ranked[i] = model.Candidate{EventID: ev.ID, Score: e.scorer.Score(q.Text, ev.Text)}
	}
	Rank(ranked)

	best := ranked[0]
	if best.Score <= e.opts.MinScore {
		return outcome{unmatched: &model.UnmatchedLabel{LabelID: q.ID, Reason: model.ReasonBelowMinScore}}
	}

	if len(ranked) > e.opts.TopK {
		ranked = ranked[:e.opts.TopK]
	}
	return outcome{match: &model.MatchResult{
		LabelID:            q.ID,
		EventID:            best.EventID,
		Score:              best.Score,
		DateFiltered:       filtered,
		DateFilterBypassed: bypassed,
		Candidates:         ranked,
	}}
}

// eligible applies the date filter. When it leaves nothing and permissive
// fallback is on, every event becomes eligible and bypassed is reported.
func (e *Engine) eligible(q Query, events []model.CollectingEvent) (candidates []model.CollectingEvent, filtered, bypassed bool) {
	if !e.opts.DateFilter || q.DateRange == nil || !q.DateRange.IsKnown() {
		return events, false, false
	}

	for _, ev := range events {
		if ev.DateRange != nil && ev.DateRange.IsKnown() && q.DateRange.Overlaps(*ev.DateRange) {
			candidates = append(candidates, ev)
		}
	}
	if len(candidates) > 0 {
		return candidates, true, false
	}
	if e.opts.PermissiveFallback && len(events) > 0 {
		return events, false, true
	}
	return nil, true, false
}

// SearchText joins the selected fields of an event in the given order,
// skipping blank ones.
func SearchText(ev model.CollectingEvent, fields []string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		var v string
		switch f {
		case model.EventFieldLocation:
			v = ev.Location
		case model.EventFieldDate:
			v = ev.Date
		case model.EventFieldCollector:
			v = ev.Collector
		case model.EventFieldText:
			v = ev.Text
		}
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// Rank orders candidates by descending score; equal scores order by
// ascending event ID.
func Rank(c []model.Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].EventID < c[j].EventID
	})
}
