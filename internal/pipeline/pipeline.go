// Package pipeline wires enrichment, clustering, matching and reconciliation
// into the batch operations exposed by the CLI.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ppiankov/labelsort/internal/cache"
	"github.com/ppiankov/labelsort/internal/cluster"
	"github.com/ppiankov/labelsort/internal/daterange"
	"github.com/ppiankov/labelsort/internal/enrich"
	"github.com/ppiankov/labelsort/internal/geo"
	"github.com/ppiankov/labelsort/internal/llm"
	"github.com/ppiankov/labelsort/internal/match"
	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/names"
	"github.com/ppiankov/labelsort/internal/score"
	"github.com/ppiankov/labelsort/internal/similarity"
)

// Command names recorded in reports.
const (
	CommandCluster   = "cluster"
	CommandMatch     = "match"
	CommandReconcile = "reconcile"
	CommandRun       = "run"
)

// Pipeline orchestrates a labelsort run
type Pipeline struct {
	enricher   *enrich.Enricher
	clusterer  *cluster.Engine
	matcher    *match.Engine
	aggregator *score.Aggregator
	summarizer *llm.Summarizer // Optional LLM summarizer (nil if disabled)
	config     *model.Config
	logger     zerolog.Logger
	now        func() time.Time

	inputSkipped []model.Skipped // Records dropped while loading inputs
}

// NewPipeline validates cfg and builds every engine before any data is
// processed. collectors may be empty, which disables name recognition.
func NewPipeline(cfg *model.Config, collectors []model.Collector, logger zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	memo := cache.NewMemoryCache[[]string](cfg.Similarity.CacheTTL, 2*cfg.Similarity.CacheTTL)
	norm := similarity.NewNormalizer(memo, cfg.Similarity.CacheTTL)

	clusterScorer, err := newScorer(cfg.Cluster.Scorer, norm, cfg.Similarity.FuzzyTokenMin)
	if err != nil {
		return nil, err
	}
	matchScorer, err := newScorer(cfg.Match.Scorer, norm, cfg.Similarity.FuzzyTokenMin)
	if err != nil {
		return nil, err
	}

	clusterer, err := cluster.NewEngine(cluster.OptionsFromConfig(cfg), clusterScorer, norm, logger.With().Str("component", "cluster").Logger())
	if err != nil {
		return nil, err
	}
	matcher, err := match.NewEngine(match.OptionsFromConfig(cfg), matchScorer, logger.With().Str("component", "match").Logger())
	if err != nil {
		return nil, err
	}
	aggregator, err := score.NewAggregator(score.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	enricher := &enrich.Enricher{
		Workers: cfg.Concurrency.Workers,
		Logger:  logger.With().Str("component", "enrich").Logger(),
	}
	if cfg.Enrich.Dates {
		enricher.Dates = daterange.NewParser()
	}
	if len(collectors) > 0 {
		enricher.Names = names.NewMatcher(collectors, cfg.Enrich.NameThreshold)
	}
	if cfg.Enrich.Geocode {
		client, err := geo.NewClient(geo.OptionsFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		enricher.Geocoder = client
	} else if cfg.Enrich.Coordinates {
		enricher.Geocoder = geo.Coordinates{}
	}

	var summarizer *llm.Summarizer
	if cfg.LLM.Provider != "" {
		summarizer, err = llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			return nil, fmt.Errorf("initialize LLM provider: %w", err)
		}
	}

	return &Pipeline{
		enricher:   enricher,
		clusterer:  clusterer,
		matcher:    matcher,
		aggregator: aggregator,
		summarizer: summarizer,
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func newScorer(name string, norm *similarity.Normalizer, fuzzyMin float64) (similarity.Scorer, error) {
	mode, err := similarity.ParseMode(name)
	if err != nil {
		return nil, err
	}
	return similarity.New(mode, norm, fuzzyMin)
}

// Cluster enriches labels and groups them.
func (p *Pipeline) Cluster(ctx context.Context, labels []model.Label) (*model.Report, []model.Label, error) {
	report := p.newReport(CommandCluster)

	enriched, skipped, err := p.enricher.Labels(ctx, labels)
	if err != nil {
		return nil, nil, fmt.Errorf("enrich labels: %w", err)
	}
	report.Skipped = append(report.Skipped, skipped...)

	res, err := p.clusterer.Cluster(ctx, enriched)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster labels: %w", err)
	}
	report.Clusters = res.Clusters
	report.Skipped = append(report.Skipped, res.Skipped...)
	kept := dropSkipped(enriched, res.Skipped)

	report.Summary = model.Summary{Labels: len(kept), Clusters: len(res.Clusters)}
	p.finish(ctx, report)
	return report, kept, nil
}

// Match ranks catalog events for every label, or for every cluster
// representative when clusters is non-empty.
func (p *Pipeline) Match(ctx context.Context, labels []model.Label, events []model.CollectingEvent, clusters []model.Cluster) (*model.Report, []model.Label, []model.CollectingEvent, error) {
	report := p.newReport(CommandMatch)

	enriched, parsed, err := p.prepare(ctx, report, labels, events)
	if err != nil {
		return nil, nil, nil, err
	}

	queries := match.LabelQueries(enriched)
	if len(clusters) > 0 {
		queries = match.ClusterQueries(clusters, enriched)
		report.Clusters = clusters
	}

	res, err := p.matcher.Match(ctx, queries, parsed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("match: %w", err)
	}
	report.Matches = res.Matches
	report.UnmatchedLabels = res.Unmatched
	report.Skipped = append(report.Skipped, res.Skipped...)
	if len(clusters) == 0 {
		enriched = dropSkipped(enriched, res.Skipped)
	}

	report.Summary = model.Summary{Labels: len(enriched), Events: len(parsed), Clusters: len(clusters), Matched: len(res.Matches)}
	if s, ok := dateFallbackSignal(res.Matches); ok {
		report.Summary.Signals = append(report.Summary.Signals, s)
	}
	if len(res.Unmatched) > 0 {
		report.Summary.Signals = append(report.Summary.Signals, unmatchedLabelSignal(res.Unmatched, len(queries)))
	}

	p.finish(ctx, report)
	return report, enriched, parsed, nil
}

// Reconcile computes cluster confidences from existing clusters and
// per-label matches. Matches made per cluster are rejected.
func (p *Pipeline) Reconcile(ctx context.Context, clusters []model.Cluster, matches []model.MatchResult, events []model.CollectingEvent) (*model.Report, error) {
	if err := checkLabelMatches(clusters, matches); err != nil {
		return nil, err
	}
	report := p.newReport(CommandReconcile)
	report.Clusters = clusters
	report.Matches = matches
	p.reconcile(report, clusters, matches, events)
	p.finish(ctx, report)
	return report, nil
}

// checkLabelMatches fails when no match query is a cluster member. That is
// the shape of a match run over cluster representatives, whose query IDs
// are cluster IDs.
func checkLabelMatches(clusters []model.Cluster, matches []model.MatchResult) error {
	if len(clusters) == 0 || len(matches) == 0 {
		return nil
	}
	members := make(map[string]bool)
	ids := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		ids[c.ID] = true
		for _, m := range c.Members {
			members[m] = true
		}
	}

	perCluster := 0
	for _, m := range matches {
		if members[m.LabelID] {
			return nil
		}
		if ids[m.LabelID] {
			perCluster++
		}
	}
	if perCluster > 0 {
		return model.ConfigErrorf("matches were made per cluster (%d of %d queries are cluster IDs); reconcile needs a label-level match report", perCluster, len(matches))
	}
	return model.ConfigErrorf("none of the %d matches refers to a clustered label", len(matches))
}

// Run clusters labels, matches every label and reconciles both in one pass.
func (p *Pipeline) Run(ctx context.Context, labels []model.Label, events []model.CollectingEvent) (*model.Report, []model.Label, []model.CollectingEvent, error) {
	report := p.newReport(CommandRun)

	enriched, parsed, err := p.prepare(ctx, report, labels, events)
	if err != nil {
		return nil, nil, nil, err
	}

	cres, err := p.clusterer.Cluster(ctx, enriched)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cluster labels: %w", err)
	}
	report.Clusters = cres.Clusters
	report.Skipped = append(report.Skipped, cres.Skipped...)
	kept := dropSkipped(enriched, cres.Skipped)

	mres, err := p.matcher.Match(ctx, match.LabelQueries(kept), parsed)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("match: %w", err)
	}
	report.Matches = mres.Matches
	report.UnmatchedLabels = mres.Unmatched

	p.reconcile(report, cres.Clusters, mres.Matches, parsed)
	if len(mres.Unmatched) > 0 {
		report.Summary.Signals = append(report.Summary.Signals, unmatchedLabelSignal(mres.Unmatched, len(kept)))
	}

	p.finish(ctx, report)
	return report, kept, parsed, nil
}

// dropSkipped removes the labels an engine reported as skipped. Entries point
// at labels by index; degraded entries keep their label.
func dropSkipped(labels []model.Label, skipped []model.Skipped) []model.Label {
	drop := make(map[int]bool)
	for _, s := range skipped {
		if s.Kind == model.KindLabel && !s.Degraded && s.Index >= 0 && s.Index < len(labels) && labels[s.Index].ID == s.ID {
			drop[s.Index] = true
		}
	}
	if len(drop) == 0 {
		return labels
	}
	kept := make([]model.Label, 0, len(labels)-len(drop))
	for i, l := range labels {
		if !drop[i] {
			kept = append(kept, l)
		}
	}
	return kept
}

// prepare enriches both record sets and records degraded inputs.
func (p *Pipeline) prepare(ctx context.Context, report *model.Report, labels []model.Label, events []model.CollectingEvent) ([]model.Label, []model.CollectingEvent, error) {
	enriched, skipped, err := p.enricher.Labels(ctx, labels)
	if err != nil {
		return nil, nil, fmt.Errorf("enrich labels: %w", err)
	}
	report.Skipped = append(report.Skipped, skipped...)

	parsed, degraded := p.enricher.Events(events)
	report.Skipped = append(report.Skipped, degraded...)
	return enriched, parsed, nil
}

func (p *Pipeline) reconcile(report *model.Report, clusters []model.Cluster, matches []model.MatchResult, events []model.CollectingEvent) {
	res := p.aggregator.Reconcile(clusters, matches, events)
	report.Confidences = res.Confidences
	report.UnmatchedClusters = res.UnmatchedClusters
	report.UnmatchedEvents = res.UnmatchedEvents
	report.Summary = res.Summary
}

// RecordSkipped registers records dropped before they reached the pipeline,
// such as malformed input rows, so every later report lists them.
func (p *Pipeline) RecordSkipped(skipped ...model.Skipped) {
	p.inputSkipped = append(p.inputSkipped, skipped...)
}

func (p *Pipeline) newReport(command string) *model.Report {
	return &model.Report{
		RunID:       uuid.NewString(),
		Command:     command,
		GeneratedAt: p.now().UTC(),
		Skipped:     append([]model.Skipped(nil), p.inputSkipped...),
	}
}

// finish adds the skipped-record signal and, when enabled, the curator note.
// The note is generated last and never changes any computed value.
func (p *Pipeline) finish(ctx context.Context, report *model.Report) {
	if s, ok := skippedSignal(report.Skipped); ok {
		report.Summary.Signals = append(report.Summary.Signals, s)
	}

	p.logger.Info().
		Str("run_id", report.RunID).
		Str("command", report.Command).
		Int("clusters", len(report.Clusters)).
		Int("matches", len(report.Matches)).
		Int("skipped", len(report.Skipped)).
		Msg("run complete")

	if !p.summarizer.IsEnabled() {
		return
	}
	note, err := p.summarizer.GenerateSummary(ctx, *report)
	if err != nil {
		p.logger.Warn().Err(err).Msg("LLM summary generation failed")
		return
	}
	report.LLM = note
}

func dateFallbackSignal(matches []model.MatchResult) (model.Signal, bool) {
	bypassed := 0
	for _, m := range matches {
		if m.DateFilterBypassed {
			bypassed++
		}
	}
	if bypassed == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalDateFallback,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d matches ignored the date filter (permissive fallback)", bypassed),
		Data:        map[string]interface{}{"bypassed": bypassed, "matched": len(matches)},
	}, true
}

func unmatchedLabelSignal(unmatched []model.UnmatchedLabel, queries int) model.Signal {
	reasons := make(map[string]int)
	for _, u := range unmatched {
		reasons[string(u.Reason)]++
	}
	severity := model.SeverityInfo
	if len(unmatched)*2 > queries {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalUnmatchedLabels,
		Severity:    severity,
		Description: fmt.Sprintf("%d/%d queries have no match", len(unmatched), queries),
		Data:        map[string]interface{}{"unmatched": len(unmatched), "total": queries, "reasons": reasons},
	}
}

// skippedSignal counts dropped and degraded records per kind. Degraded
// records stay in the run, so they alone only raise an info signal.
func skippedSignal(skipped []model.Skipped) (model.Signal, bool) {
	if len(skipped) == 0 {
		return model.Signal{}, false
	}
	dropped, degraded := 0, 0
	byKind := make(map[string]int)
	for _, s := range skipped {
		byKind[string(s.Kind)]++
		if s.Degraded {
			degraded++
		} else {
			dropped++
		}
	}

	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	severity := model.SeverityInfo
	if dropped > 0 {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalSkippedRecords,
		Severity:    severity,
		Description: fmt.Sprintf("%d records skipped, %d degraded", dropped, degraded),
		Data: map[string]interface{}{
			"skipped":  dropped,
			"degraded": degraded,
			"by_kind":  byKind,
			"kinds":    kinds,
		},
	}, true
}
