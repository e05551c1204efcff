// Package cluster groups label transcripts that describe the same physical
// label or collecting occasion.
//
// The default threshold mode is a greedy single pass: each label joins the
// best-scoring open cluster if that score reaches the threshold, otherwise it
// opens a new one. Results therefore depend on input order, and raising the
// threshold does not always refine the partition: two labels can share a
// cluster at a higher threshold and be apart at a lower one, because the
// lower threshold let the first of them join an earlier seed. Linkage mode
// is the order-independent alternative and is monotone in the threshold;
// use it when partitions at several thresholds must nest. Field mode ignores
// text and compares structured fields only.
package cluster

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/similarity"
)

// Options configures an Engine.
type Options struct {
	Mode           string
	Threshold      float64
	Representative string
	FieldMatch     string
	FieldFuzzyMin  float64
	IDFormat       string
	SubMedoid      model.SubMedoidConfig
	Workers        int
}

// OptionsFromConfig extracts the clustering options of a run.
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		Mode:           cfg.Cluster.Mode,
		Threshold:      cfg.Cluster.Threshold,
		Representative: cfg.Cluster.Representative,
		FieldMatch:     cfg.Cluster.FieldMatch,
		FieldFuzzyMin:  cfg.Cluster.FieldFuzzyMin,
		IDFormat:       cfg.Cluster.IDFormat,
		SubMedoid:      cfg.Cluster.SubMedoid,
		Workers:        cfg.Concurrency.Workers,
	}
}

// Result is the outcome of a clustering run.
type Result struct {
	Clusters []model.Cluster
	Skipped  []model.Skipped
}

// Engine clusters labels.
type Engine struct {
	opts   Options
	scorer similarity.Scorer
	norm   *similarity.Normalizer
	ids    IDFormatter
	logger zerolog.Logger
}

// NewEngine validates opts and builds an engine. scorer is used by the
// threshold and linkage modes; norm feeds the edit distances of the pick
// and alignment policies and of sub-clustering.
func NewEngine(opts Options, scorer similarity.Scorer, norm *similarity.Normalizer, logger zerolog.Logger) (*Engine, error) {
	switch opts.Mode {
	case model.ClusterModeThreshold, model.ClusterModeLinkage:
		if scorer == nil {
			return nil, fmt.Errorf("cluster mode %s requires a scorer", opts.Mode)
		}
		if opts.Threshold <= 0 || opts.Threshold > 1 {
			return nil, model.ConfigErrorf("threshold must be in (0, 1], got %v", opts.Threshold)
		}
	case model.ClusterModeField:
		if opts.FieldMatch != model.FieldMatchExact && opts.FieldMatch != model.FieldMatchFuzzy {
			return nil, model.ConfigErrorf("unknown field match %q (supported: exact, fuzzy)", opts.FieldMatch)
		}
	default:
		return nil, model.ConfigErrorf("unknown cluster mode %q (supported: threshold, linkage, field)", opts.Mode)
	}

	switch opts.Representative {
	case model.RepresentativeFirst, model.RepresentativePick, model.RepresentativeAlignment:
	default:
		return nil, model.ConfigErrorf("unknown representative policy %q (supported: first, pick, alignment)", opts.Representative)
	}

	ids, err := ParseIDFormat(opts.IDFormat)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	return &Engine{opts: opts, scorer: scorer, norm: norm, ids: ids, logger: logger}, nil
}

// group is a cluster under construction; members index the label slice.
type group struct {
	members []int
	primary int // position of the primary cluster, numbering the ID
	sub     int // 1-based position among sub-clusters, 0 when not split
}

// Cluster partitions labels. Every label with text lands in exactly one
// cluster; blank labels are skipped and reported.
func (e *Engine) Cluster(ctx context.Context, labels []model.Label) (*Result, error) {
	kept := make([]model.Label, 0, len(labels))
	var skipped []model.Skipped
	for i, l := range labels {
		if l.IsBlank() {
			skipped = append(skipped, model.Skipped{Kind: model.KindLabel, ID: l.ID, Index: i, Reason: "empty text"})
			continue
		}
		kept = append(kept, l)
	}

	var (
		groups []group
		err    error
	)
	switch e.opts.Mode {
	case model.ClusterModeThreshold:
		groups, err = e.aggregate(ctx, kept)
	case model.ClusterModeLinkage:
		groups, err = e.link(ctx, kept)
	case model.ClusterModeField:
		groups = e.aggregateFields(kept)
	}
	if err != nil {
		return nil, err
	}
	primary := len(groups)

	groups, err = e.refine(ctx, kept, groups)
	if err != nil {
		return nil, fmt.Errorf("sub-clustering: %w", err)
	}

	clusters := make([]model.Cluster, 0, len(groups))
	for _, g := range groups {
		rep, err := e.representative(ctx, kept, g.members)
		if err != nil {
			return nil, fmt.Errorf("representative: %w", err)
		}
		c := model.Cluster{Representative: rep, Members: make([]string, len(g.members))}
		for i, m := range g.members {
			c.Members[i] = kept[m].ID
		}
		c.ID = e.ids.Format(g.primary + 1)
		if g.sub > 0 {
			c.Parent = c.ID
			c.ID += "." + strconv.Itoa(g.sub)
		}
		clusters = append(clusters, c)
	}

	e.logger.Debug().
		Str("mode", e.opts.Mode).
		Int("labels", len(kept)).
		Int("primary_clusters", primary).
		Int("clusters", len(clusters)).
		Int("skipped", len(skipped)).
		Msg("clustering complete")

	return &Result{Clusters: clusters, Skipped: skipped}, nil
}

// IDFormatter renders cluster numbers such as "cluster00001".
type IDFormatter struct {
	prefix string
	width  int
}

// ParseIDFormat reads a "<prefix>:<digits>" format, e.g. "cluster:5".
func ParseIDFormat(format string) (IDFormatter, error) {
	i := strings.LastIndex(format, ":")
	if i < 0 {
		return IDFormatter{}, model.ConfigErrorf("id format %q must be <prefix>:<digits>", format)
	}
	width, err := strconv.Atoi(format[i+1:])
	if err != nil || width < 1 || width > 12 {
		return IDFormatter{}, model.ConfigErrorf("id format %q: digits must be between 1 and 12", format)
	}
	return IDFormatter{prefix: format[:i], width: width}, nil
}

// Format renders the n-th identifier.
func (f IDFormatter) Format(n int) string {
	return fmt.Sprintf("%s%0*d", f.prefix, f.width, n)
}
