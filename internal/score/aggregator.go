package score

import (
	"fmt"
	"sort"

	"github.com/ppiankov/labelsort/internal/model"
)

// Options configures an Aggregator.
type Options struct {
	Confidence     string
	BulkConfidence float64
	BulkFrequency  float64
}

// OptionsFromConfig extracts the aggregation options of a run.
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		Confidence:     cfg.Score.Confidence,
		BulkConfidence: cfg.Score.BulkConfidence,
		BulkFrequency:  cfg.Score.BulkFrequency,
	}
}

// Result is the reconciliation of clusters with match results.
type Result struct {
	Confidences       []model.ClusterConfidence
	UnmatchedClusters []string
	UnmatchedEvents   []string
	Summary           model.Summary
}

// Aggregator reconciles cluster membership with per-label matches
type Aggregator struct {
	opts    Options
	fn      ConfidenceFunc
	formula string
}

// NewAggregator creates an aggregator using the configured confidence function
func NewAggregator(opts Options) (*Aggregator, error) {
	fn, err := ConfidenceByName(opts.Confidence)
	if err != nil {
		return nil, err
	}
	name := opts.Confidence
	if name == "" {
		name = model.ConfidenceProduct
	}
	return &Aggregator{opts: opts, fn: fn, formula: formulas[name]}, nil
}

// NewAggregatorFunc creates an aggregator with a caller-supplied function.
func NewAggregatorFunc(opts Options, fn ConfidenceFunc, formula string) *Aggregator {
	return &Aggregator{opts: opts, fn: fn, formula: formula}
}

type tally struct {
	eventID string
	count   int
	sum     float64
}

// Reconcile computes one ClusterConfidence per cluster, in cluster order, and
// lists the clusters and catalog events that received no match.
func (a *Aggregator) Reconcile(clusters []model.Cluster, matches []model.MatchResult, events []model.CollectingEvent) *Result {
	byLabel := make(map[string]model.MatchResult, len(matches))
	for _, m := range matches {
		if _, dup := byLabel[m.LabelID]; !dup {
			byLabel[m.LabelID] = m
		}
	}

	res := &Result{}
	var split []string
	labels := 0

	for _, c := range clusters {
		labels += c.Size()
		cc, distinct := a.reconcileCluster(c, byLabel)
		res.Confidences = append(res.Confidences, cc)
		if cc.Confidence == nil {
			res.UnmatchedClusters = append(res.UnmatchedClusters, c.ID)
			continue
		}
		if distinct > 1 {
			split = append(split, c.ID)
		}
	}

	// An event counts as matched when any member label matched it.
	hit := make(map[string]bool, len(byLabel))
	for _, m := range byLabel {
		hit[m.EventID] = true
	}
	for _, ev := range events {
		if !hit[ev.ID] {
			res.UnmatchedEvents = append(res.UnmatchedEvents, ev.ID)
		}
	}

	bypassed := 0
	for _, m := range byLabel {
		if m.DateFilterBypassed {
			bypassed++
		}
	}

	res.Summary = model.Summary{
		Labels:   labels,
		Events:   len(events),
		Clusters: len(clusters),
		Matched:  len(byLabel),
	}
	for _, cc := range res.Confidences {
		switch cc.Review {
		case model.ReviewBulk:
			res.Summary.Bulk++
		case model.ReviewManual:
			res.Summary.Review++
		}
	}

	res.Summary.Signals = append(res.Summary.Signals, a.confidenceSignal(res.Confidences))
	if len(split) > 0 {
		res.Summary.Signals = append(res.Summary.Signals, splitSignal(split))
	}
	if len(res.UnmatchedClusters) > 0 {
		res.Summary.Signals = append(res.Summary.Signals, unmatchedClusterSignal(res.UnmatchedClusters, len(clusters)))
	}
	if len(res.UnmatchedEvents) > 0 {
		res.Summary.Signals = append(res.Summary.Signals, unmatchedEventSignal(res.UnmatchedEvents, len(events)))
	}
	if bypassed > 0 {
		res.Summary.Signals = append(res.Summary.Signals, model.Signal{
			Type:        model.SignalDateFallback,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d matches ignored the date filter (permissive fallback)", bypassed),
			Data:        map[string]interface{}{"bypassed": bypassed, "matched": len(byLabel)},
		})
	}

	return res
}

// reconcileCluster tabulates the events matched by the cluster's members and
// reports how many distinct events were seen.
func (a *Aggregator) reconcileCluster(c model.Cluster, byLabel map[string]model.MatchResult) (model.ClusterConfidence, int) {
	cc := model.ClusterConfidence{ClusterID: c.ID, Size: c.Size(), Review: model.ReviewUnmatched}

	tallies := make(map[string]*tally)
	for _, id := range c.Members {
		m, ok := byLabel[id]
		if !ok {
			continue
		}
		cc.Matched++
		t := tallies[m.EventID]
		if t == nil {
			t = &tally{eventID: m.EventID}
			tallies[m.EventID] = t
		}
		t.count++
		t.sum += m.Score
	}
	if cc.Matched == 0 {
		return cc, 0
	}

	top := mode(tallies)
	cc.BestEventID = top.eventID
	cc.Frequency = float64(top.count) / float64(cc.Matched)
	cc.AvgScore = top.sum / float64(top.count)

	conf := a.fn(cc.Frequency, cc.AvgScore, cc.Matched, cc.Size)
	cc.Confidence = &conf
	cc.Review = a.review(conf, cc.Frequency)
	return cc, len(tallies)
}

// mode returns the most frequent event; ties go to the higher summed score,
// then to the smaller event ID.
func mode(tallies map[string]*tally) tally {
	all := make([]*tally, 0, len(tallies))
	for _, t := range tallies {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		if all[i].sum != all[j].sum {
			return all[i].sum > all[j].sum
		}
		return all[i].eventID < all[j].eventID
	})
	return *all[0]
}

func (a *Aggregator) review(confidence, frequency float64) model.ReviewLevel {
	if confidence >= a.opts.BulkConfidence && frequency >= a.opts.BulkFrequency {
		return model.ReviewBulk
	}
	return model.ReviewManual
}

// confidenceSignal summarizes the confidence distribution of the run
func (a *Aggregator) confidenceSignal(confidences []model.ClusterConfidence) model.Signal {
	var sum float64
	defined, bulk := 0, 0
	for _, cc := range confidences {
		if cc.Confidence == nil {
			continue
		}
		defined++
		sum += *cc.Confidence
		if cc.Review == model.ReviewBulk {
			bulk++
		}
	}

	if defined == 0 {
		return model.Signal{
			Type:        model.SignalClusterConfidence,
			Severity:    model.SeverityCritical,
			Description: "No cluster received a match",
			Data:        map[string]interface{}{"clusters": len(confidences), "matched_clusters": 0},
		}
	}

	mean := sum / float64(defined)
	severity := model.SeverityInfo
	if mean < 0.5 {
		severity = model.SeverityCritical
	} else if mean < a.opts.BulkConfidence {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalClusterConfidence,
		Severity:    severity,
		Description: fmt.Sprintf("Mean confidence %.2f over %d matched clusters (%d bulk)", mean, defined, bulk),
		Data: map[string]interface{}{
			"clusters":         len(confidences),
			"matched_clusters": defined,
			"bulk":             bulk,
			"mean_confidence":  mean,
			"bulk_confidence":  a.opts.BulkConfidence,
			"bulk_frequency":   a.opts.BulkFrequency,
			"formula":          a.formula,
		},
	}
}

func splitSignal(ids []string) model.Signal {
	return model.Signal{
		Type:        model.SignalSplitCluster,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d clusters have members matched to different events", len(ids)),
		Data:        map[string]interface{}{"clusters": ids},
	}
}

func unmatchedClusterSignal(ids []string, total int) model.Signal {
	severity := model.SeverityInfo
	if len(ids)*2 > total {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        model.SignalUnmatchedCluster,
		Severity:    severity,
		Description: fmt.Sprintf("%d/%d clusters have no matched member", len(ids), total),
		Data:        map[string]interface{}{"unmatched": len(ids), "total": total},
	}
}

func unmatchedEventSignal(ids []string, total int) model.Signal {
	return model.Signal{
		Type:        model.SignalUnmatchedEvents,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d/%d catalog events received no match", len(ids), total),
		Data:        map[string]interface{}{"unmatched": len(ids), "total": total},
	}
}
