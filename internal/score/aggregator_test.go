package score

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ppiankov/labelsort/internal/model"
)

func defaultAggregator(t *testing.T) *Aggregator {
	t.Helper()
	a, err := NewAggregator(OptionsFromConfig(model.DefaultConfig()))
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	return a
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestReconcile_Example(t *testing.T) {
	a := defaultAggregator(t)

	clusters := []model.Cluster{
		{ID: "cluster00001", Members: []string{"A", "B"}},
		{ID: "cluster00002", Members: []string{"C"}},
	}
	matches := []model.MatchResult{
		{LabelID: "A", EventID: "E1", Score: 1},
		{LabelID: "B", EventID: "E1", Score: 0.9},
	}
	events := []model.CollectingEvent{{ID: "E1"}, {ID: "E2"}}

	res := a.Reconcile(clusters, matches, events)

	if len(res.Confidences) != 2 {
		t.Fatalf("Expected 2 confidences, got %d", len(res.Confidences))
	}
	first := res.Confidences[0]
	if first.BestEventID != "E1" || first.Matched != 2 || first.Size != 2 {
		t.Errorf("Unexpected first cluster reconciliation: %+v", first)
	}
	if !near(first.Frequency, 1) || !near(first.AvgScore, 0.95) {
		t.Errorf("Expected frequency 1 and avg 0.95, got %v and %v", first.Frequency, first.AvgScore)
	}
	if first.Confidence == nil || !near(*first.Confidence, 0.95) {
		t.Errorf("Expected confidence 0.95, got %v", first.Confidence)
	}
	if first.Review != model.ReviewBulk {
		t.Errorf("Expected bulk review, got %s", first.Review)
	}

	second := res.Confidences[1]
	if second.Confidence != nil {
		t.Errorf("Expected undefined confidence for unmatched cluster, got %v", *second.Confidence)
	}
	if second.Review != model.ReviewUnmatched {
		t.Errorf("Expected unmatched review, got %s", second.Review)
	}

	if len(res.UnmatchedClusters) != 1 || res.UnmatchedClusters[0] != "cluster00002" {
		t.Errorf("Expected cluster00002 unmatched, got %v", res.UnmatchedClusters)
	}
	if len(res.UnmatchedEvents) != 1 || res.UnmatchedEvents[0] != "E2" {
		t.Errorf("Expected E2 unmatched, got %v", res.UnmatchedEvents)
	}

	if res.Summary.Labels != 3 || res.Summary.Clusters != 2 || res.Summary.Matched != 2 || res.Summary.Bulk != 1 {
		t.Errorf("Unexpected summary: %+v", res.Summary)
	}
}

func TestReconcile_PartialAgreement(t *testing.T) {
	a := defaultAggregator(t)

	// 10 members: 7 matched to E1 at 0.9, 2 to E2, 1 unmatched.
	var members []string
	var matches []model.MatchResult
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("L%d", i)
		members = append(members, id)
		switch {
		case i < 7:
			matches = append(matches, model.MatchResult{LabelID: id, EventID: "E1", Score: 0.9})
		case i < 9:
			matches = append(matches, model.MatchResult{LabelID: id, EventID: "E2", Score: 0.8})
		}
	}

	res := a.Reconcile([]model.Cluster{{ID: "c", Members: members}}, matches, nil)
	cc := res.Confidences[0]

	if cc.Size != 10 || cc.Matched != 9 {
		t.Errorf("Expected size 10 and 9 matched, got %d and %d", cc.Size, cc.Matched)
	}
	if !near(cc.Frequency, 7.0/9.0) {
		t.Errorf("Expected frequency 7/9, got %v", cc.Frequency)
	}
	if !near(cc.AvgScore, 0.9) {
		t.Errorf("Expected avg score 0.9, got %v", cc.AvgScore)
	}
	if cc.Confidence == nil || !near(*cc.Confidence, 0.7) {
		t.Errorf("Expected confidence 0.7, got %v", cc.Confidence)
	}
	if cc.Review != model.ReviewManual {
		t.Errorf("Expected manual review, got %s", cc.Review)
	}

	hasSplit := false
	for _, s := range res.Summary.Signals {
		if s.Type == model.SignalSplitCluster {
			hasSplit = true
		}
	}
	if !hasSplit {
		t.Error("Expected split cluster signal")
	}
}

func TestReconcile_TenOfTenSevenAgree(t *testing.T) {
	a := defaultAggregator(t)

	var members []string
	var matches []model.MatchResult
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("L%d", i)
		members = append(members, id)
		event := "E1"
		if i >= 7 {
			event = fmt.Sprintf("E%d", i)
		}
		matches = append(matches, model.MatchResult{LabelID: id, EventID: event, Score: 0.9})
	}

	cc := a.Reconcile([]model.Cluster{{ID: "c", Members: members}}, matches, nil).Confidences[0]
	if !near(cc.Frequency, 0.7) {
		t.Errorf("Expected frequency 0.7, got %v", cc.Frequency)
	}
	if cc.Confidence == nil || !near(*cc.Confidence, 0.63) {
		t.Errorf("Expected confidence 0.63, got %v", cc.Confidence)
	}
}

func TestReconcile_ModeTieBreak(t *testing.T) {
	a := defaultAggregator(t)

	tests := []struct {
		name    string
		matches []model.MatchResult
		want    string
	}{
		{
			name: "higher summed score wins",
			matches: []model.MatchResult{
				{LabelID: "A", EventID: "E1", Score: 0.5},
				{LabelID: "B", EventID: "E2", Score: 0.9},
			},
			want: "E2",
		},
		{
			name: "smaller ID on equal sums",
			matches: []model.MatchResult{
				{LabelID: "A", EventID: "E9", Score: 0.7},
				{LabelID: "B", EventID: "E10", Score: 0.7},
			},
			want: "E10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := []model.Cluster{{ID: "c", Members: []string{"A", "B"}}}
			cc := a.Reconcile(c, tt.matches, nil).Confidences[0]
			if cc.BestEventID != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, cc.BestEventID)
			}
			if !near(cc.Frequency, 0.5) {
				t.Errorf("Expected frequency 0.5, got %v", cc.Frequency)
			}
		})
	}
}

func TestReconcile_ConfidenceInUnitInterval(t *testing.T) {
	for _, name := range []string{model.ConfidenceProduct, model.ConfidenceHarmonic, model.ConfidenceSizeWeighted} {
		a, err := NewAggregator(Options{Confidence: name, BulkConfidence: 0.8, BulkFrequency: 0.9})
		if err != nil {
			t.Fatalf("NewAggregator(%s): %v", name, err)
		}
		matches := []model.MatchResult{
			{LabelID: "A", EventID: "E1", Score: 1},
			{LabelID: "B", EventID: "E1", Score: 0.2},
			{LabelID: "C", EventID: "E2", Score: 0.6},
		}
		cc := a.Reconcile([]model.Cluster{{ID: "c", Members: []string{"A", "B", "C", "D"}}}, matches, nil).Confidences[0]
		if cc.Confidence == nil || *cc.Confidence < 0 || *cc.Confidence > 1 {
			t.Errorf("%s: confidence out of range: %v", name, cc.Confidence)
		}
	}
}

func TestConfidenceFuncs(t *testing.T) {
	tests := []struct {
		name string
		fn   ConfidenceFunc
		want float64
	}{
		{"product", Product, 0.5 * 0.8},
		{"harmonic", Harmonic, 2 * 0.5 * 0.8 / 1.3},
		{"size_weighted", SizeWeighted, 0.5 * 0.8 * 3 / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(0.5, 0.8, 3, 4); !near(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if Harmonic(0, 0, 0, 0) != 0 {
		t.Error("Expected harmonic of zeros to be 0")
	}
	if SizeWeighted(1, 1, 0, 0) != 0 {
		t.Error("Expected size weighted with empty cluster to be 0")
	}
}

func TestConfidenceByName_Unknown(t *testing.T) {
	_, err := ConfidenceByName("geometric")
	if !errors.Is(err, model.ErrConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

func TestReconcile_DuplicateMatchKeepsFirst(t *testing.T) {
	a := defaultAggregator(t)
	matches := []model.MatchResult{
		{LabelID: "A", EventID: "E1", Score: 0.9},
		{LabelID: "A", EventID: "E2", Score: 1},
	}
	res := a.Reconcile([]model.Cluster{{ID: "c", Members: []string{"A"}}}, matches, nil)
	if res.Confidences[0].BestEventID != "E1" {
		t.Errorf("Expected first match to win, got %s", res.Confidences[0].BestEventID)
	}
	if res.Summary.Matched != 1 {
		t.Errorf("Expected 1 matched label, got %d", res.Summary.Matched)
	}
}

func TestReconcile_DateFallbackSignal(t *testing.T) {
	a := defaultAggregator(t)
	matches := []model.MatchResult{{LabelID: "A", EventID: "E1", Score: 0.9, DateFilterBypassed: true}}
	res := a.Reconcile([]model.Cluster{{ID: "c", Members: []string{"A"}}}, matches, nil)

	for _, s := range res.Summary.Signals {
		if s.Type == model.SignalDateFallback {
			if s.Data["bypassed"] != 1 {
				t.Errorf("Expected 1 bypassed match, got %v", s.Data["bypassed"])
			}
			return
		}
	}
	t.Error("Expected date fallback signal")
}

func TestReconcile_NoMatchesCriticalSignal(t *testing.T) {
	a := defaultAggregator(t)
	res := a.Reconcile([]model.Cluster{{ID: "c", Members: []string{"A"}}}, nil, nil)
	if res.Summary.Signals[0].Severity != model.SeverityCritical {
		t.Errorf("Expected critical confidence signal, got %s", res.Summary.Signals[0].Severity)
	}
}
