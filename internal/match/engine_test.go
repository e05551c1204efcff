package match

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/labelsort/internal/daterange"
	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/similarity"
)

func newEngine(t *testing.T, mutate func(o *Options)) *Engine {
	t.Helper()
	opts := OptionsFromConfig(model.DefaultConfig())
	opts.Workers = 4
	if mutate != nil {
		mutate(&opts)
	}
	scorer, err := similarity.New(similarity.ModeToken, similarity.NewNormalizer(nil, 0), 0.6)
	require.NoError(t, err)
	e, err := NewEngine(opts, scorer, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func year(y int) *daterange.Range {
	r := daterange.Single(daterange.YearOnly(y))
	return &r
}

func exampleLabels() []model.Label {
	return []model.Label{
		{ID: "A", Text: "Argentina Buenos Aires 1905 Frank", DateRange: year(1905)},
		{ID: "B", Text: "Argentina Buen Aires 1905 Frank", DateRange: year(1905)},
		{ID: "C", Text: "Brazil Rio 1910 Muller", DateRange: year(1910)},
	}
}

func exampleEvents() []model.CollectingEvent {
	return []model.CollectingEvent{
		{ID: "E1", Location: "Argentina, Buenos Aires", Date: "1905", Collector: "Frank",
			Text: "Argentina Buenos Aires 1905 Frank", DateRange: year(1905)},
	}
}

func TestMatch_Example(t *testing.T) {
	e := newEngine(t, nil)
	res, err := e.Match(context.Background(), LabelQueries(exampleLabels()), exampleEvents())
	require.NoError(t, err)

	require.Len(t, res.Matches, 2)
	assert.Equal(t, "A", res.Matches[0].LabelID)
	assert.Equal(t, "E1", res.Matches[0].EventID)
	assert.InDelta(t, 1.0, res.Matches[0].Score, 1e-9)
	assert.True(t, res.Matches[0].DateFiltered)
	assert.Equal(t, "B", res.Matches[1].LabelID)
	assert.Equal(t, "E1", res.Matches[1].EventID)

	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, model.UnmatchedLabel{LabelID: "C", Reason: model.ReasonNoCandidates}, res.Unmatched[0])
}

func TestMatch_PermissiveFallback(t *testing.T) {
	e := newEngine(t, func(o *Options) { o.PermissiveFallback = true })
	labels := []model.Label{{ID: "C", Text: "Argentina Buenos Aires Frank", DateRange: year(1910)}}

	res, err := e.Match(context.Background(), LabelQueries(labels), exampleEvents())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.True(t, res.Matches[0].DateFilterBypassed)
	assert.False(t, res.Matches[0].DateFiltered)
	assert.Equal(t, "E1", res.Matches[0].EventID)
}

func TestMatch_DateFilterDisabled(t *testing.T) {
	e := newEngine(t, func(o *Options) { o.DateFilter = false })
	labels := []model.Label{{ID: "C", Text: "Argentina Buenos Aires Frank", DateRange: year(1910)}}

	res, err := e.Match(context.Background(), LabelQueries(labels), exampleEvents())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.False(t, res.Matches[0].DateFilterBypassed)
	assert.False(t, res.Matches[0].DateFiltered)
}

func TestMatch_TieBreakSmallestEventID(t *testing.T) {
	e := newEngine(t, nil)
	events := []model.CollectingEvent{
		{ID: "E9", Text: "Peru Cuzco 1899"},
		{ID: "E10", Text: "Peru Cuzco 1899"},
		{ID: "E2", Text: "Peru Cuzco 1899"},
	}
	res, err := e.Match(context.Background(), []Query{{ID: "L", Text: "Peru Cuzco 1899"}}, events)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "E10", res.Matches[0].EventID)
	assert.Equal(t, []model.Candidate{{EventID: "E10", Score: 1}, {EventID: "E2", Score: 1}, {EventID: "E9", Score: 1}},
		res.Matches[0].Candidates)
}

func TestMatch_TopK(t *testing.T) {
	e := newEngine(t, func(o *Options) { o.TopK = 2 })
	events := []model.CollectingEvent{
		{ID: "E1", Text: "Peru Cuzco 1899 Garlepp"},
		{ID: "E2", Text: "Peru Cuzco 1899"},
		{ID: "E3", Text: "Peru 1899"},
		{ID: "E4", Text: "Brazil"},
	}
	res, err := e.Match(context.Background(), []Query{{ID: "L", Text: "Peru Cuzco 1899 Garlepp"}}, events)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, "E1", m.EventID)
	require.Len(t, m.Candidates, 2)
	assert.Equal(t, "E2", m.Candidates[1].EventID)
	assert.GreaterOrEqual(t, m.Candidates[0].Score, m.Candidates[1].Score)
}

func TestMatch_UndatedEventsFailDateFilter(t *testing.T) {
	e := newEngine(t, nil)
	events := []model.CollectingEvent{{ID: "E1", Text: "Argentina Buenos Aires 1905 Frank"}}

	res, err := e.Match(context.Background(), LabelQueries(exampleLabels()[:1]), events)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, model.ReasonNoCandidates, res.Unmatched[0].Reason)

	// An undated label is compared to every event.
	res, err = e.Match(context.Background(), []Query{{ID: "U", Text: "Argentina Buenos Aires"}}, events)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.False(t, res.Matches[0].DateFiltered)
}

func TestMatch_ZeroScoreIsUnmatched(t *testing.T) {
	e := newEngine(t, func(o *Options) { o.DateFilter = false })
	res, err := e.Match(context.Background(), []Query{{ID: "C", Text: "Brazil Rio 1910 Muller"}}, exampleEvents())
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Equal(t, []model.UnmatchedLabel{{LabelID: "C", Reason: model.ReasonBelowMinScore}}, res.Unmatched)
}

func TestMatch_EmptyCatalog(t *testing.T) {
	e := newEngine(t, func(o *Options) { o.PermissiveFallback = true })
	res, err := e.Match(context.Background(), LabelQueries(exampleLabels()), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Len(t, res.Unmatched, 3)
	for _, u := range res.Unmatched {
		assert.Equal(t, model.ReasonNoCandidates, u.Reason)
	}
}

func TestMatch_BlankQuerySkipped(t *testing.T) {
	e := newEngine(t, nil)
	res, err := e.Match(context.Background(), []Query{{ID: "X", Text: " "}}, exampleEvents())
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.Unmatched)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "X", res.Skipped[0].ID)
}

func TestMatch_PreservesQueryOrder(t *testing.T) {
	e := newEngine(t, func(o *Options) { o.DateFilter = false })
	var queries []Query
	for i := 0; i < 300; i++ {
		queries = append(queries, Query{ID: fmt.Sprintf("L%03d", i), Text: "Argentina Buenos Aires"})
	}
	res, err := e.Match(context.Background(), queries, exampleEvents())
	require.NoError(t, err)
	require.Len(t, res.Matches, 300)
	for i, m := range res.Matches {
		assert.Equal(t, queries[i].ID, m.LabelID)
	}
}

func TestMatch_TextFields(t *testing.T) {
	events := []model.CollectingEvent{
		{ID: "E1", Location: "Bolivia", Text: "Peru Cuzco"},
		{ID: "E2", Location: "Peru, Cuzco", Text: "Bolivia"},
	}
	queries := []Query{{ID: "L", Text: "Peru Cuzco"}}

	res, err := newEngine(t, nil).Match(context.Background(), queries, events)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "E1", res.Matches[0].EventID)

	byLocation := newEngine(t, func(o *Options) { o.TextFields = []string{model.EventFieldLocation} })
	res, err = byLocation.Match(context.Background(), queries, events)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "E2", res.Matches[0].EventID)
	assert.Equal(t, "Bolivia", events[1].Text, "catalog events must not be modified")
}

func TestSearchText(t *testing.T) {
	ev := model.CollectingEvent{ID: "E1", Location: " Peru, Cuzco ", Date: "1899", Collector: "", Text: "note"}
	assert.Equal(t, "Peru, Cuzco, 1899", SearchText(ev, []string{"location", "date", "collector"}))
	assert.Equal(t, "note, Peru, Cuzco", SearchText(ev, []string{"text", "location"}))
	assert.Empty(t, SearchText(ev, []string{"collector"}))
}

func TestClusterQueries(t *testing.T) {
	labels := exampleLabels()
	labels[0].DateRange = nil
	clusters := []model.Cluster{{ID: "cluster00001", Members: []string{"A", "B"}, Representative: "rep"}}

	q := ClusterQueries(clusters, labels)
	require.Len(t, q, 1)
	assert.Equal(t, "cluster00001", q[0].ID)
	assert.Equal(t, "rep", q[0].Text)
	assert.Equal(t, labels[1].DateRange, q[0].DateRange)
}

func TestNewEngine_TopK(t *testing.T) {
	scorer, _ := similarity.New(similarity.ModeEdit, nil, 0)
	_, err := NewEngine(Options{TopK: 0}, scorer, zerolog.Nop())
	assert.True(t, errors.Is(err, model.ErrConfiguration))
}
