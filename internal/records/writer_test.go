package records

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/labelsort/internal/daterange"
	"github.com/ppiankov/labelsort/internal/model"
)

func sampleLabels() []model.Label {
	r := daterange.Single(daterange.YearOnly(1905))
	return []model.Label{
		{ID: "A", Text: "Argentina Buenos Aires\n1905 Frank", DateRange: &r},
		{ID: "B", Text: "Argentina Buen Aires 1905 Frank", Collector: model.StringPtr("C1")},
		{ID: "C", Text: "Brazil Rio 1910 Muller"},
	}
}

func sampleReport() *model.Report {
	conf := 0.95
	return &model.Report{
		RunID:       "run-1",
		Command:     "run",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Clusters: []model.Cluster{
			{ID: "cluster00001", Members: []string{"A", "B"}, Representative: "Argentina Buenos Aires 1905 Frank"},
			{ID: "cluster00002", Members: []string{"C"}, Representative: "Brazil Rio 1910 Muller"},
		},
		Matches: []model.MatchResult{
			{LabelID: "A", EventID: "E1", Score: 1, DateFiltered: true, Candidates: []model.Candidate{{EventID: "E1", Score: 1}}},
			{LabelID: "B", EventID: "E1", Score: 0.9333, DateFiltered: true},
		},
		UnmatchedLabels: []model.UnmatchedLabel{{LabelID: "C", Reason: model.ReasonNoCandidates}},
		Confidences: []model.ClusterConfidence{
			{ClusterID: "cluster00001", Size: 2, Matched: 2, BestEventID: "E1", Frequency: 1, AvgScore: 0.95, Confidence: &conf, Review: model.ReviewBulk},
			{ClusterID: "cluster00002", Size: 1, Review: model.ReviewUnmatched},
		},
		UnmatchedClusters: []string{"cluster00002"},
		Skipped:           []model.Skipped{{Kind: model.KindEvent, ID: "E9", Index: 3, Reason: "no date", Degraded: true}},
	}
}

func sampleEvents() []model.CollectingEvent {
	return []model.CollectingEvent{{ID: "E1", Location: "Argentina, Buenos Aires", Date: "1905", Collector: "Frank", Text: "Argentina Buenos Aires 1905 Frank"}}
}

func TestWriteClustersTSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	report := sampleReport()
	require.NoError(t, WriteClustersTSV(&buf, report.Clusters, sampleLabels()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "label.ID\tlabel.v\tgroup.ID\tgeo.v\tgeo.i\tdate.v\tdate.i\tcollector.v\tcollector.i", lines[0])
	assert.Equal(t, "A\tArgentina Buenos Aires 1905 Frank\tcluster00001\t\t\t\t1905\t\t", lines[1])
	assert.Equal(t, "B\tArgentina Buen Aires 1905 Frank\tcluster00001\t\t\t\t\t\tC1", lines[2])

	clusters, err := ReadClustersTSV(&buf)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"A", "B"}, clusters[0].Members)
	assert.Equal(t, "Argentina Buenos Aires 1905 Frank", clusters[0].Representative)
	assert.Equal(t, []string{"C"}, clusters[1].Members)
}

func TestWriteClustersTSV_ExtractedFields(t *testing.T) {
	r := daterange.Single(daterange.YearOnly(1905))
	labels := []model.Label{{
		ID:        "A",
		Text:      "Argentina 34°36'S 58°22'W 1905 leg. Frank",
		DateRange: &r,
		Collector: model.StringPtr("C1"),
		Location:  model.StringPtr("34.6000°S 58.3667°W"),
		Verbatim:  &model.Verbatim{Date: "1905", Collector: "Frank", Geo: "34°36'S 58°22'W"},
	}}
	clusters := []model.Cluster{{ID: "cluster00001", Members: []string{"A"}}}

	var buf bytes.Buffer
	require.NoError(t, WriteClustersTSV(&buf, clusters, labels))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{
		"A", "Argentina 34°36'S 58°22'W 1905 leg. Frank", "cluster00001",
		"34°36'S 58°22'W", "34.6000°S 58.3667°W", "1905", "1905", "Frank", "C1",
	}, strings.Split(lines[1], "\t"))

	read, err := ReadClustersTSV(&buf)
	require.NoError(t, err)
	require.Len(t, read, 1)
	assert.Equal(t, []string{"A"}, read[0].Members)
}

func TestReadClustersTSV_SubClusterParent(t *testing.T) {
	input := "group.ID\tlabel.ID\n" +
		"cluster00001.1\tA\n" +
		"cluster00001.2\tB\n"
	clusters, err := ReadClustersTSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "cluster00001", clusters[0].Parent)
	assert.Empty(t, clusters[0].Representative)

	_, err = ReadClustersTSV(strings.NewReader("a\tb\n"))
	assert.Error(t, err)
}

func TestWriteMatchesTSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatchesTSV(&buf, sampleReport().Matches, sampleLabels(), sampleEvents()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(matchColumns, "\t"), lines[0])
	assert.True(t, strings.HasSuffix(lines[2], "\t0.933"))
	assert.Contains(t, lines[1], "\tArgentina, Buenos Aires\t")
}

func TestWriteJSON_ReadReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))
	assert.Contains(t, buf.String(), `"confidence": null`)

	report, err := ReadReport(&buf)
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	require.Len(t, report.Confidences, 2)
	require.NotNil(t, report.Confidences[0].Confidence)
	assert.Nil(t, report.Confidences[1].Confidence)
}

func TestExportSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labelsort.db")
	ctx := context.Background()

	require.NoError(t, ExportSQLite(ctx, path, sampleReport(), sampleLabels(), sampleEvents()))
	// A second export replaces the previous tables.
	require.NoError(t, ExportSQLite(ctx, path, sampleReport(), sampleLabels(), sampleEvents()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	counts := map[string]int{
		"runs": 1, "labels": 3, "events": 1, "clusters": 2, "cluster_members": 3,
		"matches": 2, "candidates": 1, "unmatched_labels": 1, "confidences": 2, "skipped": 1,
	}
	for table, want := range counts {
		var got int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&got), table)
		assert.Equal(t, want, got, table)
	}

	var conf sql.NullFloat64
	require.NoError(t, db.QueryRow("SELECT confidence FROM confidences WHERE cluster_id = ?", "cluster00002").Scan(&conf))
	assert.False(t, conf.Valid)

	var dr sql.NullString
	require.NoError(t, db.QueryRow("SELECT date_range FROM labels WHERE id = ?", "A").Scan(&dr))
	assert.Equal(t, "1905", dr.String)
}
