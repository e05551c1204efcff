package records

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/labelsort/internal/model"
)

// Column names of the cluster table, as consumed by curation spreadsheets.
// Each extracted field has a verbatim (.v) and an interpreted (.i) column.
var clusterColumns = []string{
	"label.ID", "label.v", "group.ID",
	"geo.v", "geo.i", "date.v", "date.i", "collector.v", "collector.i",
}

var matchColumns = []string{
	"label.ID", "label.text",
	"CE.ID", "CE.location", "CE.date", "CE.collector", "CE.text",
	"score",
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// WriteJSONFile writes v as indented JSON to path.
func WriteJSONFile(path string, v interface{}) error {
	return writeFile(path, func(w io.Writer) error { return WriteJSON(w, v) })
}

// WriteClustersTSV writes one row per cluster member. Fields that were not
// extracted leave their columns empty.
func WriteClustersTSV(w io.Writer, clusters []model.Cluster, labels []model.Label) error {
	byID := make(map[string]model.Label, len(labels))
	for _, l := range labels {
		byID[l.ID] = l
	}
	tw := newTSV(w)
	if err := tw.Write(clusterColumns); err != nil {
		return err
	}
	for _, c := range clusters {
		for _, id := range c.Members {
			row := append([]string{id, flatten(byID[id].Text), c.ID}, fieldColumns(byID[id])...)
			if err := tw.Write(row); err != nil {
				return err
			}
		}
	}
	tw.Flush()
	return tw.Error()
}

func fieldColumns(l model.Label) []string {
	var v model.Verbatim
	if l.Verbatim != nil {
		v = *l.Verbatim
	}
	var date string
	if l.DateRange != nil {
		date = l.DateRange.String()
	}
	return []string{
		flatten(v.Geo), flatten(deref(l.Location)),
		flatten(v.Date), date,
		flatten(v.Collector), flatten(deref(l.Collector)),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// WriteMatchesTSV writes one row per matched query. Queries that are not
// labels (cluster representatives) leave label.text empty.
func WriteMatchesTSV(w io.Writer, matches []model.MatchResult, labels []model.Label, events []model.CollectingEvent) error {
	text := labelTexts(labels)
	byID := make(map[string]model.CollectingEvent, len(events))
	for _, ev := range events {
		byID[ev.ID] = ev
	}

	tw := newTSV(w)
	if err := tw.Write(matchColumns); err != nil {
		return err
	}
	for _, m := range matches {
		ev := byID[m.EventID]
		row := []string{
			m.LabelID, flatten(text[m.LabelID]),
			m.EventID, flatten(ev.Location), flatten(ev.Date), flatten(ev.Collector), flatten(ev.Text),
			fmt.Sprintf("%.3f", m.Score),
		}
		if err := tw.Write(row); err != nil {
			return err
		}
	}
	tw.Flush()
	return tw.Error()
}

// ReadClustersTSV rebuilds clusters from a cluster table. Members keep row
// order and the first member's text becomes the representative.
func ReadClustersTSV(r io.Reader) ([]model.Cluster, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read cluster table: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	col := make(map[string]int)
	for i, name := range rows[0] {
		col[strings.TrimSpace(name)] = i
	}
	idCol, ok1 := col["label.ID"]
	groupCol, ok2 := col["group.ID"]
	textCol, hasText := col["label.v"]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("cluster table needs label.ID and group.ID columns")
	}

	var out []model.Cluster
	index := make(map[string]int)
	for _, row := range rows[1:] {
		if idCol >= len(row) || groupCol >= len(row) {
			continue
		}
		group := strings.TrimSpace(row[groupCol])
		i, ok := index[group]
		if !ok {
			i = len(out)
			index[group] = i
			c := model.Cluster{ID: group}
			if hasText && textCol < len(row) {
				c.Representative = row[textCol]
			}
			if j := strings.LastIndex(group, "."); j > 0 {
				c.Parent = group[:j]
			}
			out = append(out, c)
		}
		out[i].Members = append(out[i].Members, strings.TrimSpace(row[idCol]))
	}
	return out, nil
}

// ReadReport decodes a report written by a previous run.
func ReadReport(r io.Reader) (*model.Report, error) {
	var report model.Report
	dec := json.NewDecoder(r)
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

// LoadReport reads a report file.
func LoadReport(path string) (*model.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadReport(f)
}

func newTSV(w io.Writer) *csv.Writer {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'
	return tw
}

func labelTexts(labels []model.Label) map[string]string {
	out := make(map[string]string, len(labels))
	for _, l := range labels {
		out[l.ID] = l.Text
	}
	return out
}

// flatten keeps multi-line transcripts on one table row.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(f)
}

// WriteClustersTSVFile writes the cluster table to path.
func WriteClustersTSVFile(path string, clusters []model.Cluster, labels []model.Label) error {
	return writeFile(path, func(w io.Writer) error { return WriteClustersTSV(w, clusters, labels) })
}

// WriteMatchesTSVFile writes the match table to path.
func WriteMatchesTSVFile(path string, matches []model.MatchResult, labels []model.Label, events []model.CollectingEvent) error {
	return writeFile(path, func(w io.Writer) error { return WriteMatchesTSV(w, matches, labels, events) })
}
