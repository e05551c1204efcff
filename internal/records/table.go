package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/labelsort/internal/cluster"
	"github.com/ppiankov/labelsort/internal/model"
)

// TableOptions maps the columns of a delimited catalog export onto
// collecting event fields. Column indexes are 0-based; IDColumn < 0 assigns
// identifiers from IDFormat instead.
type TableOptions struct {
	Separator       rune
	Header          bool
	IDColumn        int
	LocationColumns []int
	DateColumn      int
	CollectorColumn int
	TextColumns     []int
	IDFormat        string
	ValueSeparator  string
}

// DefaultTableOptions reads "location, date, collector, text" rows with a
// header line and numbers events colev00001, colev00002, ...
func DefaultTableOptions() TableOptions {
	return TableOptions{
		Separator:       '\t',
		Header:          true,
		IDColumn:        -1,
		LocationColumns: []int{0},
		DateColumn:      1,
		CollectorColumn: 2,
		TextColumns:     []int{3},
		IDFormat:        "colev:5",
		ValueSeparator:  ", ",
	}
}

// ReadEventTable builds collecting events from a delimited table. Rows that
// are too short for the configured columns are skipped.
func ReadEventTable(r io.Reader, opts TableOptions) ([]model.CollectingEvent, []model.Skipped, error) {
	var ids cluster.IDFormatter
	if opts.IDColumn < 0 {
		f, err := cluster.ParseIDFormat(opts.IDFormat)
		if err != nil {
			return nil, nil, err
		}
		ids = f
	}
	if opts.ValueSeparator == "" {
		opts.ValueSeparator = ", "
	}

	reader := csv.NewReader(r)
	reader.Comma = opts.Separator
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read table: %w", err)
	}
	if opts.Header && len(rows) > 0 {
		rows = rows[1:]
	}

	need := opts.IDColumn
	for _, c := range append(append([]int{opts.DateColumn, opts.CollectorColumn}, opts.LocationColumns...), opts.TextColumns...) {
		if c > need {
			need = c
		}
	}

	var out []model.CollectingEvent
	var skipped []model.Skipped
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		ev := model.CollectingEvent{}
		if opts.IDColumn >= 0 && opts.IDColumn < len(row) {
			ev.ID = strings.TrimSpace(row[opts.IDColumn])
		} else if opts.IDColumn < 0 {
			ev.ID = ids.Format(i + 1)
		}

		if len(row) <= need {
			skipped = append(skipped, model.Skipped{Kind: model.KindEvent, ID: ev.ID, Index: i,
				Reason: fmt.Sprintf("row has %d columns, need %d", len(row), need+1)})
			continue
		}
		if ev.ID == "" || seen[ev.ID] {
			reason := "missing ID"
			if ev.ID != "" {
				reason = "duplicate ID"
			}
			skipped = append(skipped, model.Skipped{Kind: model.KindEvent, ID: ev.ID, Index: i, Reason: reason})
			continue
		}
		seen[ev.ID] = true

		ev.Location = joinColumns(row, opts.LocationColumns, opts.ValueSeparator)
		ev.Date = column(row, opts.DateColumn)
		ev.Collector = column(row, opts.CollectorColumn)
		ev.Text = joinColumns(row, opts.TextColumns, opts.ValueSeparator)
		out = append(out, ev)
	}
	return out, skipped, nil
}

func column(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func joinColumns(row []string, cols []int, sep string) string {
	var parts []string
	for _, c := range cols {
		if v := column(row, c); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
