package records

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/labelsort/internal/daterange"
	"github.com/ppiankov/labelsort/internal/model"
)

var exportSchema = []string{
	`CREATE TABLE runs (
		run_id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		generated_at TEXT NOT NULL
	)`,
	`CREATE TABLE labels (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		date_range TEXT,
		collector TEXT,
		location TEXT
	)`,
	`CREATE TABLE events (
		id TEXT PRIMARY KEY,
		location TEXT,
		date TEXT,
		collector TEXT,
		text TEXT,
		date_range TEXT
	)`,
	`CREATE TABLE clusters (
		id TEXT PRIMARY KEY,
		parent TEXT,
		representative TEXT,
		size INTEGER NOT NULL
	)`,
	`CREATE TABLE cluster_members (
		cluster_id TEXT NOT NULL REFERENCES clusters(id),
		label_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (cluster_id, label_id)
	)`,
	`CREATE TABLE matches (
		label_id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		score REAL NOT NULL,
		date_filtered INTEGER NOT NULL,
		date_filter_bypassed INTEGER NOT NULL
	)`,
	`CREATE TABLE candidates (
		label_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		event_id TEXT NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (label_id, rank)
	)`,
	`CREATE TABLE unmatched_labels (
		label_id TEXT PRIMARY KEY,
		reason TEXT NOT NULL
	)`,
	`CREATE TABLE confidences (
		cluster_id TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		matched INTEGER NOT NULL,
		best_event_id TEXT,
		frequency REAL NOT NULL,
		avg_score REAL NOT NULL,
		confidence REAL,
		review TEXT NOT NULL
	)`,
	`CREATE TABLE unmatched_events (
		event_id TEXT PRIMARY KEY
	)`,
	`CREATE TABLE skipped (
		kind TEXT NOT NULL,
		record_id TEXT,
		record_index INTEGER NOT NULL,
		reason TEXT NOT NULL,
		degraded INTEGER NOT NULL
	)`,
}

var exportTables = []string{
	"skipped", "unmatched_events", "confidences", "unmatched_labels", "candidates",
	"matches", "cluster_members", "clusters", "events", "labels", "runs",
}

// ExportSQLite writes the report and its inputs into the SQLite database at
// path. Tables owned by the export are recreated; other tables are left
// untouched.
func ExportSQLite(ctx context.Context, path string, report *model.Report, labels []model.Label, events []model.CollectingEvent) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("apply pragma: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range exportTables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	for _, stmt := range exportSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create export schema: %w", err)
		}
	}

	w := &sqlWriter{ctx: ctx, tx: tx}
	w.exec(`INSERT INTO runs (run_id, command, generated_at) VALUES (?, ?, ?)`,
		report.RunID, report.Command, report.GeneratedAt.UTC().Format(time.RFC3339Nano))

	for _, l := range labels {
		w.exec(`INSERT INTO labels (id, text, date_range, collector, location) VALUES (?, ?, ?, ?, ?)`,
			l.ID, l.Text, rangeValue(l.DateRange), nullString(l.Collector), nullString(l.Location))
	}
	for _, ev := range events {
		w.exec(`INSERT INTO events (id, location, date, collector, text, date_range) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.Location, ev.Date, ev.Collector, ev.Text, rangeValue(ev.DateRange))
	}

	for _, c := range report.Clusters {
		w.exec(`INSERT INTO clusters (id, parent, representative, size) VALUES (?, ?, ?, ?)`,
			c.ID, emptyNull(c.Parent), c.Representative, c.Size())
		for i, m := range c.Members {
			w.exec(`INSERT INTO cluster_members (cluster_id, label_id, position) VALUES (?, ?, ?)`, c.ID, m, i)
		}
	}

	for _, m := range report.Matches {
		w.exec(`INSERT INTO matches (label_id, event_id, score, date_filtered, date_filter_bypassed) VALUES (?, ?, ?, ?, ?)`,
			m.LabelID, m.EventID, m.Score, m.DateFiltered, m.DateFilterBypassed)
		for i, c := range m.Candidates {
			w.exec(`INSERT INTO candidates (label_id, rank, event_id, score) VALUES (?, ?, ?, ?)`,
				m.LabelID, i+1, c.EventID, c.Score)
		}
	}
	for _, u := range report.UnmatchedLabels {
		w.exec(`INSERT INTO unmatched_labels (label_id, reason) VALUES (?, ?)`, u.LabelID, string(u.Reason))
	}

	for _, cc := range report.Confidences {
		var conf interface{}
		if cc.Confidence != nil {
			conf = *cc.Confidence
		}
		w.exec(`INSERT INTO confidences (cluster_id, size, matched, best_event_id, frequency, avg_score, confidence, review)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			cc.ClusterID, cc.Size, cc.Matched, emptyNull(cc.BestEventID), cc.Frequency, cc.AvgScore, conf, string(cc.Review))
	}
	for _, id := range report.UnmatchedEvents {
		w.exec(`INSERT INTO unmatched_events (event_id) VALUES (?)`, id)
	}
	for _, s := range report.Skipped {
		w.exec(`INSERT INTO skipped (kind, record_id, record_index, reason, degraded) VALUES (?, ?, ?, ?, ?)`,
			string(s.Kind), emptyNull(s.ID), s.Index, s.Reason, s.Degraded)
	}

	if w.err != nil {
		return w.err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

// sqlWriter keeps the first insert error so the export reads as a flat list
// of statements.
type sqlWriter struct {
	ctx context.Context
	tx  *sql.Tx
	err error
}

func (w *sqlWriter) exec(query string, args ...interface{}) {
	if w.err != nil {
		return
	}
	if _, err := w.tx.ExecContext(w.ctx, query, args...); err != nil {
		w.err = fmt.Errorf("export insert: %w", err)
	}
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func emptyNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func rangeValue(r *daterange.Range) interface{} {
	if r == nil || !r.IsKnown() {
		return nil
	}
	return r.String()
}
