package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/records"
)

// Renderer writes reports for curators.
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer.
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the full report as JSON.
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	return records.WriteJSONFile(path, report)
}

// RenderMarkdown writes the curator report.
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(report)), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderLLMMarkdown writes an already rendered LLM note.
func (r *Renderer) RenderLLMMarkdown(md, path string) error {
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown renders the curator report: bulk-validatable clusters first, then
// clusters needing review, then everything that did not match.
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# labelsort %s report\n\n", report.Command)
	fmt.Fprintf(&b, "- **Run**: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- **Generated**: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Summary\n\n")
	b.WriteString(summaryTable(s).RenderMarkdown())
	b.WriteString("\n\n")

	if len(s.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		tw := table.NewWriter()
		tw.AppendHeader(table.Row{"Signal", "Severity", "Description"})
		for _, sig := range s.Signals {
			tw.AppendRow(table.Row{string(sig.Type), string(sig.Severity), sig.Description})
		}
		b.WriteString(tw.RenderMarkdown())
		b.WriteString("\n\n")
	}

	var bulk, review []model.ClusterConfidence
	for _, cc := range report.Confidences {
		switch cc.Review {
		case model.ReviewBulk:
			bulk = append(bulk, cc)
		case model.ReviewManual:
			review = append(review, cc)
		}
	}
	if len(bulk) > 0 {
		b.WriteString("## Bulk validation\n\n")
		b.WriteString(confidenceTable(bulk, report.Clusters).RenderMarkdown())
		b.WriteString("\n\n")
	}
	if len(review) > 0 {
		b.WriteString("## Needs review\n\n")
		b.WriteString(confidenceTable(review, report.Clusters).RenderMarkdown())
		b.WriteString("\n\n")
	}

	if len(report.Confidences) == 0 && len(report.Clusters) > 0 {
		b.WriteString("## Clusters\n\n")
		tw := table.NewWriter()
		tw.AppendHeader(table.Row{"Cluster", "Parent", "Size", "Representative"})
		for _, c := range report.Clusters {
			tw.AppendRow(table.Row{c.ID, c.Parent, c.Size(), oneLine(c.Representative, 80)})
		}
		b.WriteString(tw.RenderMarkdown())
		b.WriteString("\n\n")
	}

	if len(report.Confidences) == 0 && len(report.Matches) > 0 {
		b.WriteString("## Matches\n\n")
		tw := table.NewWriter()
		tw.AppendHeader(table.Row{"Query", "Event", "Score", "Date filter"})
		for _, m := range report.Matches {
			tw.AppendRow(table.Row{m.LabelID, m.EventID, fmt.Sprintf("%.3f", m.Score), dateFilterState(m)})
		}
		b.WriteString(tw.RenderMarkdown())
		b.WriteString("\n\n")
	}

	writeList(&b, "Unmatched clusters", report.UnmatchedClusters)
	if len(report.UnmatchedLabels) > 0 {
		b.WriteString("## Unmatched labels\n\n")
		for _, u := range report.UnmatchedLabels {
			fmt.Fprintf(&b, "- `%s` (%s)\n", u.LabelID, u.Reason)
		}
		b.WriteString("\n")
	}
	writeList(&b, "Unmatched events", report.UnmatchedEvents)

	if len(report.Skipped) > 0 {
		b.WriteString("## Skipped and degraded records\n\n")
		tw := table.NewWriter()
		tw.AppendHeader(table.Row{"Kind", "ID", "Index", "Reason", "Degraded"})
		for _, sk := range report.Skipped {
			tw.AppendRow(table.Row{string(sk.Kind), sk.ID, sk.Index, sk.Reason, sk.Degraded})
		}
		b.WriteString(tw.RenderMarkdown())
		b.WriteString("\n\n")
	}

	if report.LLM != nil && report.LLM.Enabled {
		b.WriteString("> An LLM curator note was generated separately; it does not affect any score above.\n\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Scores are similarity estimates. Bulk validation still requires a curator's sign-off._\n")
	}
	return b.String()
}

// RenderSummary prints the terminal summary table.
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	tw := summaryTable(report.Summary)
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("labelsort " + report.Command)
	fmt.Fprintln(w, tw.Render())

	if len(report.Confidences) == 0 {
		return
	}
	ct := confidenceTable(report.Confidences, report.Clusters)
	ct.SetStyle(table.StyleRounded)
	fmt.Fprintln(w, ct.Render())
}

func summaryTable(s model.Summary) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Labels", s.Labels},
		{"Events", s.Events},
		{"Clusters", s.Clusters},
		{"Matched", s.Matched},
		{"Bulk", s.Bulk},
		{"Review", s.Review},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw
}

func confidenceTable(confidences []model.ClusterConfidence, clusters []model.Cluster) table.Writer {
	reps := make(map[string]string, len(clusters))
	for _, c := range clusters {
		reps[c.ID] = c.Representative
	}

	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Cluster", "Size", "Matched", "Event", "Frequency", "Avg score", "Confidence", "Representative"})
	for _, cc := range confidences {
		conf := "-"
		if cc.Confidence != nil {
			conf = fmt.Sprintf("%.3f", *cc.Confidence)
		}
		tw.AppendRow(table.Row{
			cc.ClusterID, cc.Size, cc.Matched, cc.BestEventID,
			fmt.Sprintf("%.3f", cc.Frequency), fmt.Sprintf("%.3f", cc.AvgScore), conf,
			oneLine(reps[cc.ClusterID], 60),
		})
	}
	configs := make([]table.ColumnConfig, 0, 5)
	for _, n := range []int{2, 3, 5, 6, 7} {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func dateFilterState(m model.MatchResult) string {
	switch {
	case m.DateFilterBypassed:
		return "bypassed"
	case m.DateFiltered:
		return "applied"
	default:
		return "off"
	}
}

func writeList(b *strings.Builder, title string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, id := range ids {
		fmt.Fprintf(b, "- `%s`\n", id)
	}
	b.WriteString("\n")
}

// oneLine flattens text and truncates it to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
