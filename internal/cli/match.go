package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/labelsort/internal/model"
)

var (
	matchIO       ioFlags
	matchClusters string
	matchKeys     = map[string]string{}
)

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank catalog collecting events for labels or clusters",
	Long: `Match compares every label (or every cluster representative) with the
catalog of collecting events and keeps the best candidates:
- Restrict candidates to events whose date range overlaps the label's
- Optionally fall back to every event when the date filter leaves none
- Report labels that received no candidate

Example:
  labelsort match --labels labels.json --events events.json --matches-tsv matches.tsv
  labelsort match --labels labels.json --events-table catalog.tsv --clusters clusters.tsv
  labelsort match --labels labels.json --events events.json --permissive --top-k 5`,
	Args: cobra.NoArgs,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchIO.addLabels(matchCmd)
	matchIO.addEvents(matchCmd)
	matchCmd.Flags().StringVar(&matchClusters, "clusters", "", "match cluster representatives from a cluster table or JSON report")
	matchIO.addOutputs(matchCmd, false, true)
	addMatchFlags(matchCmd, matchKeys, "scorer")
	addEnrichFlags(matchCmd, matchKeys)
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	p, cfg, logger, err := setup(cmd, matchKeys, &matchIO)
	if err != nil {
		return err
	}
	labels, err := matchIO.loadLabels(p, cfg)
	if err != nil {
		return err
	}
	events, err := matchIO.loadEvents(p, cfg)
	if err != nil {
		return err
	}

	var clusters []model.Cluster
	if matchClusters != "" {
		if clusters, err = loadClusters(matchClusters); err != nil {
			return fmt.Errorf("load clusters: %w", err)
		}
		progress(cfg, "✓ Loaded %d clusters from %s\n", len(clusters), matchClusters)
	}

	report, enriched, parsed, err := p.Match(ctx, labels, events, clusters)
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}
	logger.Debug().Str("run_id", report.RunID).Msg("matching finished")
	progress(cfg, "✓ Matched %d queries, %d unmatched\n", len(report.Matches), len(report.UnmatchedLabels))

	return matchIO.writeOutputs(ctx, cfg, report, enriched, parsed)
}
