package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runIO   ioFlags
	runKeys = map[string]string{}
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Cluster, match and reconcile in one pass",
	Long: `Run clusters the labels, matches every label against the catalog and
reconciles both into per-cluster confidences.

Example:
  labelsort run --labels labels.json --events events.json --md review.md --json report.json
  labelsort run --labels labels.json --events-table catalog.tsv --tsv clusters.tsv --matches-tsv matches.tsv
  labelsort run --labels labels.json --events events.json --sqlite run.db --llm ollama --llm-model llama3.1`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runIO.addLabels(runCmd)
	runIO.addEvents(runCmd)
	runIO.addOutputs(runCmd, true, true)
	addClusterFlags(runCmd, runKeys)
	addMatchFlags(runCmd, runKeys, "match-scorer")
	addScoreFlags(runCmd, runKeys)
	addEnrichFlags(runCmd, runKeys)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	p, cfg, logger, err := setup(cmd, runKeys, &runIO)
	if err != nil {
		return err
	}
	labels, err := runIO.loadLabels(p, cfg)
	if err != nil {
		return err
	}
	events, err := runIO.loadEvents(p, cfg)
	if err != nil {
		return err
	}

	report, enriched, parsed, err := p.Run(ctx, labels, events)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	logger.Debug().Str("run_id", report.RunID).Msg("run finished")
	progress(cfg, "✓ %d clusters, %d matches, %d for bulk validation\n",
		len(report.Clusters), len(report.Matches), report.Summary.Bulk)
	if report.LLM != nil && report.LLM.Enabled {
		progress(cfg, "✓ Generated LLM note using %s\n", report.LLM.Provider)
	}

	return runIO.writeOutputs(ctx, cfg, report, enriched, parsed)
}
