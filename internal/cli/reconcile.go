package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/records"
)

var (
	reconcileIO       ioFlags
	reconcileClusters string
	reconcileMatches  string
	reconcileKeys     = map[string]string{}
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Score clusters against label matches from earlier runs",
	Long: `Reconcile combines clusters and per-label matches produced by earlier
cluster and match runs:
- Find the most frequent best event of each cluster
- Compute a confidence from frequency and mean score
- Split clusters into bulk validation and manual review
- List clusters and catalog events that were never matched

Example:
  labelsort reconcile --clusters clusters.tsv --matches matches.json --events events.json --md review.md`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileClusters, "clusters", "", "cluster table or JSON report")
	reconcileCmd.Flags().StringVar(&reconcileMatches, "matches", "", "JSON report of a label-level match run")
	reconcileIO.addEvents(reconcileCmd)
	reconcileIO.addOutputs(reconcileCmd, true, true)
	addScoreFlags(reconcileCmd, reconcileKeys)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	if reconcileClusters == "" || reconcileMatches == "" {
		return model.ConfigErrorf("--clusters and --matches are required")
	}

	p, cfg, logger, err := setup(cmd, reconcileKeys, &reconcileIO)
	if err != nil {
		return err
	}

	clusters, err := loadClusters(reconcileClusters)
	if err != nil {
		return fmt.Errorf("load clusters: %w", err)
	}
	previous, err := records.LoadReport(reconcileMatches)
	if err != nil {
		return fmt.Errorf("load matches: %w", err)
	}
	events, err := reconcileIO.loadEvents(p, cfg)
	if err != nil {
		return err
	}
	progress(cfg, "✓ Loaded %d clusters and %d matches\n", len(clusters), len(previous.Matches))

	report, err := p.Reconcile(ctx, clusters, previous.Matches, events)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	logger.Debug().Str("run_id", report.RunID).Msg("reconciliation finished")
	progress(cfg, "✓ %d clusters for bulk validation, %d for review\n", report.Summary.Bulk, report.Summary.Review)

	return reconcileIO.writeOutputs(ctx, cfg, report, nil, events)
}
