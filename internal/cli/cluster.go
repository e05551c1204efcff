package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	clusterIO   ioFlags
	clusterKeys = map[string]string{}
)

// clusterCmd represents the cluster command
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Group labels that describe the same collecting event",
	Long: `Cluster aggregates transcribed labels into groups of near-duplicates:
- Normalize label text (case, accents, punctuation)
- Join labels whose similarity reaches the threshold
- Optionally refine large clusters with K-medoids
- Pick a representative text per cluster

Example:
  labelsort cluster --labels labels.json --tsv clusters.tsv
  labelsort cluster --labels labels.json --mode linkage --threshold 0.7 --json clusters.json
  labelsort cluster --labels labels.json --submedoid --auto-size 20 --representative alignment`,
	Args: cobra.NoArgs,
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)

	clusterIO.addLabels(clusterCmd)
	clusterIO.addOutputs(clusterCmd, true, false)
	addClusterFlags(clusterCmd, clusterKeys)
	addEnrichFlags(clusterCmd, clusterKeys)
}

func runCluster(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	p, cfg, logger, err := setup(cmd, clusterKeys, &clusterIO)
	if err != nil {
		return err
	}
	labels, err := clusterIO.loadLabels(p, cfg)
	if err != nil {
		return err
	}

	report, enriched, err := p.Cluster(ctx, labels)
	if err != nil {
		return fmt.Errorf("cluster failed: %w", err)
	}
	logger.Debug().Str("run_id", report.RunID).Msg("clustering finished")
	progress(cfg, "✓ Built %d clusters from %d labels\n", len(report.Clusters), len(enriched))

	return clusterIO.writeOutputs(ctx, cfg, report, enriched, nil)
}
