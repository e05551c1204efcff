package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/labelsort/internal/llm"
	"github.com/ppiankov/labelsort/internal/logging"
	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/pipeline"
	"github.com/ppiankov/labelsort/internal/records"
)

// ioFlags holds the input and output paths of one command.
type ioFlags struct {
	labels      string
	events      string
	eventsTable string
	collectors  string

	outJSON       string
	outTSV        string
	outMatchesTSV string
	outSQLite     string
	outMD         string
	noFooter      bool

	llmProvider string
	llmModel    string
}

func (f *ioFlags) addLabels(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.labels, "labels", "", "labels JSON file (array of {ID, text})")
	cmd.Flags().StringVar(&f.collectors, "collectors", "", "collector catalog JSON file (enables name recognition)")
}

func (f *ioFlags) addEvents(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.events, "events", "", "collecting events JSON file")
	cmd.Flags().StringVar(&f.eventsTable, "events-table", "", "collecting events as a tab-separated catalog export (location, date, collector, text)")
}

func (f *ioFlags) addOutputs(cmd *cobra.Command, clusterTSV, matchTSV bool) {
	cmd.Flags().StringVar(&f.outJSON, "json", "", "output JSON report path")
	cmd.Flags().StringVar(&f.outSQLite, "sqlite", "", "output SQLite database path")
	cmd.Flags().StringVar(&f.outMD, "md", "", "output Markdown curator report path")
	cmd.Flags().BoolVar(&f.noFooter, "no-footer", false, "disable footer in Markdown reports")
	if clusterTSV {
		cmd.Flags().StringVar(&f.outTSV, "tsv", "", "output cluster table path (label.ID, label.v, group.ID)")
	}
	if matchTSV {
		cmd.Flags().StringVar(&f.outMatchesTSV, "matches-tsv", "", "output match table path")
	}

	// LLM flags
	cmd.Flags().StringVar(&f.llmProvider, "llm", "", "generate a curator note with an LLM provider (openai, anthropic, ollama)")
	cmd.Flags().StringVar(&f.llmModel, "llm-model", "", "LLM model name")
}

// bindFlags binds the executing command's tuning flags to config keys. It
// runs per invocation because several commands share flag names.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		pf := cmd.Flags().Lookup(flag)
		if pf == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, pf); err != nil {
			return fmt.Errorf("bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// setup resolves the configuration of a data command and builds its
// pipeline.
func setup(cmd *cobra.Command, keys map[string]string, f *ioFlags) (*pipeline.Pipeline, *model.Config, zerolog.Logger, error) {
	nop := zerolog.Nop()
	if err := bindFlags(cmd, keys); err != nil {
		return nil, nil, nop, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nop, err
	}
	if f.noFooter {
		cfg.Output.IncludeFooter = false
	}
	if err := applyLLMFlags(cfg, f); err != nil {
		return nil, nil, nop, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nop, model.ConfigErrorf("%v", err)
	}

	path := f.collectors
	if path == "" {
		path = cfg.Enrich.Collectors
	}
	var (
		collectors []model.Collector
		skipped    []model.Skipped
	)
	if path != "" {
		collectors, skipped, err = records.LoadCollectors(path)
		if err != nil {
			return nil, nil, nop, fmt.Errorf("load collectors: %w", err)
		}
		progress(cfg, "✓ Loaded %d collectors from %s\n", len(collectors), path)
	}

	p, err := pipeline.NewPipeline(cfg, collectors, logger)
	if err != nil {
		return nil, nil, nop, err
	}
	p.RecordSkipped(skipped...)
	return p, cfg, logger, nil
}

func applyLLMFlags(cfg *model.Config, f *ioFlags) error {
	if f.llmProvider != "" {
		cfg.LLM.Provider = f.llmProvider
	}
	if f.llmModel != "" {
		cfg.LLM.Model = f.llmModel
	}

	// Get API key from environment
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return model.ConfigErrorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return model.ConfigErrorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}

func (f *ioFlags) loadLabels(p *pipeline.Pipeline, cfg *model.Config) ([]model.Label, error) {
	if f.labels == "" {
		return nil, model.ConfigErrorf("--labels is required")
	}
	labels, skipped, err := records.LoadLabels(f.labels)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	p.RecordSkipped(skipped...)
	progress(cfg, "✓ Loaded %d labels from %s (%d skipped)\n", len(labels), f.labels, len(skipped))
	return labels, nil
}

func (f *ioFlags) loadEvents(p *pipeline.Pipeline, cfg *model.Config) ([]model.CollectingEvent, error) {
	var (
		events  []model.CollectingEvent
		skipped []model.Skipped
		err     error
		source  string
	)
	switch {
	case f.events != "" && f.eventsTable != "":
		return nil, model.ConfigErrorf("--events and --events-table are mutually exclusive")
	case f.events != "":
		source = f.events
		events, skipped, err = records.LoadEvents(f.events)
	case f.eventsTable != "":
		source = f.eventsTable
		events, skipped, err = loadEventTable(f.eventsTable)
	default:
		return nil, model.ConfigErrorf("one of --events or --events-table is required")
	}
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	p.RecordSkipped(skipped...)
	progress(cfg, "✓ Loaded %d collecting events from %s (%d skipped)\n", len(events), source, len(skipped))
	return events, nil
}

func loadEventTable(path string) ([]model.CollectingEvent, []model.Skipped, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return records.ReadEventTable(file, records.DefaultTableOptions())
}

// loadClusters reads clusters from a report JSON file or a cluster table.
func loadClusters(path string) ([]model.Cluster, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		report, err := records.LoadReport(path)
		if err != nil {
			return nil, err
		}
		return report.Clusters, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return records.ReadClustersTSV(file)
}

// writeOutputs writes every requested output and prints the summary table.
func (f *ioFlags) writeOutputs(ctx context.Context, cfg *model.Config, report *model.Report, labels []model.Label, events []model.CollectingEvent) error {
	r := pipeline.NewRenderer(cfg.Output.IncludeFooter)

	if f.outJSON != "" {
		if err := r.RenderJSON(report, f.outJSON); err != nil {
			return err
		}
		progress(cfg, "✓ Wrote JSON report: %s\n", f.outJSON)
	}
	if f.outTSV != "" {
		if err := records.WriteClustersTSVFile(f.outTSV, report.Clusters, labels); err != nil {
			return err
		}
		progress(cfg, "✓ Wrote cluster table: %s\n", f.outTSV)
	}
	if f.outMatchesTSV != "" {
		if err := records.WriteMatchesTSVFile(f.outMatchesTSV, report.Matches, labels, events); err != nil {
			return err
		}
		progress(cfg, "✓ Wrote match table: %s\n", f.outMatchesTSV)
	}
	if f.outSQLite != "" {
		if err := records.ExportSQLite(ctx, f.outSQLite, report, labels, events); err != nil {
			return err
		}
		progress(cfg, "✓ Wrote SQLite database: %s\n", f.outSQLite)
	}
	if f.outMD != "" {
		if err := r.RenderMarkdown(report, f.outMD); err != nil {
			return err
		}
		progress(cfg, "✓ Wrote Markdown report: %s\n", f.outMD)

		if md := llm.RenderSeparateMarkdown(report.LLM); md != "" {
			llmPath := llmNotePath(f.outMD)
			if err := r.RenderLLMMarkdown(md, llmPath); err != nil {
				return err
			}
			progress(cfg, "✓ Wrote LLM note: %s\n", llmPath)
		}
	}

	r.RenderSummary(os.Stdout, report)
	return nil
}

// llmNotePath derives report.llm.md from report.md.
func llmNotePath(mdPath string) string {
	return strings.TrimSuffix(mdPath, filepath.Ext(mdPath)) + ".llm.md"
}

func progress(cfg *model.Config, format string, a ...interface{}) {
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, format, a...)
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, timeout)
}
