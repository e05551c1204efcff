package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/records"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	require.NoError(t, registerDefaults(model.DefaultConfig()))
	viper.SetEnvPrefix("LABELSORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := loadConfig()
	require.NoError(t, err)

	want := model.DefaultConfig()
	assert.Equal(t, want.Cluster, cfg.Cluster)
	assert.Equal(t, want.Match, cfg.Match)
	assert.Equal(t, 30*time.Minute, cfg.Similarity.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Geo.Timeout)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("LABELSORT_CLUSTER_THRESHOLD", "0.65")
	t.Setenv("LABELSORT_MATCH_PERMISSIVE_FALLBACK", "true")
	t.Setenv("LABELSORT_MATCH_TEXT_FIELDS", "location,collector")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.InDelta(t, 0.65, cfg.Cluster.Threshold, 1e-9)
	assert.True(t, cfg.Match.PermissiveFallback)
	assert.Equal(t, []string{"location", "collector"}, cfg.Match.TextFields)
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	resetViper(t)
	t.Setenv("LABELSORT_CLUSTER_MODE", "kmeans")

	_, err := loadConfig()
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfiguration), "got %v", err)
	assert.Contains(t, err.Error(), "cluster.mode")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# labelsort configuration file"))

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, *model.DefaultConfig(), cfg)

	err = writeDefaultConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestApplyLLMFlags(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := model.DefaultConfig()
	err := applyLLMFlags(cfg, &ioFlags{llmProvider: "openai"})
	assert.True(t, errors.Is(err, model.ErrConfiguration), "got %v", err)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg = model.DefaultConfig()
	require.NoError(t, applyLLMFlags(cfg, &ioFlags{llmProvider: "openai", llmModel: "gpt-4o"}))
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)

	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")
	cfg = model.DefaultConfig()
	require.NoError(t, applyLLMFlags(cfg, &ioFlags{llmProvider: "ollama"}))
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL)

	cfg = model.DefaultConfig()
	require.NoError(t, applyLLMFlags(cfg, &ioFlags{}))
	assert.Empty(t, cfg.LLM.Provider)
}

func TestLLMNotePath(t *testing.T) {
	assert.Equal(t, "out/review.llm.md", llmNotePath("out/review.md"))
	assert.Equal(t, "review.llm.md", llmNotePath("review"))
}

func TestLoadClusters_TableAndReport(t *testing.T) {
	dir := t.TempDir()

	tsv := filepath.Join(dir, "clusters.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte("label.ID\tlabel.v\tgroup.ID\nA\tArgentina\tcluster00001\nB\tArgentina\tcluster00001\nC\tBrazil\tcluster00002\n"), 0o644))
	clusters, err := loadClusters(tsv)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"A", "B"}, clusters[0].Members)

	report := filepath.Join(dir, "report.json")
	require.NoError(t, records.WriteJSONFile(report, &model.Report{Clusters: clusters}))
	fromReport, err := loadClusters(report)
	require.NoError(t, err)
	assert.Equal(t, clusters, fromReport)
}

func TestRunCommand_EndToEnd(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	cfgPath := write("config.yaml", "log:\n  level: error\n  format: json\n")
	labels := write("labels.json", `[
		{"ID": "A", "text": "Argentina Buenos Aires 1905 Frank"},
		{"ID": "B", "text": "Argentina Buen Aires 1905 Frank"},
		{"ID": "C", "text": "Brazil Rio 1910 Muller"},
		{"ID": "D"}
	]`)
	events := write("events.json", `[
		{"ID": "E1", "location": "Argentina, Buenos Aires", "date": "15.12.1905", "collector": "Frank"},
		{"ID": "E2", "location": "Brazil, Rio", "date": "1910", "collector": "Muller"}
	]`)
	jsonOut := filepath.Join(dir, "report.json")
	mdOut := filepath.Join(dir, "report.md")
	tsvOut := filepath.Join(dir, "clusters.tsv")

	rootCmd.SetArgs([]string{
		"run", "--config", cfgPath,
		"--labels", labels, "--events", events,
		"--json", jsonOut, "--md", mdOut, "--tsv", tsvOut,
	})
	require.NoError(t, Execute())

	report, err := records.LoadReport(jsonOut)
	require.NoError(t, err)
	assert.Equal(t, "run", report.Command)
	require.Len(t, report.Clusters, 2)
	require.Len(t, report.Confidences, 2)
	assert.Equal(t, "E1", report.Confidences[0].BestEventID)

	// The malformed label is reported, never clustered.
	require.NotEmpty(t, report.Skipped)
	assert.Equal(t, "D", report.Skipped[0].ID)

	md, err := os.ReadFile(mdOut)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# labelsort run report")

	clusters, err := loadClusters(tsvOut)
	require.NoError(t, err)
	assert.Len(t, clusters, 2)
	_, err = os.Stat(llmNotePath(mdOut))
	assert.True(t, os.IsNotExist(err))
}
