package model

import (
	"runtime"
	"strings"
	"time"
)

// Option values accepted by the configuration.
const (
	ScorerToken = "token"
	ScorerEdit  = "edit"

	ClusterModeThreshold = "threshold"
	ClusterModeLinkage   = "linkage"
	ClusterModeField     = "field"

	RepresentativeFirst     = "first"
	RepresentativePick      = "pick"
	RepresentativeAlignment = "alignment"

	FieldMatchExact = "exact"
	FieldMatchFuzzy = "fuzzy"

	ConfidenceProduct      = "product"
	ConfidenceHarmonic     = "harmonic"
	ConfidenceSizeWeighted = "size_weighted"

	EventFieldLocation  = "location"
	EventFieldDate      = "date"
	EventFieldCollector = "collector"
	EventFieldText      = "text"
)

// Config holds every tunable of a run.
type Config struct {
	Similarity  SimilarityConfig  `yaml:"similarity" mapstructure:"similarity"`
	Cluster     ClusterConfig     `yaml:"cluster" mapstructure:"cluster"`
	Match       MatchConfig       `yaml:"match" mapstructure:"match"`
	Score       ScoreConfig       `yaml:"score" mapstructure:"score"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Geo         GeoConfig         `yaml:"geo" mapstructure:"geo"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// SimilarityConfig tunes text normalization and the token scorer.
type SimilarityConfig struct {
	FuzzyTokenMin float64       `yaml:"fuzzy_token_min" mapstructure:"fuzzy_token_min"`
	CacheTTL      time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// ClusterConfig controls label aggregation.
type ClusterConfig struct {
	Mode           string          `yaml:"mode" mapstructure:"mode"`
	Threshold      float64         `yaml:"threshold" mapstructure:"threshold"`
	Scorer         string          `yaml:"scorer" mapstructure:"scorer"`
	Representative string          `yaml:"representative" mapstructure:"representative"`
	FieldMatch     string          `yaml:"field_match" mapstructure:"field_match"`
	FieldFuzzyMin  float64         `yaml:"field_fuzzy_min" mapstructure:"field_fuzzy_min"`
	IDFormat       string          `yaml:"id_format" mapstructure:"id_format"`
	SubMedoid      SubMedoidConfig `yaml:"submedoid" mapstructure:"submedoid"`
}

// SubMedoidConfig controls K-medoid refinement of large clusters.
type SubMedoidConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	AutoSize      int     `yaml:"auto_size" mapstructure:"auto_size"` // 0 disables automatic refinement
	MaxK          int     `yaml:"max_k" mapstructure:"max_k"`
	MinSilhouette float64 `yaml:"min_silhouette" mapstructure:"min_silhouette"`
	Seed          uint64  `yaml:"seed" mapstructure:"seed"`
}

// MatchConfig controls label-to-event matching.
type MatchConfig struct {
	Scorer             string   `yaml:"scorer" mapstructure:"scorer"`
	DateFilter         bool     `yaml:"date_filter" mapstructure:"date_filter"`
	PermissiveFallback bool     `yaml:"permissive_fallback" mapstructure:"permissive_fallback"`
	TopK               int      `yaml:"top_k" mapstructure:"top_k"`
	MinScore           float64  `yaml:"min_score" mapstructure:"min_score"`
	TextFields         []string `yaml:"text_fields" mapstructure:"text_fields"` // Event fields compared with label text
}

// ScoreConfig controls cluster confidence and review levels.
type ScoreConfig struct {
	Confidence     string  `yaml:"confidence" mapstructure:"confidence"`
	BulkConfidence float64 `yaml:"bulk_confidence" mapstructure:"bulk_confidence"`
	BulkFrequency  float64 `yaml:"bulk_frequency" mapstructure:"bulk_frequency"`
}

// EnrichConfig selects which optional label fields are extracted.
type EnrichConfig struct {
	Dates         bool    `yaml:"dates" mapstructure:"dates"`
	Collectors    string  `yaml:"collectors" mapstructure:"collectors"` // Path to a collector catalog
	NameThreshold float64 `yaml:"name_threshold" mapstructure:"name_threshold"`
	Geocode       bool    `yaml:"geocode" mapstructure:"geocode"`
	Coordinates   bool    `yaml:"coordinates" mapstructure:"coordinates"` // Read written lat/lng, no network
}

// GeoConfig configures the GeoNames gazetteer client.
type GeoConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	Username          string        `yaml:"username" mapstructure:"username"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	MaxNGram          int           `yaml:"max_ngram" mapstructure:"max_ngram"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	HTTPProxy         string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// ConcurrencyConfig sizes the worker pool.
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LLMConfig configures the optional curator note.
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"-" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy      string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy     string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy        string `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // auto, console or json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Similarity: SimilarityConfig{
			FuzzyTokenMin: 0.6,
			CacheTTL:      30 * time.Minute,
		},
		Cluster: ClusterConfig{
			Mode:           ClusterModeThreshold,
			Threshold:      0.8,
			Scorer:         ScorerToken,
			Representative: RepresentativeFirst,
			FieldMatch:     FieldMatchExact,
			FieldFuzzyMin:  0.8,
			IDFormat:       "cluster:5",
			SubMedoid: SubMedoidConfig{
				MaxK:          5,
				MinSilhouette: 0.25,
				Seed:          1,
			},
		},
		Match: MatchConfig{
			Scorer:     ScorerToken,
			DateFilter: true,
			TopK:       3,
			TextFields: []string{EventFieldText},
		},
		Score: ScoreConfig{
			Confidence:     ConfidenceProduct,
			BulkConfidence: 0.8,
			BulkFrequency:  0.9,
		},
		Enrich: EnrichConfig{
			Dates:         true,
			NameThreshold: 0.75,
			Coordinates:   true,
		},
		Geo: GeoConfig{
			BaseURL:           "http://api.geonames.org",
			RequestsPerSecond: 1,
			Burst:             1,
			MaxNGram:          3,
			Timeout:           10 * time.Second,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		LLM: LLMConfig{
			Timeout:        30,
			StrictEvidence: true,
			MaxTokens:      600,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Validate checks every enumerated option and numeric range. Errors wrap
// ErrConfiguration.
func (c *Config) Validate() error {
	if err := oneOf("cluster.mode", c.Cluster.Mode, ClusterModeThreshold, ClusterModeLinkage, ClusterModeField); err != nil {
		return err
	}
	if err := oneOf("cluster.scorer", c.Cluster.Scorer, ScorerToken, ScorerEdit); err != nil {
		return err
	}
	if err := oneOf("match.scorer", c.Match.Scorer, ScorerToken, ScorerEdit); err != nil {
		return err
	}
	if err := oneOf("cluster.representative", c.Cluster.Representative,
		RepresentativeFirst, RepresentativePick, RepresentativeAlignment); err != nil {
		return err
	}
	if err := oneOf("cluster.field_match", c.Cluster.FieldMatch, FieldMatchExact, FieldMatchFuzzy); err != nil {
		return err
	}
	if err := oneOf("score.confidence", c.Score.Confidence,
		ConfidenceProduct, ConfidenceHarmonic, ConfidenceSizeWeighted); err != nil {
		return err
	}
	if err := oneOf("log.format", c.Log.Format, "auto", "console", "json"); err != nil {
		return err
	}

	if c.Cluster.Threshold <= 0 || c.Cluster.Threshold > 1 {
		return ConfigErrorf("cluster.threshold must be in (0, 1], got %v", c.Cluster.Threshold)
	}
	for name, v := range map[string]float64{
		"similarity.fuzzy_token_min": c.Similarity.FuzzyTokenMin,
		"cluster.field_fuzzy_min":    c.Cluster.FieldFuzzyMin,
		"match.min_score":            c.Match.MinScore,
		"score.bulk_confidence":      c.Score.BulkConfidence,
		"score.bulk_frequency":       c.Score.BulkFrequency,
		"enrich.name_threshold":      c.Enrich.NameThreshold,
	} {
		if v < 0 || v > 1 {
			return ConfigErrorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	if c.Cluster.SubMedoid.MinSilhouette < -1 || c.Cluster.SubMedoid.MinSilhouette > 1 {
		return ConfigErrorf("cluster.submedoid.min_silhouette must be in [-1, 1], got %v", c.Cluster.SubMedoid.MinSilhouette)
	}
	if c.Cluster.SubMedoid.MaxK < 2 {
		return ConfigErrorf("cluster.submedoid.max_k must be at least 2, got %d", c.Cluster.SubMedoid.MaxK)
	}
	if c.Cluster.SubMedoid.AutoSize < 0 {
		return ConfigErrorf("cluster.submedoid.auto_size must not be negative, got %d", c.Cluster.SubMedoid.AutoSize)
	}
	if c.Match.TopK < 1 {
		return ConfigErrorf("match.top_k must be at least 1, got %d", c.Match.TopK)
	}
	if len(c.Match.TextFields) == 0 {
		return ConfigErrorf("match.text_fields must name at least one field")
	}
	for _, f := range c.Match.TextFields {
		if err := oneOf("match.text_fields entry", f,
			EventFieldLocation, EventFieldDate, EventFieldCollector, EventFieldText); err != nil {
			return err
		}
	}
	if c.Concurrency.Workers < 1 {
		return ConfigErrorf("concurrency.workers must be at least 1, got %d", c.Concurrency.Workers)
	}
	if c.Enrich.Geocode && c.Geo.Username == "" {
		return ConfigErrorf("geo.username is required when enrich.geocode is set")
	}
	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return ConfigErrorf("unknown %s %q (supported: %s)", name, value, strings.Join(allowed, ", "))
}
