package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/labelsort/internal/model"
)

// Tuning flags are declared with the built-in defaults for help output; the
// effective value comes from viper, so config files and env vars apply too.

func addClusterFlags(cmd *cobra.Command, keys map[string]string) {
	d := model.DefaultConfig().Cluster
	fs := cmd.Flags()
	fs.String("mode", d.Mode, "clustering mode (threshold, linkage, field)")
	fs.Float64("threshold", d.Threshold, "similarity threshold for joining a cluster")
	fs.String("scorer", d.Scorer, "label similarity scorer (token, edit)")
	fs.String("representative", d.Representative, "representative policy (first, pick, alignment)")
	fs.String("field-match", d.FieldMatch, "field mode comparison (exact, fuzzy)")
	fs.String("id-format", d.IDFormat, "cluster ID format prefix:digits")
	fs.Bool("submedoid", d.SubMedoid.Enabled, "refine clusters with K-medoids")
	fs.Int("auto-size", d.SubMedoid.AutoSize, "refine clusters larger than this size (0 disables)")
	fs.Int("max-k", d.SubMedoid.MaxK, "largest K tried by sub-clustering")
	fs.Uint64("seed", d.SubMedoid.Seed, "sub-clustering random seed")

	for flag, key := range map[string]string{
		"mode":           "cluster.mode",
		"threshold":      "cluster.threshold",
		"scorer":         "cluster.scorer",
		"representative": "cluster.representative",
		"field-match":    "cluster.field_match",
		"id-format":      "cluster.id_format",
		"submedoid":      "cluster.submedoid.enabled",
		"auto-size":      "cluster.submedoid.auto_size",
		"max-k":          "cluster.submedoid.max_k",
		"seed":           "cluster.submedoid.seed",
	} {
		keys[flag] = key
	}
}

// addMatchFlags registers the matcher tunables. scorerFlag differs when the
// command also clusters.
func addMatchFlags(cmd *cobra.Command, keys map[string]string, scorerFlag string) {
	d := model.DefaultConfig().Match
	fs := cmd.Flags()
	fs.String(scorerFlag, d.Scorer, "label-to-event similarity scorer (token, edit)")
	fs.Bool("date-filter", d.DateFilter, "only compare labels with events whose dates overlap")
	fs.Bool("permissive", d.PermissiveFallback, "fall back to all events when the date filter leaves none")
	fs.Int("top-k", d.TopK, "candidates kept per query")
	fs.Float64("min-score", d.MinScore, "best scores at or below this value leave a query unmatched")
	fs.StringSlice("text-fields", d.TextFields, "event fields compared with label text (location, date, collector, text)")

	keys[scorerFlag] = "match.scorer"
	keys["date-filter"] = "match.date_filter"
	keys["permissive"] = "match.permissive_fallback"
	keys["top-k"] = "match.top_k"
	keys["min-score"] = "match.min_score"
	keys["text-fields"] = "match.text_fields"
}

func addScoreFlags(cmd *cobra.Command, keys map[string]string) {
	d := model.DefaultConfig().Score
	fs := cmd.Flags()
	fs.String("confidence", d.Confidence, "cluster confidence function (product, harmonic, size_weighted)")
	fs.Float64("bulk-confidence", d.BulkConfidence, "minimum confidence for bulk validation")
	fs.Float64("bulk-frequency", d.BulkFrequency, "minimum best-event frequency for bulk validation")

	keys["confidence"] = "score.confidence"
	keys["bulk-confidence"] = "score.bulk_confidence"
	keys["bulk-frequency"] = "score.bulk_frequency"
}

func addEnrichFlags(cmd *cobra.Command, keys map[string]string) {
	d := model.DefaultConfig().Enrich
	fs := cmd.Flags()
	fs.Bool("dates", d.Dates, "extract date ranges from label text")
	fs.Bool("geocode", d.Geocode, "geocode label text with GeoNames (needs geo.username)")
	fs.Bool("coordinates", d.Coordinates, "read latitude/longitude written on labels (no network)")

	keys["dates"] = "enrich.dates"
	keys["geocode"] = "enrich.geocode"
	keys["coordinates"] = "enrich.coordinates"
}
