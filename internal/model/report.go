package model

import "time"

// Report is the complete output of a labelsort run. Sections that a command
// did not compute are left empty.
type Report struct {
	RunID       string    `json:"run_id"`       // Unique per invocation
	Command     string    `json:"command"`      // cluster, match, reconcile or run
	GeneratedAt time.Time `json:"generated_at"` // When the report was assembled

	Clusters        []Cluster        `json:"clusters,omitempty"`
	Matches         []MatchResult    `json:"matches,omitempty"`
	UnmatchedLabels []UnmatchedLabel `json:"unmatched_labels,omitempty"`

	Confidences       []ClusterConfidence `json:"confidences,omitempty"`
	UnmatchedClusters []string            `json:"unmatched_clusters,omitempty"`
	UnmatchedEvents   []string            `json:"unmatched_events,omitempty"`

	Skipped []Skipped `json:"skipped,omitempty"` // Malformed or degraded inputs

	Summary Summary  `json:"summary"`
	LLM     *LLMNote `json:"llm,omitempty"` // Optional curator note, never affects scores
}

// Summary carries run totals and transparent diagnostic signals.
type Summary struct {
	Labels   int      `json:"labels"`
	Events   int      `json:"events"`
	Clusters int      `json:"clusters"`
	Matched  int      `json:"matched"`
	Bulk     int      `json:"bulk"`
	Review   int      `json:"review"`
	Signals  []Signal `json:"signals,omitempty"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`           // Signal classification
	Severity    SignalSeverity         `json:"severity"`       // info, warning, critical
	Description string                 `json:"description"`    // Human-readable description
	Data        map[string]interface{} `json:"data,omitempty"` // Formulas and inputs
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalClusterConfidence SignalType = "cluster_confidence" // Per-run confidence distribution
	SignalSplitCluster      SignalType = "split_cluster"      // Members matched to several events
	SignalUnmatchedCluster  SignalType = "unmatched_cluster"  // No member matched
	SignalUnmatchedEvents   SignalType = "unmatched_events"   // Catalog entries never matched
	SignalUnmatchedLabels   SignalType = "unmatched_labels"   // Queries without a usable candidate
	SignalDateFallback      SignalType = "date_fallback"      // Permissive fallback was used
	SignalSkippedRecords    SignalType = "skipped_records"    // Malformed inputs dropped
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// LLMNote is an optional curator-facing summary written by a language model.
// A note with Enabled set and empty Text records a failed generation.
type LLMNote struct {
	Enabled        bool     `json:"enabled"`
	Provider       string   `json:"provider"`
	Model          string   `json:"model,omitempty"`
	StrictEvidence bool     `json:"strict_evidence"`
	Text           string   `json:"text,omitempty"`
	CitedIDs       []string `json:"cited_ids,omitempty"`
	TokensUsed     int      `json:"tokens_used,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}
