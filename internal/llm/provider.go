package llm

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/labelsort/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Summarize writes a curator note for the report
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// SummarizeRequest contains the input for LLM summarization
type SummarizeRequest struct {
	// Report is the labelsort run to summarize
	Report model.Report

	// AllowedIDs is the allowlist of cluster and event IDs the note may cite
	AllowedIDs []string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// SummarizeResponse contains the LLM's summary output
type SummarizeResponse struct {
	Summary    string
	CitedIDs   []string // Allowlisted IDs found in the summary
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	Timeout int // seconds

	// StrictEvidence rejects notes that cite IDs outside the report
	StrictEvidence bool

	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns the LLM defaults of a run.
func DefaultConfig() Config {
	return ConfigFromModel(model.DefaultConfig().LLM)
}

const systemPrompt = "You are a helpful assistant that summarizes labelsort reconciliation reports for museum curators with strict adherence to the identifiers in the report."

// BuildPrompt constructs the default curator-note prompt.
func BuildPrompt(report model.Report, allowedIDs []string) string {
	s := report.Summary
	var b strings.Builder
	fmt.Fprintf(&b, `You are summarizing a labelsort report. labelsort groups transcribed specimen labels into clusters and matches them to catalog collecting events. Scores are similarity estimates, never ground truth.

CRITICAL RULES:
1. You MUST ONLY cite cluster or event identifiers from this allowed list:
%s

2. DO NOT invent identifiers, localities, dates or collectors.
3. Describe where curators should focus review effort; do not restate every number.
4. Never claim a match is correct, only that it is likely or uncertain.

Report Summary:
- Command: %s
- Labels: %d
- Catalog events: %d
- Clusters: %d
- Matched queries: %d
- Bulk-validatable clusters: %d
- Clusters needing review: %d
- Unmatched clusters: %d
- Unmatched events: %d
- Skipped records: %d

Key Signals:
`, joinIDs(allowedIDs), report.Command, s.Labels, s.Events, s.Clusters, s.Matched, s.Bulk, s.Review,
		len(report.UnmatchedClusters), len(report.UnmatchedEvents), len(report.Skipped))

	for i, signal := range s.Signals {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", signal.Type, signal.Severity, signal.Description)
	}

	b.WriteString("\nProvide a 3-4 sentence note telling the curator which clusters to validate in bulk and which need review.")
	return b.String()
}

// AllowedIDs lists every cluster and event ID present in the report, sorted.
func AllowedIDs(report model.Report) []string {
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" {
			seen[id] = true
		}
	}
	for _, c := range report.Clusters {
		add(c.ID)
	}
	for _, cc := range report.Confidences {
		add(cc.ClusterID)
		add(cc.BestEventID)
	}
	for _, m := range report.Matches {
		add(m.EventID)
		for _, c := range m.Candidates {
			add(c.EventID)
		}
	}
	for _, id := range report.UnmatchedClusters {
		add(id)
	}
	for _, id := range report.UnmatchedEvents {
		add(id)
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// idPattern matches identifier-shaped tokens such as E12, colev00042 or
// cluster00003.2.
var idPattern = regexp.MustCompile(`\b[A-Za-z][A-Za-z_-]*:?\d+(?:\.\d+)*\b`)

var idPrefix = regexp.MustCompile(`^[A-Za-z][A-Za-z_-]*`)

// extractIDs returns the identifier-looking tokens of text in order of first
// appearance, split into allowlisted and unknown ones. A token only counts as
// an identifier when its alphabetic prefix is shared by an allowed ID.
func extractIDs(text string, allowed []string) (cited, unknown []string) {
	allow := make(map[string]bool, len(allowed))
	prefixes := make(map[string]bool)
	for _, id := range allowed {
		allow[id] = true
		if p := idPrefix.FindString(id); p != "" {
			prefixes[strings.ToLower(p)] = true
		}
	}

	seen := make(map[string]bool)
	for _, tok := range idPattern.FindAllString(text, -1) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		switch {
		case allow[tok]:
			cited = append(cited, tok)
		case prefixes[strings.ToLower(idPrefix.FindString(tok))]:
			unknown = append(unknown, tok)
		}
	}
	return cited, unknown
}

// verifyCitations applies strict evidence mode to a generated note.
func verifyCitations(summary string, allowed []string, strict bool) ([]string, error) {
	cited, unknown := extractIDs(summary, allowed)
	if strict && len(unknown) > 0 {
		return nil, fmt.Errorf("CITATION LEAK: LLM cited IDs absent from the report: %s", strings.Join(unknown, ", "))
	}
	return cited, nil
}

func joinIDs(ids []string) string {
	if len(ids) == 0 {
		return "(No identifiers available)"
	}
	var b strings.Builder
	for i, id := range ids {
		if i >= 20 { // Limit to first 20 to avoid token bloat
			fmt.Fprintf(&b, "\n... and %d more IDs", len(ids)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", id)
	}
	return b.String()
}

func pickModel(req, configured, fallback string) string {
	if req != "" {
		return req
	}
	if configured != "" {
		return configured
	}
	return fallback
}

func pickMaxTokens(req, configured int) int {
	if req > 0 {
		return req
	}
	if configured > 0 {
		return configured
	}
	return 1000
}
