package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/labelsort/internal/model"
)

// Summarizer writes the optional curator note of a report. Generation
// failures are recorded as warnings on the note and never fail the run.
type Summarizer struct {
	provider Provider
	config   Config
}

// NewSummarizer creates a summarizer; an empty provider name yields a
// disabled one.
func NewSummarizer(config Config) (*Summarizer, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Summarizer{provider: provider, config: config}, nil
}

// NewSummarizerWithProvider wraps an existing provider.
func NewSummarizerWithProvider(provider Provider, config Config) *Summarizer {
	return &Summarizer{provider: provider, config: config}
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the configured provider, or "" when disabled
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return ""
	}
	return s.provider.Name()
}

// GenerateSummary returns nil when disabled. The report is read only; the
// note is attached by the caller.
func (s *Summarizer) GenerateSummary(ctx context.Context, report model.Report) (*model.LLMNote, error) {
	if !s.IsEnabled() {
		return nil, nil
	}

	note := &model.LLMNote{
		Enabled:        true,
		Provider:       s.provider.Name(),
		Model:          s.config.Model,
		StrictEvidence: s.config.StrictEvidence,
	}

	if !s.provider.IsAvailable(ctx) {
		note.Enabled = false
		note.Warnings = append(note.Warnings, fmt.Sprintf("LLM provider %s is not available", note.Provider))
		return note, nil
	}

	allowed := AllowedIDs(report)
	resp, err := s.provider.Summarize(ctx, SummarizeRequest{
		Report:     report,
		AllowedIDs: allowed,
		Model:      s.config.Model,
		MaxTokens:  s.config.MaxTokens,
	})
	if err != nil {
		note.Warnings = append(note.Warnings, fmt.Sprintf("LLM summary generation failed: %v", err))
		return note, nil
	}

	if resp.Model != "" {
		note.Model = resp.Model
	}
	note.Text = resp.Summary
	note.CitedIDs = resp.CitedIDs
	note.TokensUsed = resp.TokensUsed
	note.Warnings = append(note.Warnings,
		fmt.Sprintf("Tokens used: %d", resp.TokensUsed),
		fmt.Sprintf("Verified %d citations against %d report IDs", len(resp.CitedIDs), len(allowed)),
	)
	return note, nil
}

// RenderSeparateMarkdown renders the note as a standalone Markdown document,
// kept apart from the deterministic curator report.
func RenderSeparateMarkdown(note *model.LLMNote) string {
	if note == nil || !note.Enabled {
		return ""
	}

	var b strings.Builder
	b.WriteString("# LLM Summary\n\n")
	b.WriteString("> **GENERATED CONTENT**: written by a language model from the report below. ")
	b.WriteString("Cluster confidences and review levels were determined independently and are not affected by this note.\n\n")

	fmt.Fprintf(&b, "- **Provider**: %s\n", note.Provider)
	if note.Model != "" {
		fmt.Fprintf(&b, "- **Model**: %s\n", note.Model)
	}
	fmt.Fprintf(&b, "- **Strict Evidence Mode**: %t\n\n", note.StrictEvidence)

	if note.Text == "" {
		b.WriteString("_No summary generated._\n")
	} else {
		b.WriteString(note.Text)
		b.WriteString("\n")
	}

	if len(note.CitedIDs) > 0 {
		b.WriteString("\n## Cited IDs\n\n")
		for _, id := range note.CitedIDs {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
	}

	if len(note.Warnings) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, w := range note.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}
