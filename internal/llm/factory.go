package llm

import (
	"strings"

	"github.com/ppiankov/labelsort/internal/model"
)

// NewProvider creates a new LLM provider based on configuration. An empty
// provider name disables the note and returns a nil Provider.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	case "":
		return nil, nil
	default:
		return nil, model.ConfigErrorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:       c.Provider,
		Model:          c.Model,
		APIKey:         c.APIKey,
		BaseURL:        c.BaseURL,
		Timeout:        c.Timeout,
		StrictEvidence: c.StrictEvidence,
		MaxTokens:      c.MaxTokens,
		HTTPProxy:      c.HTTPProxy,
		HTTPSProxy:     c.HTTPSProxy,
		NoProxy:        c.NoProxy,
	}
}
