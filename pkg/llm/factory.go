package llm

import (
	"fmt"

	"halobot/pkg/config"
)

// NewClientFromConfig builds the configured provider's client wrapped with retry logic.
func NewClientFromConfig(cfg *config.Config) (LLMClient, error) {
	var client LLMClient

	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set for anthropic provider")
		}
		client = NewClaudeClient(cfg.AnthropicAPIKey, cfg.LLM.Model)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set for openai provider")
		}
		client = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.LLM.Model)
	case "ollama":
		client = NewOllamaClient(cfg.OllamaHost, cfg.LLM.Model)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLM.Provider)
	}

	return NewRetryableClient(client), nil
}
