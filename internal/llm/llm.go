// Package llm talks to chat completion providers.
package llm

import (
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 60 * time.Second

func New(cfg Config) (LLM, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case "claude":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude provider requires ANTHROPIC_API_KEY")
		}
		return newClaude(cfg.APIKey, cfg.Model, cfg.MaxTokens, httpClient), nil
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}

		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}

		return newOpenAICompatible(cfg.APIKey, baseURL, model, cfg.MaxTokens, httpClient), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}

		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}

		// Ollama's OpenAI-compatible endpoint
		return newOpenAICompatible("ollama", baseURL+"/v1", model, cfg.MaxTokens, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
