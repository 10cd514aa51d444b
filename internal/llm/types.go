package llm

import (
	"context"
	"time"
)

type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLM is a chat completion backend. Role "system" messages may appear in
// messages; providers that take the system prompt separately lift them out.
type LLM interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}
