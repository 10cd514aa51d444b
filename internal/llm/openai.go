package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vox-os/vox-memory/internal/httpjson"
)

type openaiCompatible struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	http      *http.Client
}

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newOpenAICompatible(apiKey, baseURL, model string, maxTokens int, httpClient *http.Client) LLM {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &openaiCompatible{
		apiKey:    apiKey,
		baseURL:   baseURL,
		model:     model,
		maxTokens: maxTokens,
		http:      httpClient,
	}
}

func (o *openaiCompatible) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	req := openaiRequest{Model: o.model, MaxTokens: o.maxTokens}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, openaiMessage{Role: "system", Content: systemPrompt})
	}
	for _, msg := range messages {
		req.Messages = append(req.Messages, openaiMessage{Role: msg.Role, Content: msg.Content})
	}

	var resp openaiResponse
	if err := httpjson.Post(ctx, o.http, o.baseURL+"/chat/completions", o.apiKey, req, &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("api error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
