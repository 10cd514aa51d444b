// Package embedding provides a pluggable interface for text embedding providers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/vox-os/vox-memory/internal/config"
	"github.com/vox-os/vox-memory/internal/httpjson"
	"github.com/vox-os/vox-memory/internal/logger"
)

const requestTimeout = 30 * time.Second

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance is 1 - CosineSimilarity. Smaller is closer.
func CosineDistance(a, b Vector) float64 {
	return 1 - CosineSimilarity(a, b)
}

// Generate embeds text with e. A nil embedder, a provider error or an empty
// vector all yield nil; callers store such records without an embedding.
func Generate(ctx context.Context, e Embedder, text string) Vector {
	if e == nil || text == "" {
		return nil
	}
	vec, err := e.Embed(ctx, text)
	if err != nil {
		logger.Warn("embedding failed", "error", err)
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}

// remote embeds text through an HTTP provider. Each provider supplies its
// endpoint, request shape and how to pull the vector out of the reply.
type remote struct {
	name   string
	url    string
	apiKey string
	dims   int
	client *http.Client
	call   func(ctx context.Context, r *remote, text string) (Vector, error)
}

func (r *remote) Embed(ctx context.Context, text string) (Vector, error) {
	vec, err := r.call(ctx, r, text)
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", r.name, err)
	}
	return vec, nil
}

func (r *remote) Dims() int { return r.dims }

// NewOllamaEmbedder embeds through Ollama's /api/embeddings. nomic-embed-text
// has 768 dims, all-minilm 384.
func NewOllamaEmbedder(baseURL, model string) Embedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	dims := 768
	if model == "all-minilm" {
		dims = 384
	}
	return &remote{
		name:   "ollama",
		url:    strings.TrimRight(baseURL, "/") + "/api/embeddings",
		dims:   dims,
		client: &http.Client{Timeout: requestTimeout},
		call: func(ctx context.Context, r *remote, text string) (Vector, error) {
			var out struct {
				Embedding Vector `json:"embedding"`
			}
			in := map[string]string{"model": model, "prompt": text}
			if err := httpjson.Post(ctx, r.client, r.url, "", in, &out); err != nil {
				return nil, err
			}
			return out.Embedding, nil
		},
	}
}

// NewOpenAIEmbedder embeds through any OpenAI-compatible /embeddings endpoint.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) Embedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dims == 0 {
		dims = 1536
	}
	return &remote{
		name:   "openai",
		url:    strings.TrimRight(baseURL, "/") + "/embeddings",
		apiKey: apiKey,
		dims:   dims,
		client: &http.Client{Timeout: requestTimeout},
		call: func(ctx context.Context, r *remote, text string) (Vector, error) {
			var out struct {
				Data []struct {
					Embedding Vector `json:"embedding"`
				} `json:"data"`
			}
			in := map[string]string{"model": model, "input": text}
			if err := httpjson.Post(ctx, r.client, r.url, r.apiKey, in, &out); err != nil {
				return nil, err
			}
			if len(out.Data) == 0 {
				return nil, errors.New("no embedding returned")
			}
			return out.Data[0].Embedding, nil
		},
	}
}

// NewFromConfig builds the configured embedder, wrapped with rate limiting
// and a result cache. It returns nil when embeddings are disabled.
func NewFromConfig(cfg config.EmbeddingConfig) (Embedder, error) {
	var e Embedder
	switch cfg.Provider {
	case "ollama":
		e = NewOllamaEmbedder(cfg.BaseURL, cfg.Model)
	case "openai":
		e = NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dims)
	case "hash":
		e = NewHashEmbedder(cfg.Dims)
	case "":
		return nil, nil // embeddings disabled
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	e = RateLimited(e, cfg.RequestsPerSecond)
	if cfg.CacheSize > 0 {
		cached, err := NewCached(e, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		e = cached
	}
	return e, nil
}
