package embedding

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vox-os/vox-memory/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.707, 0.01},
		{"empty", Vector{}, Vector{}, 0.0, 0.001},
		{"different lengths", Vector{1, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f (±%f)", tt.a, tt.b, got, tt.expected, tt.delta)
			}
		})
	}
}

func TestCosineDistance(t *testing.T) {
	if d := CosineDistance(Vector{1, 0}, Vector{1, 0}); math.Abs(d) > 0.001 {
		t.Errorf("identical vectors should have distance 0, got %f", d)
	}
	if d := CosineDistance(Vector{1, 0}, Vector{0, 1}); math.Abs(d-1) > 0.001 {
		t.Errorf("orthogonal vectors should have distance 1, got %f", d)
	}
}

type failingEmbedder struct{ calls int }

func (f *failingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func (f *failingEmbedder) Dims() int { return 3 }

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	if v := Generate(ctx, nil, "hello"); v != nil {
		t.Errorf("nil embedder should give nil, got %v", v)
	}
	if v := Generate(ctx, &failingEmbedder{}, "hello"); v != nil {
		t.Errorf("failing embedder should give nil, got %v", v)
	}
	if v := Generate(ctx, NewHashEmbedder(16), "favorite color blue"); len(v) != 16 {
		t.Errorf("expected 16 dims, got %d", len(v))
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(256)

	q, _ := e.Embed(ctx, "what is my favorite color")
	near, _ := e.Embed(ctx, "My favorite color is blue.")
	far, _ := e.Embed(ctx, "I work as a nurse on night shifts")

	if CosineSimilarity(q, near) <= CosineSimilarity(q, far) {
		t.Errorf("expected shared words to score higher: near=%f far=%f",
			CosineSimilarity(q, near), CosineSimilarity(q, far))
	}

	again, _ := e.Embed(ctx, "what is my favorite color")
	if CosineSimilarity(q, again) < 0.999 {
		t.Error("expected deterministic vectors")
	}
}

type countingEmbedder struct{ calls int }

func (c *countingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	c.calls++
	return Vector{1, 2, 3}, nil
}

func (c *countingEmbedder) Dims() int { return 3 }

func TestCached(t *testing.T) {
	inner := &countingEmbedder{}
	c, err := NewCached(inner, 100)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, err := c.Embed(ctx, "hello"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	c.Wait()

	v, err := c.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v) != 3 {
		t.Errorf("unexpected vector %v", v)
	}
	if inner.calls != 1 {
		t.Errorf("expected cached second call, inner called %d times", inner.calls)
	}
	if c.Dims() != 3 {
		t.Errorf("expected dims 3, got %d", c.Dims())
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	inner := &failingEmbedder{}
	c, err := NewCached(inner, 10)
	if err != nil {
		t.Fatalf("new cached: %v", err)
	}
	defer c.Close()

	for i := 0; i < 2; i++ {
		if _, err := c.Embed(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
		c.Wait()
	}
	if inner.calls != 2 {
		t.Errorf("errors should not be cached, got %d calls", inner.calls)
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "all-minilm")
	if e.Dims() != 384 {
		t.Errorf("expected 384 dims for all-minilm, got %d", e.Dims())
	}
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v) != 3 {
		t.Errorf("unexpected vector %v", v)
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("missing auth header")
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL+"/v1/", "k", "", 2)
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(v) != 2 || v[0] != 1 {
		t.Errorf("unexpected vector %v", v)
	}
}

func TestOpenAIEmbedderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "k", "", 0)
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error on 401")
	}
	if e.Dims() != 1536 {
		t.Errorf("expected default dims 1536, got %d", e.Dims())
	}
}

func TestNewFromConfig(t *testing.T) {
	e, err := NewFromConfig(config.EmbeddingConfig{})
	if err != nil || e != nil {
		t.Errorf("expected disabled embedder, got %v, %v", e, err)
	}

	e, err = NewFromConfig(config.EmbeddingConfig{Provider: "hash", Dims: 32, CacheSize: 10})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := e.(*Cached); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}
	if e.Dims() != 32 {
		t.Errorf("expected 32 dims, got %d", e.Dims())
	}

	if _, err := NewFromConfig(config.EmbeddingConfig{Provider: "cohere"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
