package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/time/rate"
)

// Cached memoizes vectors by exact input text.
type Cached struct {
	next  Embedder
	cache *ristretto.Cache
}

// NewCached keeps up to maxEntries vectors for next.
func NewCached(next Embedder, maxEntries int64) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) (Vector, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.(Vector); ok {
			return vec, nil
		}
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		c.cache.Set(text, vec, 1)
	}
	return vec, nil
}

func (c *Cached) Dims() int { return c.next.Dims() }

// Wait blocks until buffered cache writes are applied.
func (c *Cached) Wait() { c.cache.Wait() }

func (c *Cached) Close() { c.cache.Close() }

type rateLimited struct {
	next    Embedder
	limiter *rate.Limiter
}

// RateLimited bounds calls to next at rps per second. rps <= 0 disables the limit.
func RateLimited(next Embedder, rps float64) Embedder {
	if rps <= 0 {
		return next
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (r *rateLimited) Embed(ctx context.Context, text string) (Vector, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, text)
}

func (r *rateLimited) Dims() int { return r.next.Dims() }
