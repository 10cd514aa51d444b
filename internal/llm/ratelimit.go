package llm

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    LLM
	limiter *rate.Limiter
}

// RateLimited wraps next so calls wait for a token. rps <= 0 returns next unchanged.
func RateLimited(next LLM, rps float64, burst int) LLM {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Chat(ctx, systemPrompt, messages)
}
