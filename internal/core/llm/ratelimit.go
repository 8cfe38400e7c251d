package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/contexta-graph/internal/core"
)

// NewLimiter returns a token bucket allowing perSecond calls with a burst of
// the same size. A non-positive rate disables limiting.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// RateLimitedEmbedder waits on a shared limiter before each provider call.
type RateLimitedEmbedder struct {
	next    core.EmbeddingProvider
	limiter *rate.Limiter
}

func NewRateLimitedEmbedder(next core.EmbeddingProvider, limiter *rate.Limiter) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{next: next, limiter: limiter}
}

func (r *RateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embed rate limit: %w", err)
	}
	return r.next.EmbedTexts(ctx, texts)
}

// RateLimitedLLM waits on a shared limiter before each completion.
type RateLimitedLLM struct {
	next    core.LLMProvider
	limiter *rate.Limiter
}

func NewRateLimitedLLM(next core.LLMProvider, limiter *rate.Limiter) *RateLimitedLLM {
	return &RateLimitedLLM{next: next, limiter: limiter}
}

func (r *RateLimitedLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("completion rate limit: %w", err)
	}
	return r.next.Generate(ctx, systemPrompt, userPrompt)
}

var (
	_ core.EmbeddingProvider = (*RateLimitedEmbedder)(nil)
	_ core.LLMProvider       = (*RateLimitedLLM)(nil)
)
