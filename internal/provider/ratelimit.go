package provider

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"tako/internal/domain"
)

// RateLimited paces calls to a Generator. Callers wait for a token rather
// than failing, bounded by their context.
type RateLimited struct {
	next    domain.Generator
	limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with a burst of one
// second's worth (at least 1).
func NewRateLimited(next domain.Generator, perMinute int) *RateLimited {
	burst := perMinute / 60
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (r *RateLimited) Name() string { return r.next.Name() }

func (r *RateLimited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.next.Generate(ctx, prompt)
}
