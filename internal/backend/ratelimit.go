package backend

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited wraps an adapter so that each Transform waits for a token
// from limiter first. The limiter is shared by all callers of the wrapper.
func RateLimited(next Adapter, limiter *rate.Limiter) Adapter {
	if limiter == nil {
		return next
	}
	return &rateLimited{next: next, limiter: limiter}
}

type rateLimited struct {
	next    Adapter
	limiter *rate.Limiter
}

func (r *rateLimited) Name() string { return r.next.Name() }

func (r *rateLimited) Transform(ctx context.Context, cfg Config, req Request, onChunk ChunkFunc) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return &Result{Backend: r.next.Name(), Model: cfg.Model}, transportError("rate limiter", err)
	}
	return r.next.Transform(ctx, cfg, req, onChunk)
}

// NewLimiter returns a limiter allowing perSecond calls with the given burst.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
