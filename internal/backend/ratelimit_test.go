package backend

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingAdapter struct {
	calls int
}

func (c *countingAdapter) Name() string { return "counting" }

func (c *countingAdapter) Transform(ctx context.Context, cfg Config, req Request, onChunk ChunkFunc) (*Result, error) {
	c.calls++
	return &Result{Backend: c.Name()}, nil
}

func TestRateLimited_Disabled(t *testing.T) {
	next := &countingAdapter{}
	if RateLimited(next, NewLimiter(0, 1)) != Adapter(next) {
		t.Error("expected adapter to be returned unwrapped when limiting is disabled")
	}
}

func TestRateLimited_PassesThrough(t *testing.T) {
	next := &countingAdapter{}
	a := RateLimited(next, NewLimiter(1000, 5))
	for i := 0; i < 3; i++ {
		if _, err := a.Transform(context.Background(), Config{}, Request{}, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if next.calls != 3 {
		t.Errorf("expected 3 calls, got %d", next.calls)
	}
	if a.Name() != "counting" {
		t.Errorf("expected wrapped name, got %q", a.Name())
	}
}

func TestRateLimited_ContextExpires(t *testing.T) {
	next := &countingAdapter{}
	a := RateLimited(next, NewLimiter(0.001, 1))
	a.Transform(context.Background(), Config{}, Request{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := a.Transform(ctx, Config{}, Request{}, nil)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport when the limiter cannot admit, got %v", err)
	}
	if next.calls != 1 {
		t.Errorf("expected only the first call to reach the adapter, got %d", next.calls)
	}
}
