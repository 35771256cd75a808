package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/cortex/internal/logging"
)

// Retrying retries a Generator on rate limits only. Other errors are
// returned immediately.
type Retrying struct {
	next        Generator
	maxAttempts int
	buffer      time.Duration
	maxWait     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// RetryOption configures Retrying.
type RetryOption func(*Retrying)

// WithMaxAttempts sets the total number of attempts, the first one included.
func WithMaxAttempts(n int) RetryOption {
	return func(r *Retrying) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBuffer adds d to every provider-suggested wait.
func WithBuffer(d time.Duration) RetryOption {
	return func(r *Retrying) {
		r.buffer = d
	}
}

// WithMaxWait caps a single wait.
func WithMaxWait(d time.Duration) RetryOption {
	return func(r *Retrying) {
		r.maxWait = d
	}
}

// WithSleep replaces the function used to wait between attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *Retrying) {
		r.sleep = fn
	}
}

// WithRetryLogger sets the logger used to report waits.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrying) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRetry wraps g with rate-limit backoff.
func WithRetry(g Generator, opts ...RetryOption) *Retrying {
	r := &Retrying{
		next:        g,
		maxAttempts: 3,
		buffer:      10 * time.Second,
		maxWait:     2 * time.Minute,
		sleep:       sleepContext,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate calls the wrapped generator, waiting out rate limits.
func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	var last error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		out, err := r.next.Generate(ctx, prompt)
		if err == nil {
			return out, nil
		}
		var rl *RateLimitError
		if !errors.As(err, &rl) {
			return "", err
		}
		last = err
		if attempt == r.maxAttempts {
			break
		}

		wait := r.waitFor(rl)
		r.logger.Warn("Rate limited, waiting before retry",
			"provider", rl.Provider, "wait", wait, "attempt", attempt+1, "max_attempts", r.maxAttempts)
		if err := r.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("rate limit exceeded after %d attempts: %w", r.maxAttempts, last)
}

func (r *Retrying) waitFor(rl *RateLimitError) time.Duration {
	wait := rl.RetryAfter
	if wait <= 0 {
		wait = DefaultRetryAfter
	}
	wait += r.buffer
	if r.maxWait > 0 && wait > r.maxWait {
		wait = r.maxWait
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
