// Package llm wraps the text-generation models behind the planner and the
// perceiver.
//
// Providers report quota exhaustion as *RateLimitError. WithRetry turns that
// classification into a bounded backoff so callers never inspect error text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// DefaultRetryAfter is used when a provider does not say how long to wait.
const DefaultRetryAfter = 60 * time.Second

// RateLimitError is returned when a provider rejected a request for quota reasons.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration // Zero when the provider gave no hint
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
