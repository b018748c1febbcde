// Package gateway is the fallible, rate-limited boundary to the
// generative model service. It exposes the three capabilities the
// pipeline needs (classify, generate, summarize) behind an interface so
// the rest of the system can be tested against a fake, and wraps every
// call in the exponential-backoff retry protocol.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Client is the model service boundary. Classify returns a short
// label-bearing JSON payload; Generate returns free text or JSON per
// jsonOutput; Summarize condenses text into a short narrative.
type Client interface {
	Classify(ctx context.Context, prompt string) (string, error)
	Generate(ctx context.Context, prompt string, jsonOutput bool) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
}

// RateLimitError is the distinguished quota-exhaustion error class.
// Only this class is retried; everything else propagates immediately.
type RateLimitError struct {
	Status  int
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%d): %s", e.Status, e.Message)
}

// IsRateLimit reports whether err is (or wraps) a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
