// Package retry implements capped exponential backoff with jitter for
// transient provider failures. Retries happen within a single provider's
// attempt budget; the circuit breaker records one outcome per budget, not
// one per internal retry.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Policy defines retry behavior for one provider call.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	BaseDelay:      1 * time.Second,
	MaxDelay:       30 * time.Second,
	JitterFraction: 0.1,
}

// Delay computes the backoff before retry number attempt (0-based):
// min(base*2^attempt, max) plus uniform jitter in [0, jitter*delay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultPolicy.BaseDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = DefaultPolicy.MaxDelay
	}

	delay := float64(base) * math.Pow(2, float64(attempt))
	if delay > float64(max) {
		delay = float64(max)
	}

	jitter := p.JitterFraction
	if jitter < 0 {
		jitter = 0
	}
	delay += rand.Float64() * jitter * delay

	return time.Duration(delay)
}

// Wait sleeps for the backoff of the given attempt, or returns early with
// the context error if the caller is cancelled.
func (p Policy) Wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Delay(attempt)):
		return nil
	}
}
