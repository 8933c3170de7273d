package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the next delay duration
	NextDelay(attempt int) time.Duration
	// Reset resets the backoff strategy to initial state
	Reset()
}

// ProviderBackoff implements the search provider backoff policy:
// the delay before retrying attempt k is 2^k units plus a uniform
// random jitter in [0, 1) units.
type ProviderBackoff struct {
	// Unit is the duration of one backoff unit (one second in production)
	Unit time.Duration
	// MaxDelay caps the pre-jitter delay (0 means no cap)
	MaxDelay time.Duration
}

// NewProviderBackoff returns the provider backoff with second granularity
func NewProviderBackoff() *ProviderBackoff {
	return &ProviderBackoff{
		Unit:     time.Second,
		MaxDelay: 5 * time.Minute,
	}
}

// NextDelay calculates the next delay, in [2^attempt, 2^attempt+1) units
func (pb *ProviderBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	unit := pb.Unit
	if unit <= 0 {
		unit = time.Second
	}

	delay := time.Duration(1<<uint(attempt)) * unit
	if pb.MaxDelay > 0 && delay > pb.MaxDelay {
		delay = pb.MaxDelay
	}

	jitter := time.Duration(rand.Float64() * float64(unit))
	return delay + jitter
}

// Reset resets the backoff to initial state
func (pb *ProviderBackoff) Reset() {}

// ExponentialBackoff implements exponential backoff with multiplicative jitter
type ExponentialBackoff struct {
	// BaseDelay is the initial delay duration
	BaseDelay time.Duration
	// MaxDelay is the maximum delay duration
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases
	Multiplier float64
	// JitterFactor adds randomness to avoid thundering herd (0.0 to 1.0)
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// Reset resets the backoff to initial state
func (eb *ExponentialBackoff) Reset() {}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Reset resets the backoff (no-op for constant backoff)
func (cb *ConstantBackoff) Reset() {}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
