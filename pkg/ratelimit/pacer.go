// Package ratelimit bounds the request rate against the search provider.
// The crawl is strictly sequential, so pacing is a randomized delay before
// each fetch rather than a token budget.
package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Pacer delays page fetches to keep the request rate polite
type Pacer interface {
	// Wait sleeps the regular inter-page delay
	Wait(ctx context.Context) error
	// WaitFirst sleeps the longer delay preceding the first fetch of a unit
	WaitFirst(ctx context.Context) error
}

// RandomPacer sleeps a uniformly random duration within a configured range
type RandomPacer struct {
	min      time.Duration
	max      time.Duration
	firstMin time.Duration
	firstMax time.Duration
}

// NewRandomPacer creates a pacer with the given delay ranges
func NewRandomPacer(min, max, firstMin, firstMax time.Duration) *RandomPacer {
	if max < min {
		max = min
	}
	if firstMax < firstMin {
		firstMax = firstMin
	}
	return &RandomPacer{
		min:      min,
		max:      max,
		firstMin: firstMin,
		firstMax: firstMax,
	}
}

// Wait sleeps the regular inter-page delay or returns early on cancellation
func (p *RandomPacer) Wait(ctx context.Context) error {
	return sleep(ctx, p.min, p.max)
}

// WaitFirst sleeps the first-fetch delay or returns early on cancellation
func (p *RandomPacer) WaitFirst(ctx context.Context) error {
	return sleep(ctx, p.firstMin, p.firstMax)
}

func sleep(ctx context.Context, min, max time.Duration) error {
	delay := min
	if max > min {
		delay += time.Duration(rand.Float64() * float64(max-min))
	}

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
