package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestRandomPacerWaitBounds(t *testing.T) {
	pacer := NewRandomPacer(5*time.Millisecond, 15*time.Millisecond, 0, 0)

	for i := 0; i < 5; i++ {
		started := time.Now()
		if err := pacer.Wait(context.Background()); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
		elapsed := time.Since(started)
		if elapsed < 5*time.Millisecond {
			t.Errorf("Wait returned after %v, expected at least 5ms", elapsed)
		}
	}
}

func TestRandomPacerZeroDelay(t *testing.T) {
	pacer := NewRandomPacer(0, 0, 0, 0)

	if err := pacer.Wait(context.Background()); err != nil {
		t.Errorf("Zero-delay Wait should succeed immediately, got %v", err)
	}
	if err := pacer.WaitFirst(context.Background()); err != nil {
		t.Errorf("Zero-delay WaitFirst should succeed immediately, got %v", err)
	}
}

func TestRandomPacerCancellation(t *testing.T) {
	pacer := NewRandomPacer(time.Minute, time.Minute, 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	if err := pacer.Wait(ctx); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRandomPacerSwappedBounds(t *testing.T) {
	// A max below min collapses to a fixed delay instead of misbehaving
	pacer := NewRandomPacer(2*time.Millisecond, time.Millisecond, 0, 0)

	started := time.Now()
	if err := pacer.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 2*time.Millisecond {
		t.Errorf("Expected at least the min delay, got %v", elapsed)
	}
}
