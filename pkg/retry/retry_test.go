package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "serpharvest/pkg/errors"
	"serpharvest/pkg/logger"
)

func TestProviderBackoff(t *testing.T) {
	backoff := &ProviderBackoff{
		Unit:     10 * time.Millisecond,
		MaxDelay: 100 * time.Millisecond,
	}

	tests := []struct {
		attempt     int
		expectedMin time.Duration
		expectedMax time.Duration
		description string
	}{
		{1, 20 * time.Millisecond, 30 * time.Millisecond, "First retry"},
		{2, 40 * time.Millisecond, 50 * time.Millisecond, "Second retry"},
		{3, 80 * time.Millisecond, 90 * time.Millisecond, "Third retry"},
		{4, 100 * time.Millisecond, 110 * time.Millisecond, "Fourth retry (capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				delay := backoff.NextDelay(test.attempt)
				if delay < test.expectedMin || delay >= test.expectedMax {
					t.Errorf("Expected delay in [%v, %v), got %v",
						test.expectedMin, test.expectedMax, delay)
				}
			}
		})
	}
}

func TestProviderBackoffJitter(t *testing.T) {
	backoff := NewProviderBackoff()

	delays := make(map[time.Duration]bool)
	for i := 0; i < 10; i++ {
		delays[backoff.NextDelay(1)] = true
	}

	if len(delays) < 2 {
		t.Error("Expected multiple different delays with jitter, but got consistent delays")
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}

	tests := []struct {
		attempt     int
		expectedMin time.Duration
		expectedMax time.Duration
		description string
	}{
		{1, 9 * time.Millisecond, 11 * time.Millisecond, "First retry"},
		{2, 18 * time.Millisecond, 22 * time.Millisecond, "Second retry"},
		{4, 36 * time.Millisecond, 44 * time.Millisecond, "Fourth retry (capped)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				delay := backoff.NextDelay(test.attempt)
				if delay < test.expectedMin || delay > test.expectedMax {
					t.Errorf("Expected delay in [%v, %v], got %v",
						test.expectedMin, test.expectedMax, delay)
				}
			}
		})
	}

	if DefaultExponentialBackoff().NextDelay(0) != 0 {
		t.Error("Expected zero delay before the first retry")
	}
}

func TestRetryDefaultsNilBackoff(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 2 {
			return &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection reset"}
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := &Config{
		MaxAttempts: 3,
		RetryIf:     DefaultRetryIf,
		Context:     ctx,
		Logger:      logger.NewNopLogger(),
	}

	// The one retry waits roughly DefaultExponentialBackoff's base delay,
	// which outlives the context deadline
	err := Do(op, cfg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected the default backoff wait to hit the deadline, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before the deadline, got %d", attempts)
	}
}

func TestDefaultRetryIfStatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		err       *errs.Error
		retryable bool
	}{
		{"rate limited", &errs.Error{Type: errs.ErrorTypeRateLimit, Code: 429}, true},
		{"bad gateway", &errs.Error{Type: errs.ErrorTypeServerError, Code: 502}, true},
		{"unclassified 5xx", &errs.Error{Type: errs.ErrorTypeUnknown, Code: 599}, true},
		{"forbidden", &errs.Error{Type: errs.ErrorTypeAuth, Code: 403}, false},
		{"not found", &errs.Error{Type: errs.ErrorTypeNotFound, Code: 404}, false},
		{"bad request", &errs.Error{Type: errs.ErrorTypeUnknown, Code: 400}, false},
		{"parsing, no status", &errs.Error{Type: errs.ErrorTypeParsing}, true},
		{"network, no status", &errs.Error{Type: errs.ErrorTypeNetwork}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := DefaultRetryIf(test.err); got != test.retryable {
				t.Errorf("Expected retryable=%v for %v, got %v", test.retryable, test.err, got)
			}
		})
	}
}

func TestRetryWithSuccess(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}

	err := Do(op, cfg)
	if err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryExhaustionWrapsSentinel(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		return errors.New("persistent error")
	}

	cfg := &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}

	err := Do(op, cfg)
	if err == nil {
		t.Fatal("Expected error when max attempts exceeded")
	}
	if !errors.Is(err, errs.ErrFetchFailed) {
		t.Errorf("Expected exhaustion error to wrap ErrFetchFailed, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithNonRetryableError(t *testing.T) {
	attempts := 0
	authError := &errs.Error{
		Type:    errs.ErrorTypeAuth,
		Message: "authentication required",
		Code:    401,
	}
	op := func() error {
		attempts++
		return authError
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}

	err := Do(op, cfg)
	if !errors.Is(err, authError) {
		t.Errorf("Expected the auth error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestRetryRetriesParsingErrors(t *testing.T) {
	attempts := 0
	op := func() error {
		attempts++
		if attempts < 2 {
			return &errs.Error{Type: errs.ErrorTypeParsing, Message: "malformed response"}
		}
		return nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}

	if err := Do(op, cfg); err != nil {
		t.Errorf("Expected parsing error to be retried to success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestRetryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	op := func() error {
		attempts++
		cancel()
		return errors.New("temporary error")
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Second},
		RetryIf:     func(err error) bool { return true },
		Context:     ctx,
		Logger:      logger.NewNopLogger(),
	}

	err := Do(op, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	op := func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("temporary error")
		}
		return 42, nil
	}

	cfg := &Config{
		MaxAttempts: 5,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(err error) bool { return true },
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}

	result, err := DoWithResult(op, cfg)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if result != 42 {
		t.Errorf("Expected result 42, got %d", result)
	}
}
