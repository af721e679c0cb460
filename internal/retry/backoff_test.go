package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestWithBackoffSucceedsAfterRetries(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, nil)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Len(t, result.RetryReasons, 2)
}

func TestWithBackoffStopsOnNonRetryable(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("invalid model name")
	}, nil)

	assert.False(t, result.Success)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffExhaustsRetries(t *testing.T) {
	calls := 0
	result := WithBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("503 service unavailable")
	}, nil)

	assert.False(t, result.Success)
	assert.Equal(t, 4, calls)
	assert.Error(t, result.LastError)
}

func TestWithBackoffHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastConfig()
	cfg.BaseDelay = time.Minute
	cfg.MaxDelay = time.Minute

	done := make(chan Result, 1)
	go func() {
		done <- WithBackoff(ctx, cfg, func() error {
			return errors.New("timeout")
		}, nil)
	}()

	cancel()
	select {
	case result := <-done:
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.LastError, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("WithBackoff did not observe cancellation")
	}
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2.0}

	assert.Equal(t, time.Second, backoffDelay(cfg, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(cfg, 1))
	assert.Equal(t, 5*time.Second, backoffDelay(cfg, 4))
}

func TestBackoffDelayJitterStaysBounded(t *testing.T) {
	cfg := Config{BaseDelay: time.Second, MaxDelay: 30 * time.Second, Multiplier: 2.0, Jitter: true}
	for i := 0; i < 100; i++ {
		d := backoffDelay(cfg, 0)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}

func TestIsRetryableError(t *testing.T) {
	retryable := []error{
		errors.New("request timeout"),
		errors.New("connection refused"),
		errors.New("connection reset by peer"),
		errors.New("429 too many requests"),
		errors.New("503 service unavailable"),
		context.DeadlineExceeded,
	}
	for _, err := range retryable {
		assert.True(t, IsRetryableError(err), "expected retryable: %v", err)
	}

	notRetryable := []error{
		nil,
		errors.New("model not found"),
		errors.New("invalid prompt"),
		context.Canceled,
	}
	for _, err := range notRetryable {
		assert.False(t, IsRetryableError(err), "expected non-retryable: %v", err)
	}
}
