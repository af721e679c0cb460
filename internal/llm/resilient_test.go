package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysithea/internal/retry"
)

// flakyClient fails a fixed number of times before answering.
type flakyClient struct {
	failures int
	err      error
	calls    int
}

func (f *flakyClient) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

type slowClient struct {
	delay time.Duration
}

func (s *slowClient) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case <-time.After(s.delay):
		return "ok", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func fastRetries() retry.Config {
	return retry.Config{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestResilientClientRetriesTransientErrors(t *testing.T) {
	client := &flakyClient{failures: 2, err: errors.New("connection refused")}
	rc := NewResilientClient(client,
		WithRetryConfig(fastRetries()),
		WithTimeout(0),
		WithRateLimit(1000))

	response, err := rc.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", response)
	assert.Equal(t, 3, client.calls)
}

func TestResilientClientStopsOnNonRetryableError(t *testing.T) {
	client := &flakyClient{failures: 10, err: errors.New("model not found")}
	rc := NewResilientClient(client,
		WithRetryConfig(fastRetries()),
		WithTimeout(0),
		WithRateLimit(1000))

	_, err := rc.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestResilientClientExhaustsRetries(t *testing.T) {
	client := &flakyClient{failures: 10, err: errors.New("connection refused")}
	rc := NewResilientClient(client,
		WithRetryConfig(fastRetries()),
		WithTimeout(0),
		WithRateLimit(1000))

	_, err := rc.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestResilientClientTimeout(t *testing.T) {
	rc := NewResilientClient(&slowClient{delay: time.Second},
		WithRetryConfig(retry.Config{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}),
		WithTimeout(20*time.Millisecond),
		WithRateLimit(1000))

	start := time.Now()
	_, err := rc.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRunIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", RunIDFromContext(ctx))

	ctx = ContextWithRunID(ctx, "run-42")
	assert.Equal(t, "run-42", RunIDFromContext(ctx))
}
