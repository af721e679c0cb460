package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysithea/internal/logging"
	"github.com/lysithea/internal/retry"
)

// ResilientClient wraps a Client with a per-request timeout, exponential
// backoff retries, and a process-wide rate limit on model invocations.
// It satisfies Client itself, so the extractor and adapter stay unaware
// of the resiliency machinery.
type ResilientClient struct {
	client      Client
	retryConfig retry.Config
	timeout     time.Duration
	limiter     *rate.Limiter
}

// ResilientOption customizes a ResilientClient.
type ResilientOption func(*ResilientClient)

// WithRetryConfig overrides the retry configuration.
func WithRetryConfig(cfg retry.Config) ResilientOption {
	return func(rc *ResilientClient) { rc.retryConfig = cfg }
}

// WithTimeout sets the per-invocation timeout. Zero disables it.
func WithTimeout(d time.Duration) ResilientOption {
	return func(rc *ResilientClient) { rc.timeout = d }
}

// WithRateLimit caps model invocations at n per second with a burst of n.
func WithRateLimit(n float64) ResilientOption {
	return func(rc *ResilientClient) {
		burst := int(n)
		if burst < 1 {
			burst = 1
		}
		rc.limiter = rate.NewLimiter(rate.Limit(n), burst)
	}
}

// NewResilientClient wraps client with model-call defaults: ModelConfig
// retries, a 90s per-invocation timeout, and 1 invocation/second.
func NewResilientClient(client Client, opts ...ResilientOption) *ResilientClient {
	rc := &ResilientClient{
		client:      client,
		retryConfig: retry.ModelConfig(),
		timeout:     90 * time.Second,
		limiter:     rate.NewLimiter(rate.Limit(1), 1),
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Complete invokes the wrapped client with rate limiting, timeout, and
// retries. The run logger (looked up by run ID carried in the context) is
// used when present.
func (rc *ResilientClient) Complete(ctx context.Context, prompt string) (string, error) {
	logger := logging.GetLoggerByRunID(RunIDFromContext(ctx))

	if rc.limiter != nil {
		if err := rc.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for model rate limit: %w", err)
		}
	}

	if rc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.timeout)
		defer cancel()
	}

	var response string
	result := retry.WithBackoff(ctx, rc.retryConfig, func() error {
		r, err := rc.client.Complete(ctx, prompt)
		if err != nil {
			return err
		}
		response = r
		return nil
	}, logger)

	if !result.Success {
		logger.LogError("Model invocation failed after %d attempts: %v", result.Attempts, result.LastError)
		return "", fmt.Errorf("model invocation failed after %d attempts: %w", result.Attempts, result.LastError)
	}

	return response, nil
}

type runIDKey struct{}

// ContextWithRunID attaches a generation run ID to ctx so lower layers
// can find the run's logger.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID attached to ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey{}).(string); ok {
		return v
	}
	return ""
}
