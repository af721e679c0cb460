package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/lysithea/internal/logging"
)

// Config controls exponential-backoff retry behavior for model calls.
type Config struct {
	MaxRetries int           `json:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay"`
	Multiplier float64       `json:"multiplier"`
	Jitter     bool          `json:"jitter"`
}

// Result describes how a retried operation went.
type Result struct {
	Attempts      int           `json:"attempts"`
	TotalDuration time.Duration `json:"total_duration"`
	LastError     error         `json:"-"`
	Success       bool          `json:"success"`
	RetryReasons  []string      `json:"retry_reasons"`
}

// DefaultConfig returns general-purpose retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// ModelConfig returns retry defaults tuned for model invocations: local
// models respond slowly under load, so delays start higher and back off
// harder.
func ModelConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  2 * time.Second,
		MaxDelay:   45 * time.Second,
		Multiplier: 2.5,
		Jitter:     true,
	}
}

// WithBackoff runs operation until it succeeds, retries are exhausted, or
// the context is done. Non-retryable errors abort immediately.
func WithBackoff(ctx context.Context, cfg Config, operation func() error, logger *logging.RunLogger) Result {
	start := time.Now()
	result := Result{RetryReasons: make([]string, 0)}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := operation()
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(start)
			if attempt > 0 {
				logger.Log("Operation succeeded after %d retries (%v total)", attempt, result.TotalDuration.Round(time.Millisecond))
			}
			return result
		}

		result.LastError = err
		result.RetryReasons = append(result.RetryReasons, err.Error())

		if !IsRetryableError(err) {
			logger.Log("Non-retryable error, giving up: %v", err)
			break
		}
		if attempt == cfg.MaxRetries {
			logger.Log("Retries exhausted after %d attempts: %v", result.Attempts, err)
			break
		}

		delay := backoffDelay(cfg, attempt)
		logger.Log("Attempt %d/%d failed (%v), retrying in %v", attempt+1, cfg.MaxRetries+1, err, delay.Round(time.Millisecond))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		}
	}

	result.TotalDuration = time.Since(start)
	return result
}

func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		// Up to 25% random jitter to avoid synchronized retries.
		delay += delay * 0.25 * rand.Float64()
	}
	return time.Duration(delay)
}

// IsRetryableError classifies model/transport errors. Timeouts, transient
// network failures, and server overload are retryable; everything else
// (bad request, auth failure, cancellation) is not.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"temporary failure",
		"too many requests",
		"rate limit",
		"service unavailable",
		"502",
		"503",
		"504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
