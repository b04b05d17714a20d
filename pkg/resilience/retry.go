// Package resilience holds the retry and circuit breaker helpers used around
// the upstream RPC endpoint and the inference backends.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrMaxAttemptsExceeded = errors.New("max retry attempts exceeded")
	ErrContextCancelled    = errors.New("context cancelled during retry")
)

// RetryConfig configures Retry. Zero values fall back to the defaults.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	IsRetryable  func(error) bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  IsTransient,
	}
}

var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"no such host",
	"temporary failure",
	"network is unreachable",
	"eof",
}

// IsTransient reports whether err looks like a network blip worth retrying.
// Errors implementing Temporary() bool can opt in directly.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t interface{ Temporary() bool }
	if errors.As(err, &t) && t.Temporary() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Backoff grows exponentially and is capped at MaxDelay.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = def.IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !cfg.IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttemptsExceeded, cfg.MaxAttempts, lastErr)
}
