package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/verdictlabs/verdict/internal/service"
)

var (
	// ErrRateLimit indicates the model provider rejected a call for rate reasons.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates the retry budget was exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError marks an error as retryable or terminal for WithRetry.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

func normalizeRetryOptions(opts service.RetryOptions) service.RetryOptions {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	return opts
}

// WithRetry runs op until it succeeds, the context is cancelled, or the
// attempt budget runs out. Backoff is exponential, capped at MaxDelay.
// An error wrapped in a non-retryable RetryableError aborts immediately;
// a rate-limit error waits the full MaxDelay before the next attempt.
func WithRetry(ctx context.Context, op func() error, opts service.RetryOptions) error {
	opts = normalizeRetryOptions(opts)

	var lastErr error
	wait := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		var marked *RetryableError
		if errors.As(lastErr, &marked) && !marked.Retryable {
			return lastErr
		}

		if attempt >= opts.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, opts.MaxAttempts, lastErr)
		}

		if errors.Is(lastErr, ErrRateLimit) {
			wait = opts.MaxDelay
		}

		slog.Warn("retrying after failure",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"wait", wait,
			"error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait = time.Duration(float64(wait) * opts.Multiplier)
		if wait > opts.MaxDelay {
			wait = opts.MaxDelay
		}
	}
}
