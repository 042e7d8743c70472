package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter is a token bucket that refills lazily on each acquire attempt,
// so a burst of submissions cannot swamp the inference backend. Capacity and
// refill rate are both the configured requests per minute.
type rateLimiter struct {
	tokens     float64
	perMinute  float64
	lastRefill time.Time
	mu         sync.Mutex
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 30 // sized for a local model
	}
	return &rateLimiter{
		tokens:     float64(requestsPerMinute),
		perMinute:  float64(requestsPerMinute),
		lastRefill: time.Now(),
	}
}

// wait blocks until a token is available or the context is cancelled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		if rl.take() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter cancelled: %w", ctx.Err())
		case <-poll.C:
		}
	}
}

func (rl *rateLimiter) take() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	earned := now.Sub(rl.lastRefill).Minutes() * rl.perMinute
	if earned > 0 {
		rl.tokens += earned
		if rl.tokens > rl.perMinute {
			rl.tokens = rl.perMinute
		}
		rl.lastRefill = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}
