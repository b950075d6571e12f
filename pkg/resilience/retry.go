package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig bounds a retried operation. Zero values fall back to three
// attempts starting at 100ms. Delays double per attempt up to MaxDelay, with
// full jitter so parallel ingest workers do not hammer a recovering broker
// in lockstep.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Retry runs fn until it succeeds, attempts are exhausted, or ctx is
// cancelled. It guards the transient failure modes on the ingest path:
// publishing a document to the broker and establishing the object store
// connection at startup.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	log := slog.Default().With("component", "retry", "operation", name)

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.Info("recovered", "attempt", attempt)
			}
			return nil
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxAttempts, lastErr)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s interrupted: %w", name, ctx.Err())
		}

		wait := time.Duration(rand.Int63n(int64(delay) + 1))
		log.Warn("attempt failed",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"error", lastErr,
			"backoff", wait,
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%s interrupted: %w", name, ctx.Err())
		}
		if delay *= 2; delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
