package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout bounds fn with a deadline derived from ctx. fn must honor its
// context; it runs on the caller's goroutine. A non-positive timeout runs fn
// unbounded. Used to cap startup work such as object store schema creation.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(bounded)
	if err != nil && errors.Is(bounded.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s exceeded %v: %w", name, timeout, err)
	}
	return err
}
