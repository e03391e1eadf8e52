package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-pkgz/repeater/v2"
)

// Retry is a fixed-delay retry policy, MaxRetries+1 attempts are made at most
type Retry struct {
	MaxRetries int
	Delay      time.Duration
}

// Attempts returns the total attempt budget
func (r Retry) Attempts() int {
	if r.MaxRetries < 0 {
		return 1
	}
	return r.MaxRetries + 1
}

// Do calls fn until it succeeds or the attempt budget is used up.
// It returns the last value, the number of attempts made and the last error.
func Do[T any](ctx context.Context, r Retry, name string, fn func(ctx context.Context) (T, error)) (res T, attempts int, err error) {
	budget := r.Attempts()
	var lastErr error
	err = repeater.NewFixed(budget, r.Delay).Do(ctx, func() error {
		attempts++
		var ferr error
		if res, ferr = fn(ctx); ferr != nil {
			lastErr = ferr
			if attempts < budget {
				log.Printf("[DEBUG] attempt %d/%d for %s failed: %v", attempts, budget, name, ferr)
			}
			return ferr
		}
		return nil
	})
	if err == nil {
		return res, attempts, nil
	}
	// repeater reports cancellation instead of the last failure
	if lastErr != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return res, attempts, fmt.Errorf("retry interrupted after %d attempts: %w", attempts, lastErr)
	}
	return res, attempts, err
}

// Wait sleeps for the duration or until the context is done
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
