// Package batch runs per-item operations in chunks with a strict concurrency ceiling.
// Items of a chunk start with a small stagger and the next chunk starts only after every
// item of the current one is done. Failures never cancel siblings, each item yields one Outcome.
package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/umputun/profscout/pkg/domain"
)

// Operation processes a single work item
type Operation[T any] func(ctx context.Context, item domain.WorkItem) (T, error)

// Config holds runner settings
type Config struct {
	Concurrency int           // chunk size, maximum items in flight
	Stagger     time.Duration // start delay increment per position in the chunk
	ChunkDelay  time.Duration // pause between chunks
	Retry       Retry
}

// Outcome is the result of processing one item, Err is nil on success
type Outcome[T any] struct {
	Item     domain.WorkItem
	Value    T
	Err      error
	Attempts int
}

// OK reports whether the item succeeded
func (o Outcome[T]) OK() bool { return o.Err == nil }

// Run processes items chunk by chunk and returns exactly one outcome per item in input order
func Run[T any](ctx context.Context, cfg Config, items []domain.WorkItem, op Operation[T]) []Outcome[T] {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	outcomes := make([]Outcome[T], len(items))

	for start := 0; start < len(items); start += cfg.Concurrency {
		end := min(start+cfg.Concurrency, len(items))
		if start > 0 {
			if err := Wait(ctx, cfg.ChunkDelay); err != nil {
				log.Printf("[DEBUG] chunk delay interrupted: %v", err)
			}
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			pos := i - start
			g.Go(func() error {
				outcomes[i] = runOne(ctx, cfg, items[i], time.Duration(pos)*cfg.Stagger, op)
				return nil
			})
		}
		_ = g.Wait() // goroutines never return errors, failures live in outcomes
	}

	return outcomes
}

// runOne waits for the item's stagger slot and runs the operation under the retry policy
func runOne[T any](ctx context.Context, cfg Config, item domain.WorkItem, delay time.Duration, op Operation[T]) (out Outcome[T]) {
	out.Item = item
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic processing %s: %v", item.Key, r)
			if out.Attempts == 0 {
				out.Attempts = 1
			}
		}
	}()

	if err := Wait(ctx, delay); err != nil {
		out.Err = fmt.Errorf("not started: %w", err)
		return out
	}

	// attempts are counted in the closure so a panic still reports the attempt it happened in
	val, _, err := Do(ctx, cfg.Retry, item.Key, func(ctx context.Context) (T, error) {
		out.Attempts++
		return op(ctx, item)
	})
	out.Value, out.Err = val, err
	if err != nil {
		log.Printf("[WARN] %s failed after %d attempt(s): %v", item.Key, out.Attempts, err)
	}
	return out
}
