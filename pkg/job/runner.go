// Package job runs a checkpointed job over work items.
// The runner loads the previous state, processes only the items without a record in batches,
// persists the whole state after each batch and finally sorts it by rank. A job stopped at any
// point resumes from the last persisted batch.
package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/umputun/profscout/pkg/batch"
	"github.com/umputun/profscout/pkg/domain"
)

//go:generate moq -out mocks/observer.go -pkg mocks -skip-ensure -fmt goimports . Observer

// Snapshot loads and saves the whole state of a job
type Snapshot[R Record] interface {
	Load(ctx context.Context) ([]R, error)
	Save(ctx context.Context, records []R) error
}

// Observer is notified about job progress
type Observer interface {
	ItemDone(job string, ok bool, attempts int)
	StateSaved(job string, records int)
}

// Config holds job settings
type Config struct {
	BatchSize   int
	BatchDelay  time.Duration
	RetryFailed bool // drop failed records on load so they are processed again
	Batch       batch.Config
}

// Runner processes work items with operation Op producing values V kept as records R
type Runner[V any, R Record] struct {
	Name     string
	Store    Snapshot[R]
	Config   Config
	Op       batch.Operation[V]
	Success  func(item domain.WorkItem, v V, attempts int) R
	Failure  func(item domain.WorkItem, err error, attempts int) R
	Rank     func(R) float64 // optional, final order is by rank descending
	Observer Observer        // optional
}

// Run processes pending items and returns the final state with the run summary.
// On cancellation the batch in flight is discarded, the state persisted before it stays intact
// and ctx.Err() is returned along with the partial summary.
func (r *Runner[V, R]) Run(ctx context.Context, items []domain.WorkItem) (State[R], *Summary, error) {
	if err := r.validate(); err != nil {
		return State[R]{}, nil, err
	}
	started := time.Now()
	summary := newSummary(r.Name)

	st, err := r.load(ctx)
	if err != nil {
		return State[R]{}, summary, err
	}

	pending := st.Pending(items)
	summary.Total = len(pending) + countKnown(st, items)
	summary.Skipped = summary.Total - len(pending)
	log.Printf("[INFO] %s run %s: %d items, %d already checkpointed, %d pending",
		r.Name, summary.RunID, summary.Total, summary.Skipped, len(pending))

	batchSize := max(r.Config.BatchSize, 1)
	for start := 0; start < len(pending); start += batchSize {
		if start > 0 {
			if err := batch.Wait(ctx, r.Config.BatchDelay); err != nil {
				return st, summary.done(started), fmt.Errorf("%s interrupted: %w", r.Name, err)
			}
		}
		end := min(start+batchSize, len(pending))
		next, err := r.step(ctx, st, pending[start:end], summary)
		if err != nil {
			return st, summary.done(started), err
		}
		st = next
		log.Printf("[INFO] %s batch %d done, %d/%d pending items processed",
			r.Name, summary.Batches, end, len(pending))
	}

	st, err = r.finish(ctx, st)
	return st, summary.done(started), err
}

func (r *Runner[V, R]) validate() error {
	switch {
	case r.Store == nil:
		return errors.New("job store is not set")
	case r.Op == nil:
		return errors.New("job operation is not set")
	case r.Success == nil || r.Failure == nil:
		return errors.New("job record constructors are not set")
	}
	return nil
}

// load reads the checkpoint, a corrupt checkpoint comes back from the store as empty
func (r *Runner[V, R]) load(ctx context.Context) (State[R], error) {
	records, err := r.Store.Load(ctx)
	if err != nil {
		return State[R]{}, fmt.Errorf("load %s state: %w", r.Name, err)
	}
	st := NewState(records)
	if r.Config.RetryFailed {
		kept := st.WithoutFailed()
		if dropped := st.Len() - kept.Len(); dropped > 0 {
			log.Printf("[INFO] %s: %d failed records will be processed again", r.Name, dropped)
		}
		st = kept
	}
	return st, nil
}

// step runs one batch and persists the state extended with its records
func (r *Runner[V, R]) step(ctx context.Context, st State[R], items []domain.WorkItem, summary *Summary) (State[R], error) {
	outcomes := batch.Run(ctx, r.Config.Batch, items, r.Op)
	if err := ctx.Err(); err != nil {
		log.Printf("[WARN] %s batch of %d items discarded: %v", r.Name, len(items), err)
		return st, fmt.Errorf("%s interrupted: %w", r.Name, err)
	}

	records := make([]R, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			records = append(records, r.Success(o.Item, o.Value, o.Attempts))
		} else {
			records = append(records, r.Failure(o.Item, o.Err, o.Attempts))
		}
		summary.add(o.Item.Page, o.OK())
		if r.Observer != nil {
			r.Observer.ItemDone(r.Name, o.OK(), o.Attempts)
		}
	}

	next := st.With(records...)
	if err := r.save(ctx, next); err != nil {
		return st, err
	}
	summary.Batches++
	return next, nil
}

// finish sorts the state by rank and persists it once more
func (r *Runner[V, R]) finish(ctx context.Context, st State[R]) (State[R], error) {
	if r.Rank != nil {
		st = st.Sorted(r.Rank)
	}
	if err := r.save(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}

func (r *Runner[V, R]) save(ctx context.Context, st State[R]) error {
	if err := r.Store.Save(ctx, st.Records()); err != nil {
		log.Printf("[ERROR] failed to save %s state: %v", r.Name, err)
		return fmt.Errorf("save %s state: %w", r.Name, err)
	}
	if r.Observer != nil {
		r.Observer.StateSaved(r.Name, st.Len())
	}
	return nil
}

// countKnown returns the number of distinct input keys already in state
func countKnown[R Record](st State[R], items []domain.WorkItem) int {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if st.Has(it.Key) {
			seen[it.Key] = struct{}{}
		}
	}
	return len(seen)
}

func newRunID() string { return uuid.NewString() }
