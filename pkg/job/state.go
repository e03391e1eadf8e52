package job

import (
	"sort"

	"github.com/umputun/profscout/pkg/domain"
)

// Record is a checkpointed outcome of one work item
type Record interface {
	Key() string
	Failed() bool
}

// State is the accumulated outcomes of a job, the value persisted as a checkpoint.
// Steps never modify a state in place, they return a new one.
type State[R Record] struct {
	records []R
	keys    map[string]struct{}
}

// NewState makes a state from loaded records, later duplicates of a key are ignored
func NewState[R Record](records []R) State[R] {
	st := State[R]{records: make([]R, 0, len(records)), keys: make(map[string]struct{}, len(records))}
	for _, r := range records {
		if _, ok := st.keys[r.Key()]; ok {
			continue
		}
		st.keys[r.Key()] = struct{}{}
		st.records = append(st.records, r)
	}
	return st
}

// Records returns a copy of the records in state order
func (s State[R]) Records() []R {
	res := make([]R, len(s.records))
	copy(res, s.records)
	return res
}

// Len returns the number of records
func (s State[R]) Len() int { return len(s.records) }

// Has reports whether the key already has a record
func (s State[R]) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Pending returns input items without a record, each key once and in input order
func (s State[R]) Pending(items []domain.WorkItem) []domain.WorkItem {
	res := make([]domain.WorkItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.Key]; ok {
			continue
		}
		seen[it.Key] = struct{}{}
		if s.Has(it.Key) {
			continue
		}
		res = append(res, it)
	}
	return res
}

// With returns a new state with records appended, keys already present are skipped
func (s State[R]) With(records ...R) State[R] {
	all := make([]R, 0, len(s.records)+len(records))
	all = append(all, s.records...)
	all = append(all, records...)
	return NewState(all)
}

// WithoutFailed returns a new state keeping only successful records
func (s State[R]) WithoutFailed() State[R] {
	kept := make([]R, 0, len(s.records))
	for _, r := range s.records {
		if !r.Failed() {
			kept = append(kept, r)
		}
	}
	return NewState(kept)
}

// Sorted returns a new state ordered by rank descending, equal ranks keep their order
func (s State[R]) Sorted(rank func(R) float64) State[R] {
	res := s.Records()
	sort.SliceStable(res, func(i, j int) bool { return rank(res[i]) > rank(res[j]) })
	return NewState(res)
}
