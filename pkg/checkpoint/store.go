// Package checkpoint persists whole-state snapshots of job outcomes.
// A snapshot is a JSON array written in full on every save, so the stored copy is always
// complete and consistent. Unreadable snapshots load as empty state.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

//go:generate moq -out mocks/backend.go -pkg mocks -skip-ensure -fmt goimports . Backend

// Backend reads and writes raw snapshot bytes.
// Read returns nil data and no error when the snapshot does not exist yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	String() string
}

// Record is a checkpointed outcome identified by its key
type Record interface {
	Key() string
}

// Store encodes records to and from a backend
type Store[R Record] struct {
	backend Backend
}

// NewStore makes a store on top of the backend
func NewStore[R Record](backend Backend) *Store[R] {
	return &Store[R]{backend: backend}
}

// Load returns stored records in their stored order.
// A snapshot that is not a valid JSON array is reported with a warning and treated as empty.
// Elements that can't be decoded into a record or have no key are dropped one by one,
// duplicate keys keep the first record.
// Only backend read failures are returned as errors.
func (s *Store[R]) Load(ctx context.Context) ([]R, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", s.backend, err)
	}
	if len(data) == 0 {
		log.Printf("[DEBUG] no checkpoint in %s, starting from empty state", s.backend)
		return []R{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		log.Printf("[WARN] checkpoint %s is corrupt, starting from empty state: %v", s.backend, err)
		return []R{}, nil
	}

	seen := make(map[string]struct{}, len(elems))
	res := make([]R, 0, len(elems))
	for i, elem := range elems {
		var r R
		if err := json.Unmarshal(elem, &r); err != nil {
			log.Printf("[WARN] checkpoint %s has unreadable record #%d, dropped: %v", s.backend, i, err)
			continue
		}
		if r.Key() == "" {
			log.Printf("[WARN] checkpoint %s has record #%d without a key, dropped", s.backend, i)
			continue
		}
		if _, ok := seen[r.Key()]; ok {
			log.Printf("[WARN] checkpoint %s has duplicate record %q, keeping the first one", s.backend, r.Key())
			continue
		}
		seen[r.Key()] = struct{}{}
		res = append(res, r)
	}
	return res, nil
}

// Save overwrites the snapshot with all records
func (s *Store[R]) Save(ctx context.Context, records []R) error {
	if records == nil {
		records = []R{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", s.backend, err)
	}
	return nil
}

// String returns the backend description
func (s *Store[R]) String() string { return s.backend.String() }
