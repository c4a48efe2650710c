package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallnest/hybridrag/store"
)

// Sequence is a process-local store.Sequence guarded by a mutex.
// It is only safe when a single process ingests into a collection.
type Sequence struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ store.Sequence = (*Sequence)(nil)

// NewSequence creates an empty in-memory sequence
func NewSequence() *Sequence {
	return &Sequence{counters: make(map[string]int64)}
}

func (s *Sequence) Seed(_ context.Context, collection string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.counters[collection]; !ok || cur < value {
		s.counters[collection] = value
	}
	return nil
}

func (s *Sequence) Next(_ context.Context, collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.counters[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", store.ErrCounterUninitialized, collection)
	}
	cur++
	s.counters[collection] = cur
	return cur, nil
}

func (s *Sequence) Current(_ context.Context, collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.counters[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", store.ErrCounterUninitialized, collection)
	}
	return cur, nil
}

func (s *Sequence) Close() error { return nil }
