package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/store"
)

// Assigner mints "{prefix}_{n}" ids from a per-collection sequence.
type Assigner struct {
	seq      store.Sequence
	mu       sync.RWMutex
	prefixes map[string]string
}

// NewAssigner creates an assigner over seq.
func NewAssigner(seq store.Sequence) *Assigner {
	return &Assigner{
		seq:      seq,
		prefixes: make(map[string]string),
	}
}

// Register sets the id prefix for collection. Unregistered collections use
// their own name as prefix.
func (a *Assigner) Register(collection, prefix string) {
	a.mu.Lock()
	a.prefixes[collection] = prefix
	a.mu.Unlock()
}

func (a *Assigner) prefix(collection string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if p, ok := a.prefixes[collection]; ok && p != "" {
		return p
	}
	return collection
}

// Seed initializes each collection's sequence from its current row count.
func (a *Assigner) Seed(ctx context.Context, counts map[string]int64) error {
	for collection, n := range counts {
		if err := a.seq.Seed(ctx, collection, n); err != nil {
			return fmt.Errorf("seed %s: %w", collection, err)
		}
	}
	return nil
}

// AssignID draws the next id for collection.
func (a *Assigner) AssignID(ctx context.Context, collection string) (string, error) {
	n, err := a.seq.Next(ctx, collection)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%d", a.prefix(collection), n), nil
}

// AssignMissing gives an id to every record whose vector_id is empty, in
// slice order. Records that already carry an id are left untouched.
func (a *Assigner) AssignMissing(ctx context.Context, collection string, records []rag.Record) (int, error) {
	assigned := 0
	for _, r := range records {
		if r.String(rag.FieldVectorID) != "" {
			continue
		}
		id, err := a.AssignID(ctx, collection)
		if err != nil {
			return assigned, err
		}
		r[rag.FieldVectorID] = id
		assigned++
	}
	return assigned, nil
}
