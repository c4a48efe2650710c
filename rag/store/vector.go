// Package store implements rag.VectorStore and rag.GraphStore over memory,
// Postgres with pgvector, and FalkorDB.
package store

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sync"

	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/rag/identity"
)

// InMemoryVectorStore keeps each collection as an ordered list of rows and
// answers similarity queries by brute-force cosine scoring.
type InMemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	rows  []rag.Record
	index map[string]int
}

var _ rag.VectorStore = (*InMemoryVectorStore)(nil)

// NewInMemoryVectorStore creates a new InMemoryVectorStore
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{
		collections: make(map[string]*memCollection),
	}
}

// Upsert inserts rows or replaces those with the same vector_id in place.
func (s *InMemoryVectorStore) Upsert(ctx context.Context, collection string, rows []rag.Record) error {
	for _, r := range rows {
		if r.String(rag.FieldVectorID) == "" {
			return fmt.Errorf("upsert %s: %w: row without vector_id", collection, rag.ErrInvalidArgument)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		c = &memCollection{index: make(map[string]int)}
		s.collections[collection] = c
	}
	for _, r := range rows {
		id := r.String(rag.FieldVectorID)
		if i, exists := c.index[id]; exists {
			c.rows[i] = r.Clone()
			continue
		}
		c.index[id] = len(c.rows)
		c.rows = append(c.rows, r.Clone())
	}
	return nil
}

// Query runs a similarity search when q.Embedding is set, otherwise an exact
// filter scan in insertion order. Ties in similarity keep insertion order.
func (s *InMemoryVectorStore) Query(ctx context.Context, collection string, q rag.VectorQuery) ([]rag.Record, error) {
	if len(q.Embedding) > 0 && q.TopK <= 0 {
		return nil, fmt.Errorf("query %s: %w: topK must be positive", collection, rag.ErrInvalidArgument)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return []rag.Record{}, nil
	}

	var matched []rag.Record
	for _, r := range c.rows {
		if matchesFilter(r, q.Filter) {
			matched = append(matched, r)
		}
	}

	if len(q.Embedding) > 0 {
		type scored struct {
			row   rag.Record
			score float64
		}
		scores := make([]scored, len(matched))
		for i, r := range matched {
			scores[i] = scored{row: r, score: cosineSimilarity32(q.Embedding, r.Vector())}
		}
		slices.SortStableFunc(scores, func(a, b scored) int {
			return cmp.Compare(b.score, a.score)
		})
		matched = matched[:0]
		for _, sc := range scores {
			matched = append(matched, sc.row)
		}
	}

	if q.TopK > 0 && len(matched) > q.TopK {
		matched = matched[:q.TopK]
	}

	out := make([]rag.Record, len(matched))
	for i, r := range matched {
		out[i] = project(r, q.OutputFields)
	}
	return out, nil
}

// Count returns the row count of each named collection; unknown ones count zero.
func (s *InMemoryVectorStore) Count(ctx context.Context, collections ...string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(collections))
	for _, name := range collections {
		if c, ok := s.collections[name]; ok {
			out[name] = int64(len(c.rows))
		} else {
			out[name] = 0
		}
	}
	return out, nil
}

// Merge folds candidate into the row sharing its hash.
func (s *InMemoryVectorStore) Merge(ctx context.Context, collection string, candidate rag.Record, fields []string) (rag.Record, error) {
	return identity.MergeByHash(ctx, s, collection, candidate, fields)
}

// Close closes the vector store (no-op for in-memory implementation)
func (s *InMemoryVectorStore) Close() error {
	return nil
}

// project copies the requested fields. vector_id is always included; no
// fields means the whole row.
func project(r rag.Record, fields []string) rag.Record {
	if len(fields) == 0 {
		return r.Clone()
	}
	out := rag.Record{rag.FieldVectorID: r[rag.FieldVectorID]}
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out.Clone()
}

// matchesFilter checks if a row matches the given filter
func matchesFilter(r rag.Record, filter map[string]any) bool {
	for key, value := range filter {
		v, exists := r[key]
		if !exists || !reflect.DeepEqual(v, value) {
			return false
		}
	}
	return true
}

// cosineSimilarity32 calculates cosine similarity between two float32 vectors
func cosineSimilarity32(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
