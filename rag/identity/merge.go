// Package identity decides whether a candidate record is new or a repeat of an
// existing one, and mints ids for the new ones.
package identity

import (
	"context"

	"github.com/smallnest/hybridrag/rag"
)

// Querier is the lookup half of a vector store.
type Querier interface {
	Query(ctx context.Context, collection string, q rag.VectorQuery) ([]rag.Record, error)
}

// MergeRecords folds candidate into existing.
//
// For every key present on either side: an empty or absent value yields the
// other side's value; two strings keep existing; two string lists become their
// union with existing's order first; any other combination keeps existing.
func MergeRecords(existing, candidate rag.Record) rag.Record {
	if existing == nil {
		return candidate.Clone()
	}
	if candidate == nil {
		return existing.Clone()
	}

	out := make(rag.Record, len(existing)+len(candidate))
	for k, ev := range existing {
		cv, ok := candidate[k]
		out[k] = mergeValue(ev, cv, ok)
	}
	for k, cv := range candidate {
		if _, seen := existing[k]; !seen {
			out[k] = cloneValue(cv)
		}
	}
	return out
}

func mergeValue(ev, cv any, candidatePresent bool) any {
	if !candidatePresent || isEmpty(cv) {
		return cloneValue(ev)
	}
	if isEmpty(ev) {
		return cloneValue(cv)
	}
	if _, ok := ev.(string); ok {
		return ev
	}
	el, eok := stringList(ev)
	cl, cok := stringList(cv)
	if eok && cok {
		return Union(el, cl)
	}
	return cloneValue(ev)
}

// MergeByHash looks up at most one row of collection sharing candidate's hash
// and merges the two. The result carries the existing row's vector_id. When no
// row matches, or the candidate has no hash, the candidate is returned as is.
func MergeByHash(ctx context.Context, q Querier, collection string, candidate rag.Record, fields []string) (rag.Record, error) {
	hash := candidate.String(rag.FieldHash)
	if hash == "" {
		return candidate.Clone(), nil
	}

	rows, err := q.Query(ctx, collection, rag.VectorQuery{
		TopK:         1,
		Filter:       map[string]any{rag.FieldHash: hash},
		OutputFields: fields,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return candidate.Clone(), nil
	}

	existing := rows[0]
	merged := MergeRecords(existing, candidate)
	merged[rag.FieldVectorID] = existing.String(rag.FieldVectorID)
	return merged, nil
}

// Fold collapses records sharing a hash into the first occurrence, keeping
// the order of first appearance. Records without a hash are kept as is.
func Fold(records []rag.Record) []rag.Record {
	out := make([]rag.Record, 0, len(records))
	index := make(map[string]int, len(records))
	for _, r := range records {
		h := r.String(rag.FieldHash)
		if h == "" {
			out = append(out, r)
			continue
		}
		if i, ok := index[h]; ok {
			out[i] = MergeRecords(out[i], r)
			continue
		}
		index[h] = len(out)
		out = append(out, r)
	}
	return out
}

// Union returns a followed by the elements of b not already present, without duplicates.
func Union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func stringList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return l, true
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case []any:
		return len(x) == 0
	case []float32:
		return len(x) == 0
	case []float64:
		return len(x) == 0
	}
	return false
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []string:
		return append([]string(nil), x...)
	case []float32:
		return append([]float32(nil), x...)
	}
	return v
}
