package retriever

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/smallnest/hybridrag/rag"
)

// SimpleReranker scores documents by query keyword occurrences. It needs no
// model and keeps the input order for equal scores.
type SimpleReranker struct{}

var _ rag.Reranker = (*SimpleReranker)(nil)

// NewSimpleReranker creates a new SimpleReranker
func NewSimpleReranker() *SimpleReranker {
	return &SimpleReranker{}
}

// Rerank returns every document index ordered by relevance to query.
func (r *SimpleReranker) Rerank(ctx context.Context, query string, documents []string) ([]rag.RerankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTerms := strings.Fields(strings.ToLower(query))

	results := make([]rag.RerankResult, len(documents))
	for i, doc := range documents {
		content := strings.ToLower(doc)

		var score float64
		for _, term := range queryTerms {
			score += float64(strings.Count(content, term))
		}

		// Normalize by document length
		if len(content) > 0 {
			score = score / float64(len(content)) * 1000
		}

		results[i] = rag.RerankResult{Index: i, Score: score}
	}

	slices.SortStableFunc(results, func(a, b rag.RerankResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return results, nil
}

// applyRerank reorders documents by results. Indices out of range or repeated
// are ignored.
func applyRerank(documents []string, results []rag.RerankResult) []string {
	out := make([]string, 0, len(documents))
	used := make(map[int]bool, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(documents) || used[r.Index] {
			continue
		}
		used[r.Index] = true
		out = append(out, documents[r.Index])
	}
	return out
}
