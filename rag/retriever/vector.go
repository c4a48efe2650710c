package retriever

import (
	"context"
	"fmt"

	"github.com/smallnest/hybridrag/rag"
)

// VectorRetriever answers origin-mode lookups: it embeds the query, searches
// the text collection and reranks the hits.
type VectorRetriever struct {
	vectorStore rag.VectorStore
	embedder    rag.Embedder
	reranker    rag.Reranker
	collection  string
}

// NewVectorRetriever creates a new vector retriever. A nil reranker keeps the
// similarity order.
func NewVectorRetriever(vectorStore rag.VectorStore, embedder rag.Embedder, reranker rag.Reranker, collection string) *VectorRetriever {
	return &VectorRetriever{
		vectorStore: vectorStore,
		embedder:    embedder,
		reranker:    reranker,
		collection:  collection,
	}
}

// Retrieve returns up to topK chunk texts, most relevant first.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := r.vectorStore.Query(ctx, r.collection, rag.VectorQuery{
		Embedding:    embedding,
		TopK:         topK,
		OutputFields: []string{rag.FieldContent},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.collection, err)
	}

	docs := make([]string, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.String(rag.FieldContent))
	}
	if r.reranker == nil || len(docs) == 0 {
		return docs, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, err := r.reranker.Rerank(ctx, query, docs)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	return applyRerank(docs, results), nil
}
