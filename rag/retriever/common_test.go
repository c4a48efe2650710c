package retriever

import (
	"context"
	"strings"

	"github.com/smallnest/hybridrag/rag"
)

// wordEmbedder embeds text as a fixed-vocabulary bag of words.
type wordEmbedder struct {
	vocab []string
	calls []string
}

func (m *wordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls = append(m.calls, text)
	v := make([]float32, len(m.vocab))
	lower := strings.ToLower(text)
	for i, w := range m.vocab {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v, nil
}

type fixedExtractor struct {
	entities []rag.ExtractedEntity
}

func (m *fixedExtractor) ExtractQueryEntities(ctx context.Context, text string) ([]rag.ExtractedEntity, error) {
	return m.entities, nil
}

type reverseReranker struct{}

func (reverseReranker) Rerank(ctx context.Context, query string, documents []string) ([]rag.RerankResult, error) {
	out := make([]rag.RerankResult, len(documents))
	for i := range documents {
		out[i] = rag.RerankResult{Index: len(documents) - 1 - i, Score: float64(i)}
	}
	return out, nil
}
