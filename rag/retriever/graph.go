package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallnest/hybridrag/log"
	"github.com/smallnest/hybridrag/rag"
)

// QueryEntityExtractor pulls typed entity stubs out of a question.
type QueryEntityExtractor interface {
	ExtractQueryEntities(ctx context.Context, text string) ([]rag.ExtractedEntity, error)
}

// GraphRetriever answers graph-mode lookups: query entities seed a search of
// the entity collection and every hit is expanded into a rendered subgraph.
type GraphRetriever struct {
	extractor   QueryEntityExtractor
	vectorStore rag.VectorStore
	graphStore  rag.GraphStore
	embedder    rag.Embedder
	collection  string
	logger      log.Logger
}

// NewGraphRetriever creates a new graph retriever
func NewGraphRetriever(extractor QueryEntityExtractor, vectorStore rag.VectorStore, graphStore rag.GraphStore, embedder rag.Embedder, collection string, logger log.Logger) *GraphRetriever {
	return &GraphRetriever{
		extractor:   extractor,
		vectorStore: vectorStore,
		graphStore:  graphStore,
		embedder:    embedder,
		collection:  collection,
		logger:      log.OrDefault(logger),
	}
}

// SeedIDs returns the distinct entity vector ids matched by the precise and
// abstract groups of the query, precise hits first.
func (r *GraphRetriever) SeedIDs(ctx context.Context, query string, topK int) ([]string, error) {
	entities, err := r.extractor.ExtractQueryEntities(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("extract query entities: %w", err)
	}

	var precise, abstract []string
	for _, e := range entities {
		if e.Type == rag.EntityPrecise {
			precise = append(precise, e.Content)
		} else {
			abstract = append(abstract, e.Content)
		}
	}

	var ids []string
	seen := make(map[string]bool)
	for _, group := range [][]string{precise, abstract} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// An empty group still embeds, as the empty string.
		embedding, err := r.embedder.Embed(ctx, strings.Join(group, ","))
		if err != nil {
			return nil, fmt.Errorf("embed query entities: %w", err)
		}
		rows, err := r.vectorStore.Query(ctx, r.collection, rag.VectorQuery{
			Embedding:    embedding,
			TopK:         topK,
			OutputFields: []string{rag.FieldVectorID},
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", r.collection, err)
		}
		for _, row := range rows {
			id := row.String(rag.FieldVectorID)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Retrieve renders the subgraph around every seed id. Seeds without a graph
// node are skipped; any other store error aborts.
func (r *GraphRetriever) Retrieve(ctx context.Context, query string, topK, maxDepth, maxNodes int) ([]string, error) {
	ids, err := r.SeedIDs(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	var blocks []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sg, err := r.graphStore.Find(ctx, id, maxDepth, maxNodes)
		if errors.Is(err, rag.ErrNotFound) {
			r.logger.Debug("seed %s has no graph node", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", id, err)
		}
		if prompt := r.graphStore.BuildPrompt(sg); prompt != "" {
			blocks = append(blocks, prompt)
		}
	}
	return blocks, nil
}
