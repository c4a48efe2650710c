package retriever

import (
	"context"
	"testing"

	"github.com/smallnest/hybridrag/log"
	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/rag/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRetriever(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVectorStore()
	require.NoError(t, vs.Upsert(ctx, "text", []rag.Record{
		{rag.FieldVectorID: "text_1", rag.FieldContent: "alice codes", rag.FieldEmbedding: []float32{1, 0}},
		{rag.FieldVectorID: "text_2", rag.FieldContent: "acme sells", rag.FieldEmbedding: []float32{0, 1}},
		{rag.FieldVectorID: "text_3", rag.FieldContent: "alice at acme", rag.FieldEmbedding: []float32{1, 1}},
	}))
	emb := &wordEmbedder{vocab: []string{"alice", "acme"}}

	t.Run("Similarity order without reranker", func(t *testing.T) {
		r := NewVectorRetriever(vs, emb, nil, "text")
		docs, err := r.Retrieve(ctx, "alice", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice codes", "alice at acme"}, docs)
	})

	t.Run("Reranked", func(t *testing.T) {
		r := NewVectorRetriever(vs, emb, reverseReranker{}, "text")
		docs, err := r.Retrieve(ctx, "alice", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice at acme", "alice codes"}, docs)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		r := NewVectorRetriever(vs, emb, nil, "text")
		_, err := r.Retrieve(cctx, "alice", 2)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGraphRetriever(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVectorStore()
	require.NoError(t, vs.Upsert(ctx, "entity", []rag.Record{
		{rag.FieldVectorID: "entity_1", rag.FieldContent: "Alice", rag.FieldEmbedding: []float32{1, 0}},
		{rag.FieldVectorID: "entity_2", rag.FieldContent: "Acme", rag.FieldEmbedding: []float32{0, 1}},
		{rag.FieldVectorID: "entity_3", rag.FieldContent: "Ghost", rag.FieldEmbedding: []float32{1, 1}},
	}))

	g := store.NewMemoryGraph()
	require.NoError(t, g.UpsertEntity(ctx, rag.Node{ID: "entity_1", Name: "Alice", Desc: []string{"engineer"}}))
	require.NoError(t, g.UpsertEntity(ctx, rag.Node{ID: "entity_2", Name: "Acme", Desc: []string{"company"}}))
	require.NoError(t, g.UpsertRelationship(ctx, rag.Relationship{
		ID: "relation_entity_1_entity_2", Relation: "works_at", SourceID: "entity_1", TargetID: "entity_2",
	}))

	t.Run("Precise seeds expand to subgraphs", func(t *testing.T) {
		emb := &wordEmbedder{vocab: []string{"alice", "acme"}}
		ex := &fixedExtractor{entities: []rag.ExtractedEntity{{Content: "Alice", Type: rag.EntityPrecise}}}
		r := NewGraphRetriever(ex, vs, g, emb, "entity", &log.NoOpLogger{})

		blocks, err := r.Retrieve(ctx, "where does alice work", 1, 2, 10)
		require.NoError(t, err)
		require.NotEmpty(t, blocks)
		assert.Contains(t, blocks[0], "Alice -> works_at -> Acme")
		assert.Equal(t, []string{"Alice", ""}, emb.calls)
	})

	t.Run("All abstract still embeds empty precise group", func(t *testing.T) {
		emb := &wordEmbedder{vocab: []string{"alice", "acme"}}
		ex := &fixedExtractor{entities: []rag.ExtractedEntity{
			{Content: "work", Type: rag.EntityAbstract},
			{Content: "employment", Type: rag.EntityAbstract},
		}}
		r := NewGraphRetriever(ex, vs, g, emb, "entity", nil)

		_, err := r.Retrieve(ctx, "what is work", 3, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"", "work,employment"}, emb.calls)
	})

	t.Run("Seeds without node are skipped", func(t *testing.T) {
		emb := &wordEmbedder{vocab: []string{"alice", "acme"}}
		ex := &fixedExtractor{}
		r := NewGraphRetriever(ex, vs, g, emb, "entity", nil)

		ids, err := r.SeedIDs(ctx, "anything", 3)
		require.NoError(t, err)
		assert.Contains(t, ids, "entity_3")

		blocks, err := r.Retrieve(ctx, "anything", 3, 1, 10)
		require.NoError(t, err)
		for _, b := range blocks {
			assert.NotContains(t, b, "Ghost")
		}
	})
}
