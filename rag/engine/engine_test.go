package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/smallnest/hybridrag/log"
	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/rag/loader"
	"github.com/smallnest/hybridrag/rag/store"
	"github.com/smallnest/hybridrag/store/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetrievalEngine_Validation(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVectorStore()
	gs := store.NewMemoryGraph()
	llm := &scriptedLLM{}
	emb := store.NewMockEmbedder(8)

	_, err := NewRetrievalEngine(ctx, Config{}, Components{Graph: gs, LLM: llm, Embedder: emb})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	_, err = NewRetrievalEngine(ctx, Config{}, Components{Vector: vs, LLM: llm, Embedder: emb})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	_, err = NewRetrievalEngine(ctx, Config{Mode: "hybrid"}, Components{Vector: vs, Graph: gs, LLM: llm, Embedder: emb})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	e, err := NewRetrievalEngine(ctx, Config{}, Components{Vector: vs, Graph: gs, LLM: llm, Embedder: emb, Logger: &log.NoOpLogger{}})
	require.NoError(t, err)
	cfg := e.Config()
	assert.Equal(t, "entity", cfg.EntityCollection)
	assert.Equal(t, "text", cfg.TextCollection)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 5, cfg.TopDepth)
	assert.Equal(t, 100, cfg.MaxNodes)
	assert.Equal(t, ModeOrigin, cfg.Mode)
	assert.NoError(t, e.Close())
}

func TestUpsertText_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}}, Config{})

	report, err := f.engine.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 2, report.Entities)
	assert.Equal(t, 1, report.Relationships)
	assert.Zero(t, report.Dropped)

	alice := f.entityID(t, "Alice")
	acme := f.entityID(t, "Acme")
	assert.Equal(t, "entity_1", alice)
	assert.Equal(t, "entity_2", acme)

	sg, err := f.engine.Find(ctx, alice, 1, 10)
	require.NoError(t, err)
	require.Len(t, sg.Relationships, 1)
	assert.Equal(t, "relation_entity_1_entity_2", sg.Relationships[0].ID)

	prompt := f.engine.BuildPrompt(sg)
	assert.Contains(t, prompt, "Alice")
	assert.Contains(t, prompt, "works_at")
	assert.Contains(t, prompt, "Acme")

	texts, err := f.vector.Query(ctx, "text", rag.VectorQuery{})
	require.NoError(t, err)
	require.Len(t, texts, 1)
	chunk := rag.TextChunkFromRecord(texts[0])
	assert.Equal(t, "text_1", chunk.VectorID)
	assert.Equal(t, "doc.txt", chunk.Source)
	assert.Equal(t, []string{"entity_1", "entity_2"}, chunk.EntityIDs)

	entities, err := f.vector.Query(ctx, "entity", rag.VectorQuery{Filter: map[string]any{rag.FieldVectorID: alice}})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	ent := rag.EntityFromRecord(entities[0])
	assert.Equal(t, []string{"text_1"}, ent.ChunkIDs)
	assert.Equal(t, []string{"an engineer"}, ent.Desc)
	assert.Equal(t, rag.EntityPrecise, ent.Type)
	assert.Equal(t, contentHash("Alice"), ent.Hash)
}

func TestUpsertText_DedupOnReingestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}}, Config{})

	_, err := f.engine.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	require.NoError(t, err)
	first := []string{f.entityID(t, "Alice"), f.entityID(t, "Acme")}

	_, err = f.engine.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	require.NoError(t, err)
	assert.Equal(t, first, []string{f.entityID(t, "Alice"), f.entityID(t, "Acme")})

	counts, err := f.vector.Count(ctx, "entity", "text")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"entity": 2, "text": 1}, counts)

	sg, err := f.engine.Find(ctx, first[0], 1, 10)
	require.NoError(t, err)
	assert.Len(t, sg.Relationships, 1)
	assert.Equal(t, []string{"Alice is employed by Acme"}, sg.Relationships[0].Desc)
}

func TestUpsertText_EntitySharedAcrossChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedLLM{extractions: map[string]string{
		"Alice works_at Acme": aliceExtraction,
		"Alice founded Beta": `{"e": "Alice", "t": "precise", "desc": "a founder"}
{"e": "Beta", "t": "precise", "desc": "a startup"}
{"x1": "Alice", "r": "founded", "x2": "Beta", "desc": ""}`,
	}}, Config{})

	_, err := f.engine.UpsertText(ctx, "a.txt", "Alice works_at Acme")
	require.NoError(t, err)
	_, err = f.engine.UpsertText(ctx, "b.txt", "Alice founded Beta")
	require.NoError(t, err)

	alice := f.entityID(t, "Alice")
	rows, err := f.vector.Query(ctx, "entity", rag.VectorQuery{Filter: map[string]any{rag.FieldVectorID: alice}})
	require.NoError(t, err)
	ent := rag.EntityFromRecord(rows[0])
	assert.Equal(t, []string{"text_1", "text_2"}, ent.ChunkIDs)
	assert.Equal(t, []string{"an engineer", "a founder"}, ent.Desc)
	assert.Equal(t, "entity_3", f.entityID(t, "Beta"))

	sg, err := f.engine.Find(ctx, alice, 1, 10)
	require.NoError(t, err)
	assert.Len(t, sg.Nodes, 3)
	assert.Len(t, sg.Relationships, 2)
	for _, rel := range sg.Relationships {
		if rel.Relation == "founded" {
			assert.Equal(t, []string{DefaultRelationDesc}, rel.Desc)
		}
	}
}

func TestUpsertText_RelationshipDropRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedLLM{extractions: map[string]string{
		"A knows C": `{"e": "A", "t": "precise", "desc": "first"}
{"e": "B", "t": "precise", "desc": "second"}
{"x1": "A", "r": "knows", "x2": "C", "desc": "dangling"}`,
	}}, Config{})

	report, err := f.engine.UpsertText(ctx, "doc.txt", "A knows C")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Entities)
	assert.Zero(t, report.Relationships)
	assert.Equal(t, 1, report.Dropped)

	sg, err := f.engine.Find(ctx, f.entityID(t, "A"), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, sg.Relationships)
	assert.Len(t, sg.Nodes, 1)
}

func TestUpsertText_MonotonicIDsFromExistingRows(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVectorStore()
	var existing []rag.Record
	for _, name := range []string{"X", "Y", "Z"} {
		existing = append(existing, rag.Entity{
			VectorID: "entity_" + string(rune('1'+len(existing))),
			Content:  name,
			Hash:     contentHash(name),
		}.Record())
	}
	require.NoError(t, vs.Upsert(ctx, "entity", existing))

	llm := &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}}
	e, err := NewRetrievalEngine(ctx, Config{}, Components{
		Vector:   vs,
		Graph:    store.NewMemoryGraph(),
		LLM:      llm,
		Embedder: store.NewMockEmbedder(8),
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	_, err = e.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	require.NoError(t, err)

	f := &fixture{vector: vs}
	assert.Equal(t, "entity_4", f.entityID(t, "Alice"))
	assert.Equal(t, "entity_5", f.entityID(t, "Acme"))
	assert.Equal(t, "entity_1", f.entityID(t, "X"))
}

func TestUpsert_ThroughLoader(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVectorStore()
	llm := &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}}
	e, err := NewRetrievalEngine(ctx, Config{}, Components{
		Vector:   vs,
		Graph:    store.NewMemoryGraph(),
		LLM:      llm,
		Embedder: store.NewMockEmbedder(8),
		Loader:   loader.NewStaticDocumentLoader(map[string]string{"docs/alice.txt": "Alice works_at Acme"}),
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	report, err := e.Upsert(ctx, "docs/alice.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/alice.txt", report.Source)
	assert.Equal(t, 1, report.Relationships)

	_, err = e.Upsert(ctx, "docs/missing.txt")
	assert.ErrorIs(t, err, rag.ErrNotFound)
}

func TestUpsertText_StoreFailureAborts(t *testing.T) {
	ctx := context.Background()
	e, err := NewRetrievalEngine(ctx, Config{}, Components{
		Vector:   failingVectorStore{store.NewInMemoryVectorStore()},
		Graph:    store.NewMemoryGraph(),
		LLM:      &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}},
		Embedder: store.NewMockEmbedder(8),
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	report, err := e.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	assert.ErrorIs(t, err, rag.ErrStoreUnavailable)
	assert.Zero(t, report.Chunks)
}

type fixedChunker []string

func (c fixedChunker) Chunk(string) ([]string, error) {
	return c, nil
}

func TestUpsertText_SkipsUnsupportedChunk(t *testing.T) {
	ctx := context.Background()
	vs := store.NewInMemoryVectorStore()
	e, err := NewRetrievalEngine(ctx, Config{}, Components{
		Vector:   vs,
		Graph:    store.NewMemoryGraph(),
		LLM:      &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}},
		Embedder: store.NewMockEmbedder(8),
		Chunker:  fixedChunker{"\xff\xfe", "Alice works_at Acme", "   "},
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	report, err := e.UpsertText(ctx, "doc.txt", "ignored by the chunker")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 2, report.Entities)
	assert.Equal(t, 1, report.Relationships)

	counts, err := vs.Count(ctx, "entity", "text")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"entity": 2, "text": 1}, counts)
}

func TestUpsertText_SequenceOutageIsStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	seq := redis.NewSequence(redis.RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { seq.Close() })

	e, err := NewRetrievalEngine(ctx, Config{}, Components{
		Vector:   store.NewInMemoryVectorStore(),
		Graph:    store.NewMemoryGraph(),
		LLM:      &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}},
		Embedder: store.NewMockEmbedder(8),
		Sequence: seq,
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	mr.Close()

	report, err := e.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	assert.ErrorIs(t, err, rag.ErrStoreUnavailable)
	assert.False(t, rag.IsRetryable(err))
	assert.Zero(t, report.Chunks)
}

func TestUpsertText_CallTimeoutIsRetryable(t *testing.T) {
	ctx := context.Background()
	e, err := NewRetrievalEngine(ctx, Config{CallTimeout: 10 * time.Millisecond}, Components{
		Vector:   store.NewInMemoryVectorStore(),
		Graph:    store.NewMemoryGraph(),
		LLM:      blockingLLM{},
		Embedder: store.NewMockEmbedder(8),
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)

	_, err = e.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	assert.ErrorIs(t, err, rag.ErrTimeout)
	assert.True(t, rag.IsRetryable(err))
}

func TestUpsertText_CancelledContext(t *testing.T) {
	f := newFixture(t, &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}}, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	assert.ErrorIs(t, err, context.Canceled)

	counts, err := f.vector.Count(context.Background(), "entity", "text")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"entity": 0, "text": 0}, counts)

	_, err = f.engine.Query(ctx, QueryRequest{Text: "Where does Alice work?"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuery_Origin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedLLM{extractions: map[string]string{"Alice works_at Acme": aliceExtraction}}, Config{})
	_, err := f.engine.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	require.NoError(t, err)

	res, err := f.engine.Query(ctx, QueryRequest{Text: "Where does Alice work?"})
	require.NoError(t, err)
	assert.Equal(t, ModeOrigin, res.Mode)
	assert.Equal(t, "answer", res.Answer)
	assert.Equal(t, "Alice works_at Acme", res.Context)

	prompt := f.llm.lastPrompt()
	assert.Contains(t, prompt, "Alice works_at Acme")
	assert.Contains(t, prompt, "Where does Alice work?")
}

func TestQuery_Graph(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedLLM{
		extractions:   map[string]string{"Alice works_at Acme": aliceExtraction},
		queryEntities: `{"e": "Alice", "t": "precise"}`,
	}, Config{})
	_, err := f.engine.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	require.NoError(t, err)

	res, err := f.engine.Query(ctx, QueryRequest{Text: "Where does Alice work?", Mode: ModeGraph, TopDepth: 1})
	require.NoError(t, err)
	assert.Equal(t, ModeGraph, res.Mode)
	assert.Contains(t, res.Context, "Alice -> works_at -> Acme")

	blocks, err := f.engine.Retrieve(ctx, QueryRequest{Text: "Where does Alice work?", Mode: ModeGraph})
	require.NoError(t, err)
	assert.NotEmpty(t, blocks)
}

func TestQuery_GraphAllAbstract(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &scriptedLLM{
		extractions:   map[string]string{"Alice works_at Acme": aliceExtraction},
		queryEntities: `{"e": "employment", "t": "abstract"}`,
	}, Config{Mode: ModeGraph})
	_, err := f.engine.UpsertText(ctx, "doc.txt", "Alice works_at Acme")
	require.NoError(t, err)

	res, err := f.engine.Query(ctx, QueryRequest{Text: "Tell me about employment"})
	require.NoError(t, err)
	assert.Equal(t, ModeGraph, res.Mode)
	assert.Equal(t, "answer", res.Answer)
}

func TestQuery_GraphOnEmptyStore(t *testing.T) {
	f := newFixture(t, &scriptedLLM{queryEntities: `{"e": "Alice", "t": "precise"}`}, Config{})

	res, err := f.engine.Query(context.Background(), QueryRequest{Text: "Who is Alice?", Mode: ModeGraph})
	require.NoError(t, err)
	assert.Empty(t, res.Context)
}

func TestQuery_InvalidRequests(t *testing.T) {
	f := newFixture(t, &scriptedLLM{}, Config{})
	ctx := context.Background()

	_, err := f.engine.Query(ctx, QueryRequest{})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	_, err = f.engine.Query(ctx, QueryRequest{Text: "q", Mode: "bogus"})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	_, err = f.engine.Query(ctx, QueryRequest{Text: "q", TopK: -1})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	_, err = f.engine.Retrieve(ctx, QueryRequest{Text: "q", Mode: "bogus"})
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)
}
