package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/smallnest/hybridrag/log"
	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/rag/retriever"
	"github.com/smallnest/hybridrag/rag/store"
	"github.com/stretchr/testify/require"
)

// scriptedLLM answers extraction prompts from a table keyed by chunk text,
// query-entity prompts with a fixed response and everything else with "answer".
type scriptedLLM struct {
	mu            sync.Mutex
	extractions   map[string]string
	queryEntities string
	prompts       []string
}

func (m *scriptedLLM) Chat(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case strings.Contains(prompt, "You extract a knowledge graph"):
		for chunk, resp := range m.extractions {
			if strings.Contains(prompt, chunk) {
				return resp, nil
			}
		}
		return "", nil
	case strings.Contains(prompt, "List the entities mentioned"):
		return m.queryEntities, nil
	}
	m.prompts = append(m.prompts, prompt)
	return "answer", nil
}

func (m *scriptedLLM) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// blockingLLM waits for its context to end.
type blockingLLM struct{}

func (blockingLLM) Chat(ctx context.Context, prompt string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// failingVectorStore rejects every write.
type failingVectorStore struct {
	*store.InMemoryVectorStore
}

func (failingVectorStore) Upsert(ctx context.Context, collection string, rows []rag.Record) error {
	return rag.StoreError("upsert "+collection, errors.New("connection refused"))
}

const aliceExtraction = `{"e": "Alice", "t": "precise", "desc": "an engineer"}
{"e": "Acme", "t": "precise", "desc": "a company"}
{"x1": "Alice", "r": "works_at", "x2": "Acme", "desc": "Alice is employed by Acme"}`

type fixture struct {
	engine *RetrievalEngine
	llm    *scriptedLLM
	vector *store.InMemoryVectorStore
	graph  *store.MemoryGraph
}

func newFixture(t *testing.T, llm *scriptedLLM, config Config) *fixture {
	t.Helper()
	f := &fixture{
		llm:    llm,
		vector: store.NewInMemoryVectorStore(),
		graph:  store.NewMemoryGraph(),
	}
	e, err := NewRetrievalEngine(context.Background(), config, Components{
		Vector:   f.vector,
		Graph:    f.graph,
		LLM:      llm,
		Embedder: store.NewMockEmbedder(32),
		Reranker: retriever.NewSimpleReranker(),
		Logger:   &log.NoOpLogger{},
	})
	require.NoError(t, err)
	f.engine = e
	return f
}

// entityID looks up the vector id of the entity named content.
func (f *fixture) entityID(t *testing.T, content string) string {
	t.Helper()
	rows, err := f.vector.Query(context.Background(), "entity", rag.VectorQuery{
		Filter: map[string]any{rag.FieldContent: content},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1, "entity %s", content)
	return rows[0].String(rag.FieldVectorID)
}
