// Package engine ties the chunker, extractor, identity layer and the two
// stores into one retrieval engine with an ingestion path and two query modes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/smallnest/hybridrag/log"
	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/rag/extractor"
	"github.com/smallnest/hybridrag/rag/identity"
	"github.com/smallnest/hybridrag/rag/loader"
	"github.com/smallnest/hybridrag/rag/retriever"
	"github.com/smallnest/hybridrag/rag/splitter"
	"github.com/smallnest/hybridrag/store/memory"
)

// Extractor pulls entities and relationships out of chunks and classifies
// the entities named in a question.
type Extractor interface {
	Extract(ctx context.Context, text string) (*rag.Extraction, error)
	retriever.QueryEntityExtractor
}

// RetrievalEngine ingests documents into a vector store and a graph store and
// answers questions from either.
type RetrievalEngine struct {
	config Config

	vectorStore rag.VectorStore
	graphStore  rag.GraphStore
	llm         rag.LLM
	embedder    rag.Embedder
	chunker     rag.Chunker
	loader      rag.DocumentLoader
	extractor   Extractor
	assigner    *identity.Assigner
	logger      log.Logger

	vectorRetriever *retriever.VectorRetriever
	graphRetriever  *retriever.GraphRetriever

	// ingestMu serializes ingestion: chunk N+1 draws ids after chunk N commits.
	ingestMu sync.Mutex
}

// NewRetrievalEngine validates the components, fills in defaults and seeds the
// id sequences from the current row count of both collections.
func NewRetrievalEngine(ctx context.Context, config Config, c Components) (*RetrievalEngine, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()
	if config.Mode != ModeOrigin && config.Mode != ModeGraph {
		return nil, fmt.Errorf("%w: unknown mode %q", rag.ErrInvalidArgument, config.Mode)
	}

	logger := log.OrDefault(c.Logger)
	if c.Chunker == nil {
		c.Chunker = splitter.NewChunker()
	}
	if c.Loader == nil {
		c.Loader = loader.New(loader.WithLogger(logger))
	}
	if c.Extractor == nil {
		c.Extractor = extractor.New(c.LLM, extractor.WithLogger(logger))
	}
	if c.Sequence == nil {
		c.Sequence = memory.NewSequence()
	}

	e := &RetrievalEngine{
		config:      config,
		vectorStore: c.Vector,
		graphStore:  c.Graph,
		llm:         c.LLM,
		embedder:    c.Embedder,
		chunker:     c.Chunker,
		loader:      c.Loader,
		extractor:   c.Extractor,
		assigner:    identity.NewAssigner(c.Sequence),
		logger:      logger,
	}
	e.assigner.Register(config.EntityCollection, config.EntityIDPrefix)
	e.assigner.Register(config.TextCollection, config.TextIDPrefix)

	e.vectorRetriever = retriever.NewVectorRetriever(c.Vector, c.Embedder, c.Reranker, config.TextCollection)
	e.graphRetriever = retriever.NewGraphRetriever(c.Extractor, c.Vector, c.Graph, c.Embedder, config.EntityCollection, logger)

	counts, err := e.vectorStore.Count(ctx, config.EntityCollection, config.TextCollection)
	if err != nil {
		return nil, fmt.Errorf("count collections: %w", err)
	}
	if err := e.assigner.Seed(ctx, counts); err != nil {
		return nil, err
	}
	logger.Debug("engine: seeded sequences %v", counts)
	return e, nil
}

// Config returns the effective configuration.
func (e *RetrievalEngine) Config() Config {
	return e.config
}

// Close closes both stores.
func (e *RetrievalEngine) Close() error {
	return errors.Join(e.vectorStore.Close(), e.graphStore.Close())
}

// withTimeout bounds one collaborator call by Config.CallTimeout.
func (e *RetrievalEngine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.CallTimeout)
}

// classify marks deadline failures as retryable timeouts.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, rag.ErrTimeout) {
		return fmt.Errorf("%s: %w: %w", op, rag.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
