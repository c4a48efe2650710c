package engine

import (
	"fmt"
	"time"

	"github.com/smallnest/hybridrag/log"
	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/store"
)

// Mode selects the query strategy.
type Mode string

const (
	// ModeOrigin answers from the text chunks nearest to the question.
	ModeOrigin Mode = "origin"
	// ModeGraph answers from subgraphs seeded by the entities in the question.
	ModeGraph Mode = "graph"
)

// DefaultAnswerPrompt wraps the retrieved context and the question. The first
// %s is the context, the second the question.
const DefaultAnswerPrompt = `
Answer the question using only the context below. If the context does not
contain the answer, say that you do not know.

Context:
%s

Question:
%s
`

// DefaultRelationDesc stands in for an empty relationship description.
const DefaultRelationDesc = "no description for this relation"

// Config holds the engine settings. Zero values take the defaults.
type Config struct {
	EntityCollection string // Default "entity"
	TextCollection   string // Default "text"
	EntityIDPrefix   string // Default "entity"
	TextIDPrefix     string // Default "text"

	TopK     int  // Default 5
	TopDepth int  // Default 5
	MaxNodes int  // Default 100
	Mode     Mode // Default origin

	// CallTimeout bounds every collaborator call. Zero means no bound.
	CallTimeout time.Duration
	// EmbedConcurrency caps parallel embedding calls per chunk. Default 4.
	EmbedConcurrency int

	AnswerPrompt string
}

func (c Config) withDefaults() Config {
	if c.EntityCollection == "" {
		c.EntityCollection = "entity"
	}
	if c.TextCollection == "" {
		c.TextCollection = "text"
	}
	if c.EntityIDPrefix == "" {
		c.EntityIDPrefix = "entity"
	}
	if c.TextIDPrefix == "" {
		c.TextIDPrefix = "text"
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.TopDepth <= 0 {
		c.TopDepth = 5
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = 100
	}
	if c.Mode == "" {
		c.Mode = ModeOrigin
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 4
	}
	if c.AnswerPrompt == "" {
		c.AnswerPrompt = DefaultAnswerPrompt
	}
	return c
}

// Components are the collaborators the engine orchestrates.
type Components struct {
	Vector   rag.VectorStore // Required
	Graph    rag.GraphStore  // Required
	LLM      rag.LLM         // Required
	Embedder rag.Embedder    // Required
	// Reranker orders origin-mode hits. Nil keeps the similarity order.
	Reranker rag.Reranker
	// Chunker defaults to splitter.NewChunker().
	Chunker rag.Chunker
	// Loader defaults to loader.New().
	Loader rag.DocumentLoader
	// Extractor defaults to extractor.New(LLM).
	Extractor Extractor
	// Sequence defaults to a process-local memory.Sequence.
	Sequence store.Sequence
	Logger   log.Logger
}

func (c Components) validate() error {
	switch {
	case c.Vector == nil:
		return fmt.Errorf("%w: vector store is required", rag.ErrInvalidArgument)
	case c.Graph == nil:
		return fmt.Errorf("%w: graph store is required", rag.ErrInvalidArgument)
	case c.LLM == nil:
		return fmt.Errorf("%w: llm is required", rag.ErrInvalidArgument)
	case c.Embedder == nil:
		return fmt.Errorf("%w: embedder is required", rag.ErrInvalidArgument)
	}
	return nil
}
