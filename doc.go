// HybridRAG - Vector and Knowledge-Graph Retrieval in Go
//
// HybridRAG ingests documents into two stores at once: a vector store holding
// text chunks and entities, and a property graph holding the same entities as
// nodes with the relationships an LLM found between them. Questions are then
// answered either from the nearest text chunks or from the subgraphs around
// the entities the question names.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/hybridrag
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/smallnest/hybridrag/llms/openai"
//		"github.com/smallnest/hybridrag/rag/engine"
//		"github.com/smallnest/hybridrag/rag/store"
//	)
//
//	func main() {
//		ctx := context.Background()
//		client, _ := openai.New()
//
//		e, _ := engine.NewRetrievalEngine(ctx, engine.Config{}, engine.Components{
//			Vector:   store.NewInMemoryVectorStore(),
//			Graph:    store.NewMemoryGraph(),
//			LLM:      client,
//			Embedder: client,
//			Reranker: client,
//		})
//
//		_, _ = e.Upsert(ctx, "docs/company.md")
//		res, _ := e.Query(ctx, engine.QueryRequest{Text: "Who works at Acme?", Mode: engine.ModeGraph})
//		fmt.Println(res.Answer)
//	}
//
// # Package Structure
//
//   - rag: record types, store interfaces, error taxonomy and subgraph rendering
//   - rag/engine: the RetrievalEngine with ingestion and the origin and graph query modes
//   - rag/splitter: recursive character splitting and field-wise JSON chunking
//   - rag/extractor: LLM prompts and the tolerant line parser for extraction output
//   - rag/identity: hash-keyed record merging and sequence-backed id assignment
//   - rag/store: in-memory, pgvector and FalkorDB store adapters
//   - rag/retriever: vector and graph retrievers plus a keyword reranker
//   - rag/loader: local file and URL loading with HTML and Markdown extraction
//   - llms/openai: chat, embedding and rerank client for OpenAI-compatible APIs
//   - store: id sequences backed by memory, Redis, Postgres or SQLite
//   - log: leveled logging on golog
//
// # Backends
//
// Store factories accept URLs:
//
//	graph, _ := store.NewGraphStore("falkordb://localhost:6379/rag")
//	vectors, _ := store.NewVectorStore(ctx, "postgres://localhost/rag", 256, "entity", "text")
//
// Ids are drawn from a store.Sequence. The default is process-local; when
// several processes ingest into the same collections, pass a Redis or Postgres
// sequence in engine.Components.
//
// # Environment Variables
//
//   - OPENAI_API_KEY: API key for llms/openai
//   - OPENAI_BASE_URL: base URL of an OpenAI-compatible endpoint
package hybridrag
