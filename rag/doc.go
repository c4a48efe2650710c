// Package rag holds the shared vocabulary of the hybrid retrieval engine.
//
// Both vector collections store schemaless Records keyed by vector_id. An
// entity row and its graph node share that id, which is what lets a vector hit
// seed a graph traversal. Records are deduplicated by a content hash, see
// package identity.
//
// # Interfaces
//
// The engine talks to its collaborators only through the interfaces declared
// here: VectorStore, GraphStore, LLM, Embedder, Reranker, Chunker and
// DocumentLoader. The adapters in this package bridge langchaingo models,
// embedders, text splitters and document loaders onto them.
//
// # Errors
//
// Failures are reported with the sentinels in errors.go and tested with
// errors.Is. ErrTimeout is the only retryable one:
//
//	if rag.IsRetryable(err) {
//		// back off and try again
//	}
//
// # Rendering
//
// RenderSubgraph turns the result of GraphStore.Find into the context blocks
// handed to the LLM in graph mode.
package rag
