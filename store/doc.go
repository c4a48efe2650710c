// Package store defines the per-collection id sequence used to mint vector ids.
//
// Every new entity or text chunk receives an id of the form "{prefix}_{n}" where n
// comes from a Sequence. A sequence is seeded from the backing vector store's row
// count when the retrieval engine starts, is incremented exactly once per new
// record, and is never lowered or reused.
//
// Implementations live in sub-packages:
//   - memory: process-local counter, the default for single-process ingestion
//   - sqlite: file-backed counter for a single host that restarts
//   - postgres: row-per-collection counter shared by many ingestion processes
//   - redis: scripted INCR shared by many ingestion processes
//
// # Example
//
//	seq := redis.NewSequence(redis.RedisOptions{Addr: "localhost:6379"})
//	_ = seq.Seed(ctx, "entity", existingRows)
//	n, err := seq.Next(ctx, "entity") // existingRows+1
package store
