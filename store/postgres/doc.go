// Package postgres provides a PostgreSQL-backed id sequence and the shared pgx
// pool constructor used by the pgvector store.
//
// Each collection is a row in the sequence table. Next is a single
// UPDATE ... RETURNING statement, so the database serializes concurrent callers.
//
//	pool, _ := postgres.NewPool(ctx, "postgres://localhost/rag")
//	seq := postgres.NewSequenceWithPool(pool, "")
//	_ = seq.InitSchema(ctx)
package postgres
