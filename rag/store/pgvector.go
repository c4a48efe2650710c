package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/smallnest/hybridrag/rag"
	"github.com/smallnest/hybridrag/rag/identity"
	"github.com/smallnest/hybridrag/store/postgres"
)

// PgVectorStore keeps each collection in its own table with a pgvector
// embedding column. Fields other than vector_id, content and hash live in a
// JSONB column and are filtered by containment.
type PgVectorStore struct {
	pool        postgres.DBPool
	tablePrefix string
	dimension   int
}

var _ rag.VectorStore = (*PgVectorStore)(nil)

// PgVectorOptions configures a PgVectorStore
type PgVectorOptions struct {
	ConnString  string
	TablePrefix string // Default "rag_"
	Dimension   int    // Embedding width used by InitSchema, default 256
}

// NewPgVectorStore connects to Postgres with pgvector types registered.
func NewPgVectorStore(ctx context.Context, opts PgVectorOptions) (*PgVectorStore, error) {
	pool, err := postgres.NewPool(ctx, opts.ConnString)
	if err != nil {
		return nil, rag.StoreError("connect pgvector", err)
	}
	return NewPgVectorStoreWithPool(pool, opts), nil
}

// NewPgVectorStoreWithPool creates a store over an existing pool
// Useful for testing with mocks
func NewPgVectorStoreWithPool(pool postgres.DBPool, opts PgVectorOptions) *PgVectorStore {
	prefix := opts.TablePrefix
	if prefix == "" {
		prefix = "rag_"
	}
	dim := opts.Dimension
	if dim <= 0 {
		dim = 256
	}
	return &PgVectorStore{pool: pool, tablePrefix: prefix, dimension: dim}
}

var columnFields = []string{rag.FieldVectorID, rag.FieldContent, rag.FieldHash}

func (s *PgVectorStore) table(collection string) string {
	return s.tablePrefix + sanitizeLabel(collection)
}

// InitSchema creates the extension and one table per collection.
func (s *PgVectorStore) InitSchema(ctx context.Context, collections ...string) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return rag.StoreError("create extension", err)
	}
	for _, c := range collections {
		t := s.table(c)
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				vector_id TEXT PRIMARY KEY,
				content TEXT NOT NULL DEFAULT '',
				hash TEXT NOT NULL DEFAULT '',
				embedding vector(%d),
				fields JSONB NOT NULL DEFAULT '{}'
			);
			CREATE INDEX IF NOT EXISTS idx_%s_hash ON %s (hash);
		`, t, s.dimension, t, t)
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return rag.StoreError("create table "+t, err)
		}
	}
	return nil
}

// Upsert writes each row, replacing any row with the same vector_id.
func (s *PgVectorStore) Upsert(ctx context.Context, collection string, rows []rag.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (vector_id, content, hash, embedding, fields)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (vector_id) DO UPDATE SET
			content = EXCLUDED.content,
			hash = EXCLUDED.hash,
			embedding = EXCLUDED.embedding,
			fields = EXCLUDED.fields
	`, s.table(collection))

	for _, r := range rows {
		id := r.String(rag.FieldVectorID)
		if id == "" {
			return fmt.Errorf("upsert %s: %w: row without vector_id", collection, rag.ErrInvalidArgument)
		}
		fields, err := json.Marshal(extraFields(r))
		if err != nil {
			return fmt.Errorf("upsert %s: encode fields: %w", collection, err)
		}
		var emb any
		if v := r.Vector(); len(v) > 0 {
			emb = pgvector.NewVector(v)
		}
		if _, err := s.pool.Exec(ctx, query, id, r.String(rag.FieldContent), r.String(rag.FieldHash), emb, fields); err != nil {
			return rag.StoreError("upsert "+collection, err)
		}
	}
	return nil
}

// Query filters on columns or JSONB containment and, with an embedding,
// orders by cosine distance.
func (s *PgVectorStore) Query(ctx context.Context, collection string, q rag.VectorQuery) ([]rag.Record, error) {
	if len(q.Embedding) > 0 && q.TopK <= 0 {
		return nil, fmt.Errorf("query %s: %w: topK must be positive", collection, rag.ErrInvalidArgument)
	}

	withEmbedding := len(q.OutputFields) == 0 || slices.Contains(q.OutputFields, rag.FieldEmbedding)
	cols := "vector_id, content, hash, fields"
	if withEmbedding {
		cols += ", embedding"
	}

	var (
		where []string
		args  []any
	)
	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := q.Filter[k]
		if slices.Contains(columnFields, k) {
			args = append(args, v)
			where = append(where, fmt.Sprintf("%s = $%d", k, len(args)))
			continue
		}
		doc, err := json.Marshal(map[string]any{k: v})
		if err != nil {
			return nil, fmt.Errorf("query %s: encode filter: %w", collection, err)
		}
		args = append(args, doc)
		where = append(where, fmt.Sprintf("fields @> $%d::jsonb", len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, s.table(collection))
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if len(q.Embedding) > 0 {
		args = append(args, pgvector.NewVector(q.Embedding))
		fmt.Fprintf(&b, " ORDER BY embedding <=> $%d", len(args))
	}
	if q.TopK > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.TopK)
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, rag.StoreError("query "+collection, err)
	}
	defer rows.Close()

	var out []rag.Record
	for rows.Next() {
		r, err := scanRecord(rows, withEmbedding)
		if err != nil {
			return nil, rag.StoreError("scan "+collection, err)
		}
		out = append(out, project(r, q.OutputFields))
	}
	if err := rows.Err(); err != nil {
		return nil, rag.StoreError("query "+collection, err)
	}
	return out, nil
}

func scanRecord(rows pgx.Rows, withEmbedding bool) (rag.Record, error) {
	var (
		id, content, hash string
		fields            []byte
		emb               *pgvector.Vector
	)
	dest := []any{&id, &content, &hash, &fields}
	if withEmbedding {
		dest = append(dest, &emb)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	r := rag.Record{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &r); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
	}
	r[rag.FieldVectorID] = id
	r[rag.FieldContent] = content
	r[rag.FieldHash] = hash
	if emb != nil {
		r[rag.FieldEmbedding] = emb.Slice()
	}
	return r, nil
}

// Count returns the row count of each collection table.
func (s *PgVectorStore) Count(ctx context.Context, collections ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(collections))
	for _, c := range collections {
		var n int64
		query := fmt.Sprintf("SELECT count(*) FROM %s", s.table(c))
		if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, rag.StoreError("count "+c, err)
		}
		out[c] = n
	}
	return out, nil
}

// Merge folds candidate into the row sharing its hash.
func (s *PgVectorStore) Merge(ctx context.Context, collection string, candidate rag.Record, fields []string) (rag.Record, error) {
	return identity.MergeByHash(ctx, s, collection, candidate, fields)
}

// Close closes the connection pool
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

func extraFields(r rag.Record) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if k == rag.FieldEmbedding || slices.Contains(columnFields, k) {
			continue
		}
		out[k] = v
	}
	return out
}
