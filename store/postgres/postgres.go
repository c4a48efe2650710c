package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/smallnest/hybridrag/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// NewPool opens a pgx pool with the pgvector types registered on every connection.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", store.Unavailable(err))
	}
	return pool, nil
}

// Sequence implements store.Sequence with a row per collection and
// UPDATE ... RETURNING increments, safe across processes sharing the database.
type Sequence struct {
	pool      DBPool
	tableName string
}

var _ store.Sequence = (*Sequence)(nil)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "id_sequences"
}

// NewSequence connects to Postgres and returns a sequence store.
func NewSequence(ctx context.Context, opts PostgresOptions) (*Sequence, error) {
	pool, err := NewPool(ctx, opts.ConnString)
	if err != nil {
		return nil, err
	}
	return NewSequenceWithPool(pool, opts.TableName), nil
}

// NewSequenceWithPool creates a sequence store with an existing pool
// Useful for testing with mocks
func NewSequenceWithPool(pool DBPool, tableName string) *Sequence {
	if tableName == "" {
		tableName = "id_sequences"
	}
	return &Sequence{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *Sequence) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", store.Unavailable(err))
	}
	return nil
}

// Seed raises the collection counter to value.
func (s *Sequence) Seed(ctx context.Context, collection string, value int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (collection, value)
		VALUES ($1, $2)
		ON CONFLICT (collection) DO UPDATE SET
			value = GREATEST(%s.value, EXCLUDED.value)
	`, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query, collection, value); err != nil {
		return fmt.Errorf("failed to seed sequence %s: %w", collection, store.Unavailable(err))
	}
	return nil
}

// Next increments and returns the collection counter.
func (s *Sequence) Next(ctx context.Context, collection string) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET value = value + 1
		WHERE collection = $1
		RETURNING value
	`, s.tableName)

	var v int64
	if err := s.pool.QueryRow(ctx, query, collection).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", store.ErrCounterUninitialized, collection)
		}
		return 0, fmt.Errorf("failed to advance sequence %s: %w", collection, store.Unavailable(err))
	}
	return v, nil
}

// Current returns the collection counter without advancing it.
func (s *Sequence) Current(ctx context.Context, collection string) (int64, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE collection = $1", s.tableName)

	var v int64
	if err := s.pool.QueryRow(ctx, query, collection).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", store.ErrCounterUninitialized, collection)
		}
		return 0, fmt.Errorf("failed to read sequence %s: %w", collection, store.Unavailable(err))
	}
	return v, nil
}

// Close closes the connection pool
func (s *Sequence) Close() error {
	s.pool.Close()
	return nil
}
