package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/hybridrag/store"
)

// Sequence implements store.Sequence using SQLite. It suits a single
// ingestion host that wants its counters to survive restarts.
type Sequence struct {
	db        *sql.DB
	tableName string
}

var _ store.Sequence = (*Sequence)(nil)

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string // ":memory:" keeps counters for the life of the process
	TableName string // Default "id_sequences"
}

// NewSequence opens the database and creates the sequence table.
func NewSequence(opts SqliteOptions) (*Sequence, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", store.Unavailable(err))
	}
	// one connection so ":memory:" databases are shared and increments serialize
	db.SetMaxOpenConns(1)

	tableName := opts.TableName
	if tableName == "" {
		tableName = "id_sequences"
	}

	s := &Sequence{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *Sequence) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			collection TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", store.Unavailable(err))
	}
	return nil
}

// Close closes the database connection
func (s *Sequence) Close() error {
	return s.db.Close()
}

// Seed raises the collection counter to value.
func (s *Sequence) Seed(ctx context.Context, collection string, value int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (collection, value) VALUES (?, ?)
		ON CONFLICT(collection) DO UPDATE SET value = MAX(value, excluded.value)
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, collection, value); err != nil {
		return fmt.Errorf("failed to seed sequence %s: %w", collection, store.Unavailable(err))
	}
	return nil
}

// Next increments and returns the collection counter.
func (s *Sequence) Next(ctx context.Context, collection string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET value = value + 1 WHERE collection = ? RETURNING value`, s.tableName)

	var v int64
	if err := s.db.QueryRowContext(ctx, query, collection).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", store.ErrCounterUninitialized, collection)
		}
		return 0, fmt.Errorf("failed to advance sequence %s: %w", collection, store.Unavailable(err))
	}
	return v, nil
}

// Current returns the collection counter without advancing it.
func (s *Sequence) Current(ctx context.Context, collection string) (int64, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE collection = ?`, s.tableName)

	var v int64
	if err := s.db.QueryRowContext(ctx, query, collection).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", store.ErrCounterUninitialized, collection)
		}
		return 0, fmt.Errorf("failed to read sequence %s: %w", collection, store.Unavailable(err))
	}
	return v, nil
}
