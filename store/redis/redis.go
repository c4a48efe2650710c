package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/hybridrag/store"
)

// seedScript raises the counter to ARGV[1] if it is missing or lower.
var seedScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if (not cur) or (tonumber(cur) < tonumber(ARGV[1])) then
	redis.call('SET', KEYS[1], ARGV[1])
end
return tonumber(redis.call('GET', KEYS[1]))
`)

// nextScript increments only counters that have been seeded.
var nextScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
return redis.call('INCR', KEYS[1])
`)

// Sequence implements store.Sequence on top of Redis integer keys, so several
// ingestion processes can share one counter per collection.
type Sequence struct {
	client redis.UniversalClient
	prefix string
}

var _ store.Sequence = (*Sequence)(nil)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Key prefix, default "hybridrag:"
}

// NewSequence creates a new Redis-backed sequence
func NewSequence(opts RedisOptions) *Sequence {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewSequenceWithClient(client, opts.Prefix)
}

// NewSequenceWithClient creates a sequence over an existing client.
func NewSequenceWithClient(client redis.UniversalClient, prefix string) *Sequence {
	if prefix == "" {
		prefix = "hybridrag:"
	}
	return &Sequence{client: client, prefix: prefix}
}

func (s *Sequence) key(collection string) string {
	return fmt.Sprintf("%ssequence:%s", s.prefix, collection)
}

// Seed raises the collection counter to value.
func (s *Sequence) Seed(ctx context.Context, collection string, value int64) error {
	if err := seedScript.Run(ctx, s.client, []string{s.key(collection)}, value).Err(); err != nil {
		return fmt.Errorf("failed to seed sequence %s: %w", collection, store.Unavailable(err))
	}
	return nil
}

// Next increments and returns the collection counter.
func (s *Sequence) Next(ctx context.Context, collection string) (int64, error) {
	n, err := nextScript.Run(ctx, s.client, []string{s.key(collection)}).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: %s", store.ErrCounterUninitialized, collection)
		}
		return 0, fmt.Errorf("failed to advance sequence %s: %w", collection, store.Unavailable(err))
	}
	return n, nil
}

// Current returns the collection counter without advancing it.
func (s *Sequence) Current(ctx context.Context, collection string) (int64, error) {
	n, err := s.client.Get(ctx, s.key(collection)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, fmt.Errorf("%w: %s", store.ErrCounterUninitialized, collection)
		}
		return 0, fmt.Errorf("failed to read sequence %s: %w", collection, store.Unavailable(err))
	}
	return n, nil
}

// Close closes the underlying client.
func (s *Sequence) Close() error {
	return s.client.Close()
}
