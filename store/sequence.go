package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCounterUninitialized is returned when a collection's sequence is advanced
	// before it has been seeded.
	ErrCounterUninitialized = errors.New("collection counter not initialized")
	// ErrUnavailable marks a backend that could not be reached or rejected a command.
	ErrUnavailable = errors.New("store unavailable")
)

// Unavailable tags a driver error with ErrUnavailable. Context errors are
// returned as they are so deadlines stay distinguishable.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Sequence hands out monotonically increasing integers per named collection.
// Values are never decremented and never reused.
type Sequence interface {
	// Seed initializes the collection's counter to at least value.
	// Seeding an already-initialized counter never lowers it.
	Seed(ctx context.Context, collection string, value int64) error

	// Next atomically increments the collection's counter and returns the new value.
	// It returns ErrCounterUninitialized if the collection was never seeded.
	Next(ctx context.Context, collection string) (int64, error)

	// Current returns the counter value without advancing it.
	Current(ctx context.Context, collection string) (int64, error)

	// Close releases any underlying connection.
	Close() error
}
