package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/hybridrag/store"
)

var (
	// ErrUnsupportedInput marks a document or chunk whose shape cannot be handled.
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrExtractionParseSkip marks one extraction line that was discarded.
	ErrExtractionParseSkip = errors.New("extraction line skipped")
	// ErrUnresolvedEndpoint marks a relationship whose endpoint name has no entity.
	ErrUnresolvedEndpoint = errors.New("unresolved relationship endpoint")
	// ErrStoreUnavailable wraps backing store and network failures, including
	// those of the id sequence backends.
	ErrStoreUnavailable = store.ErrUnavailable
	// ErrCounterUninitialized is returned when ids are assigned before seeding.
	ErrCounterUninitialized = store.ErrCounterUninitialized
	// ErrTimeout is a retryable deadline failure on a backing call.
	ErrTimeout = errors.New("operation timed out")
	// ErrNotFound is returned by GraphStore.Find for an unknown node.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument rejects out-of-range parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsRetryable reports whether err is a timeout the caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// StoreError classifies a backing-store failure. Deadline errors become
// ErrTimeout, errors already carrying a taxonomy sentinel keep it, and
// everything else becomes ErrStoreUnavailable.
func StoreError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrCounterUninitialized):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
}
