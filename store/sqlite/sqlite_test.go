package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/smallnest/hybridrag/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence_Lifecycle(t *testing.T) {
	ctx := context.Background()
	seq, err := NewSequence(SqliteOptions{Path: ":memory:"})
	require.NoError(t, err)
	defer seq.Close()

	_, err = seq.Next(ctx, "entity")
	assert.ErrorIs(t, err, store.ErrCounterUninitialized)

	require.NoError(t, seq.Seed(ctx, "entity", 2))
	require.NoError(t, seq.Seed(ctx, "entity", 1))

	for want := int64(3); want <= 5; want++ {
		got, err := seq.Next(ctx, "entity")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	cur, err := seq.Current(ctx, "entity")
	require.NoError(t, err)
	assert.Equal(t, int64(5), cur)
}

func TestSequence_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seq.db")

	seq, err := NewSequence(SqliteOptions{Path: path})
	require.NoError(t, err)
	require.NoError(t, seq.Seed(ctx, "text", 0))
	_, err = seq.Next(ctx, "text")
	require.NoError(t, err)
	require.NoError(t, seq.Close())

	seq, err = NewSequence(SqliteOptions{Path: path})
	require.NoError(t, err)
	defer seq.Close()

	// a restart re-seeds from a stale count; the stored value must win
	require.NoError(t, seq.Seed(ctx, "text", 0))
	v, err := seq.Next(ctx, "text")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestSequence_CollectionsIndependent(t *testing.T) {
	ctx := context.Background()
	seq, err := NewSequence(SqliteOptions{Path: ":memory:", TableName: "counters"})
	require.NoError(t, err)
	defer seq.Close()

	require.NoError(t, seq.Seed(ctx, "entity", 10))
	require.NoError(t, seq.Seed(ctx, "text", 0))

	e, err := seq.Next(ctx, "entity")
	require.NoError(t, err)
	tx, err := seq.Next(ctx, "text")
	require.NoError(t, err)

	assert.Equal(t, int64(11), e)
	assert.Equal(t, int64(1), tx)
}

func TestSequence_ClosedDatabase(t *testing.T) {
	ctx := context.Background()
	seq, err := NewSequence(SqliteOptions{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, seq.Seed(ctx, "entity", 1))
	require.NoError(t, seq.Close())

	_, err = seq.Next(ctx, "entity")
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.NotErrorIs(t, err, store.ErrCounterUninitialized)
}
