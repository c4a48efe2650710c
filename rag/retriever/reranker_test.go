package retriever

import (
	"context"
	"testing"

	"github.com/smallnest/hybridrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleReranker(t *testing.T) {
	ctx := context.Background()
	r := NewSimpleReranker()

	docs := []string{"nothing relevant", "match here", "another match match"}

	res, err := r.Rerank(ctx, "match", docs)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, 2, res[0].Index)
	assert.Equal(t, 1, res[1].Index)
	assert.Equal(t, 0, res[2].Index)
	assert.Zero(t, res[2].Score)

	t.Run("Stable for ties", func(t *testing.T) {
		res, err := r.Rerank(ctx, "zzz", []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, []rag.RerankResult{{Index: 0}, {Index: 1}, {Index: 2}}, res)
	})

	t.Run("Empty input", func(t *testing.T) {
		res, err := r.Rerank(ctx, "q", nil)
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}

func TestApplyRerank(t *testing.T) {
	docs := []string{"a", "b", "c"}
	got := applyRerank(docs, []rag.RerankResult{{Index: 2}, {Index: 7}, {Index: 2}, {Index: 0}})
	assert.Equal(t, []string{"c", "a"}, got)
}
