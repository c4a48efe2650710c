package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/smallnest/hybridrag/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecursiveCharacterTextSplitter(t *testing.T) {
	t.Run("Hard cut without separators", func(t *testing.T) {
		s := NewRecursiveCharacterTextSplitter(
			WithChunkSize(10),
			WithChunkOverlap(0),
		)
		chunks := s.SplitText("1234567890abcdefghij")
		assert.Equal(t, []string{"1234567890", "abcdefghij"}, chunks)
	})

	t.Run("Split with separators", func(t *testing.T) {
		s := NewRecursiveCharacterTextSplitter(
			WithChunkSize(10),
			WithChunkOverlap(0),
			WithSeparators([]string{"\n"}),
		)
		chunks := s.SplitText("part1\npart2\npart3")
		assert.Equal(t, []string{"part1", "part2", "part3"}, chunks)
	})

	t.Run("Overlap repeats trailing pieces", func(t *testing.T) {
		s := NewRecursiveCharacterTextSplitter(
			WithChunkSize(10),
			WithChunkOverlap(5),
		)
		chunks := s.SplitText("aaaa bbbb cccc dddd")
		assert.Equal(t, []string{"aaaa bbbb", "bbbb cccc", "cccc dddd"}, chunks)
	})

	t.Run("Sentence terminators win over spaces", func(t *testing.T) {
		s := NewRecursiveCharacterTextSplitter(
			WithChunkSize(20),
			WithChunkOverlap(0),
		)
		chunks := s.SplitText("First sentence. Second sentence. Third one.")
		assert.Equal(t, []string{"First sentence", ". Second sentence", ". Third one."}, chunks)
	})

	t.Run("Short text is one chunk", func(t *testing.T) {
		s := NewRecursiveCharacterTextSplitter()
		assert.Equal(t, []string{"hello world"}, s.SplitText("  hello world \n"))
	})

	t.Run("Counts characters not bytes", func(t *testing.T) {
		s := NewRecursiveCharacterTextSplitter(
			WithChunkSize(4),
			WithChunkOverlap(0),
		)
		chunks := s.SplitText("数据检索增强生成")
		assert.Equal(t, []string{"数据检索", "增强生成"}, chunks)
	})
}

func TestChunker_Text(t *testing.T) {
	c := NewChunker(WithChunkSize(50), WithChunkOverlap(10))
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)

	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 50)
	}
}

func TestChunker_JSONObject(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(0))

	chunks, err := c.Chunk(`{"name": "Alice", "age": 30, "tags": ["a", "b"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"name: Alice\nage: 30\ntags: [\"a\", \"b\"]\n"}, chunks)
}

func TestChunker_JSONLongFieldReplicates(t *testing.T) {
	c := NewChunker(WithChunkSize(10), WithChunkOverlap(0))

	chunks, err := c.Chunk(`{"id": "x1", "body": "aaaa bbbb cccc", "note": "short"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"id: x1\nbody: aaaa bbbb\nnote: short\n",
		"id: x1\nbody: cccc\nnote: short\n",
	}, chunks)
}

func TestChunker_JSONReusesLastPiece(t *testing.T) {
	c := NewChunker(WithChunkSize(10), WithChunkOverlap(0))

	chunks, err := c.Chunk(`{"a": "aaaa bbbb cccc dddd eeee", "b": "1111 2222 3333"}`)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "a: eeee\nb: 3333\n", chunks[2])
}

func TestChunker_JSONArray(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(0))

	chunks, err := c.Chunk(`[{"k": "v1"}, {"k": "v2"}]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"k: v1\n", "k: v2\n"}, chunks)
}

func TestChunker_JSONFallsBackToText(t *testing.T) {
	c := NewChunker(WithChunkSize(100), WithChunkOverlap(0))

	for _, in := range []string{`[1, 2, 3]`, `"just a string"`, `{"broken": 1`} {
		chunks, err := c.Chunk(in)
		require.NoError(t, err)
		assert.Equal(t, []string{in}, chunks)
	}
}

func TestChunker_Errors(t *testing.T) {
	_, err := NewChunker(WithChunkSize(10), WithChunkOverlap(10)).Chunk("text")
	assert.ErrorIs(t, err, rag.ErrInvalidArgument)

	_, err = NewChunker().Chunk(string([]byte{0xff, 0xfe}))
	assert.ErrorIs(t, err, rag.ErrUnsupportedInput)
}

func TestChunker_Empty(t *testing.T) {
	chunks, err := NewChunker().Chunk("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
