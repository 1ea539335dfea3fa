package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_EmptyInput(t *testing.T) {
	assert.Nil(t, ChunkText("", DefaultChunkConfig()))
	assert.Nil(t, ChunkText("   \n\t ", DefaultChunkConfig()))
}

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	chunks := ChunkText("a short document", DefaultChunkConfig())

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0])
}

func TestChunkText_RespectsMaxChars(t *testing.T) {
	text := strings.Repeat("word ", 500)

	chunks := ChunkText(text, DefaultChunkConfig())

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 800)
	}
}

func TestChunkText_PrefersWhitespaceCut(t *testing.T) {
	text := strings.Repeat("alpha beta gamma ", 100)

	chunks := ChunkText(text, ChunkConfig{MaxChars: 100, MinChars: 30, Overlap: 10})

	for _, c := range chunks {
		assert.False(t, strings.HasSuffix(c, "alph"), "chunk should not split mid-word: %q", c)
	}
}

func TestChunkText_OverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("abcdefghij ", 50)

	chunks := ChunkText(text, ChunkConfig{MaxChars: 100, MinChars: 20, Overlap: 20})

	require.Greater(t, len(chunks), 1)
	// The tail of each chunk reappears at the head of the next.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := strings.TrimSpace(prev[len(prev)-10:])
		assert.Contains(t, chunks[i], tail)
	}
}

func TestChunkText_NoWhitespace(t *testing.T) {
	text := strings.Repeat("x", 1000)

	chunks := ChunkText(text, ChunkConfig{MaxChars: 400, MinChars: 100, Overlap: 50})

	require.NotEmpty(t, chunks)
	total := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 400)
		total += len(c)
	}
	assert.GreaterOrEqual(t, total, 1000)
}
