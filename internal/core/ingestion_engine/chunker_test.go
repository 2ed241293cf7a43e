package ingestion_engine

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkerWith(size, overlap int) *Chunker {
	cfg := testConfig()
	cfg.ChunkSize = size
	cfg.ChunkOverlap = overlap
	return NewChunker(cfg)
}

func TestChunkHardSplitWithoutSeparators(t *testing.T) {
	text := strings.Repeat("a", 1000)
	chunks := chunkerWith(400, 40).Chunk(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, 400, len(chunks[0]))
	assert.Equal(t, 400, len(chunks[1]))
	assert.Equal(t, 280, len(chunks[2]))
	// Windows start at 0, 360 and 720.
	assert.Equal(t, text[360:760], chunks[1])
	assert.Equal(t, text[720:], chunks[2])
}

func TestChunkEmptyAndBlank(t *testing.T) {
	c := chunkerWith(400, 40)
	assert.Equal(t, []string{}, c.Chunk(""))
	assert.Equal(t, []string{}, c.Chunk("   \n\n \t "))
}

func TestChunkWordsWithOverlap(t *testing.T) {
	chunks := chunkerWith(10, 4).Chunk("aaa bbb ccc ddd eee")
	assert.Equal(t, []string{"aaa bbb", "bbb ccc", "ccc ddd", "ddd eee"}, chunks)
}

func TestChunkPrefersParagraphs(t *testing.T) {
	chunks := chunkerWith(12, 0).Chunk("para one.\n\npara two.")
	assert.Equal(t, []string{"para one.", "para two."}, chunks)
}

func TestChunkFallsBackForLongWords(t *testing.T) {
	chunks := chunkerWith(5, 0).Chunk("abcdefghij klm")
	assert.Equal(t, []string{"abcde", "fghij", "klm"}, chunks)
}

func TestChunkCountsRunes(t *testing.T) {
	chunks := chunkerWith(4, 0).Chunk(strings.Repeat("é", 10))
	require.Len(t, chunks, 3)
	assert.Equal(t, 4, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 4, utf8.RuneCountInString(chunks[1]))
	assert.Equal(t, 2, utf8.RuneCountInString(chunks[2]))
}

func TestChunkDeterministicAndBounded(t *testing.T) {
	text := strings.Repeat("The mitochondria is the powerhouse of the cell.\n", 40) +
		"\n\n" + strings.Repeat("Photosynthesis converts light into chemical energy. ", 30)
	c := chunkerWith(120, 20)

	first := c.Chunk(text)
	second := c.Chunk(text)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	for i, ch := range first {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch), 120, "chunk %d", i)
		assert.NotEqual(t, "", strings.TrimSpace(ch))
		assert.Contains(t, text, ch)
	}
}

func TestChunkOverlapIsSharedSuffix(t *testing.T) {
	words := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		words = append(words, fmt.Sprintf("w%02d", i))
	}
	chunks := chunkerWith(30, 10).Chunk(strings.Join(words, " "))
	require.Greater(t, len(chunks), 1)

	for i := 0; i+1 < len(chunks); i++ {
		prev := strings.Fields(chunks[i])
		next := strings.Fields(chunks[i+1])
		k := slices.Index(prev, next[0])
		require.GreaterOrEqual(t, k, 0, "chunk %d does not overlap chunk %d", i+1, i)

		shared := prev[k:]
		assert.Equal(t, shared, next[:len(shared)])
		assert.LessOrEqual(t, len(strings.Join(shared, " ")), 10)
	}
}
