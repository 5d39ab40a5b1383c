package streaming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkText_Reassembles(t *testing.T) {
	t.Setenv("VTAGENT_STREAMING_CHARS_PER_CHUNK", "8")
	content := "the quick brown fox jumps over the lazy dog"

	chunks := ChunkText(content)

	assert.Equal(t, content, strings.Join(chunks, ""))
	for _, c := range chunks[:len(chunks)-1] {
		assert.Len(t, []rune(c), 8)
	}
}

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, ChunkText(""))
}

func TestChunkText_NeverSplitsSurrogatePairs(t *testing.T) {
	t.Setenv("VTAGENT_STREAMING_CHARS_PER_CHUNK", "16")
	content := strings.Repeat("a", 15) + "🙂🙂🙂"

	chunks := ChunkText(content)

	assert.Equal(t, content, strings.Join(chunks, ""))
	for _, c := range chunks {
		for _, r := range c {
			assert.NotEqual(t, rune(0xFFFD), r, "chunk boundary split a multi-byte rune")
		}
	}
}

func TestChunkSize_ClampsEnvOverride(t *testing.T) {
	t.Setenv("VTAGENT_STREAMING_CHARS_PER_CHUNK", "4")
	assert.Equal(t, minCharsPerChunk, chunkSize())

	t.Setenv("VTAGENT_STREAMING_CHARS_PER_CHUNK", "100000")
	assert.Equal(t, maxCharsPerChunk, chunkSize())

	t.Setenv("VTAGENT_STREAMING_CHARS_PER_CHUNK", "not-a-number")
	assert.Equal(t, defaultCharsPerChunk, chunkSize())
}
