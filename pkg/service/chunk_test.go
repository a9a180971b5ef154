package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tj/assert"
)

func TestChunkTextShortPassthrough(t *testing.T) {
	chunks := ChunkText("hello there", 100)

	assert.Equal(t, []string{"hello there"}, chunks)
}

func TestChunkTextSplitsLongText(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := ChunkText(text, 100)

	assert.Len(t, chunks, 3)

	var rebuilt strings.Builder

	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 100)

		_, body, found := strings.Cut(chunk, "\n")
		assert.True(t, found)
		rebuilt.WriteString(body)
	}

	assert.Equal(t, "[1/3]\n", chunks[0][:6])
	assert.Equal(t, "[2/3]\n", chunks[1][:6])
	assert.Equal(t, "[3/3]\n", chunks[2][:6])
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkTextKeepsRunesIntact(t *testing.T) {
	text := strings.Repeat("界", 150)
	chunks := ChunkText(text, 100)

	assert.Len(t, chunks, 2)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
	}
}

func TestChunkTextDefaultLimit(t *testing.T) {
	text := strings.Repeat("b", 1500)
	chunks := ChunkText(text, 0)

	assert.Equal(t, []string{text}, chunks)
}
