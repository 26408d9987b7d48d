package vector

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split_Empty(t *testing.T) {
	c := NewChunker(100, 0)
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("  \n\n  \n"))
}

func TestChunker_Split_FitsInOneChunk(t *testing.T) {
	c := NewChunker(200, 20)
	chunks := c.Split("first paragraph\n\nsecond paragraph")

	require.Len(t, chunks, 1)
	assert.Equal(t, "first paragraph\n\nsecond paragraph", chunks[0])
}

func TestChunker_Split_PrefersParagraphBoundaries(t *testing.T) {
	a := strings.Repeat("a", 70)
	b := strings.Repeat("b", 70)
	text := a + "\n\n" + b

	c := NewChunker(100, 0)
	chunks := c.Split(text)

	require.Len(t, chunks, 2)
	assert.Equal(t, a, chunks[0])
	assert.Equal(t, b, chunks[1])
}

func TestChunker_Split_OverlapCarry(t *testing.T) {
	a := strings.Repeat("a", 70)
	b := strings.Repeat("b", 70)
	d := strings.Repeat("d", 70)
	text := a + "\n\n" + b + "\n\n" + d

	c := NewChunker(100, 20)
	chunks := c.Split(text)
	require.Len(t, chunks, 3)

	assert.Equal(t, a, chunks[0])

	// Each chunk after the first opens with the tail of its predecessor,
	// and no chunk exceeds the configured size.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		carry := string(prev[len(prev)-20:])
		assert.True(t, strings.HasPrefix(chunks[i], carry+"\n"),
			"chunk %d should open with the previous tail", i)
	}
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 100, "chunk %d over size", i)
	}
}

func TestChunker_Split_HardCapsLongParagraph(t *testing.T) {
	c := NewChunker(50, 0)
	chunks := c.Split(strings.Repeat("x", 130))

	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50, "chunk %d over size", i)
	}
	assert.Equal(t, 130, utf8.RuneCountInString(strings.Join(chunks, "")))
}

func TestChunker_Split_RuneSafe(t *testing.T) {
	text := strings.Repeat("héllo wörld 試算表 ", 40)

	c := NewChunker(64, 16)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk), "chunk %d is not valid UTF-8", i)
		assert.NotContains(t, chunk, string(utf8.RuneError))
	}
}

func TestChunker_Split_DefaultsApplied(t *testing.T) {
	c := Chunker{} // zero values fall back to defaults
	chunks := c.Split(strings.Repeat("word ", 1000))

	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), DefaultChunkSize, "chunk %d over size", i)
	}
}

func TestChunker_SplitSheet(t *testing.T) {
	rows := []string{
		strings.Repeat("a", 12),
		strings.Repeat("b", 12),
		strings.Repeat("c", 12),
	}

	c := NewChunker(30, 0)
	chunks := c.SplitSheet("Sheet1", rows)

	require.Len(t, chunks, 2)
	assert.Equal(t, rows[0]+"\n"+rows[1], chunks[0].Text)
	assert.Equal(t, "Sheet1!A1:A2", chunks[0].Locator)
	assert.Equal(t, rows[2], chunks[1].Text)
	assert.Equal(t, "Sheet1!A3", chunks[1].Locator)
}

func TestChunker_SplitSheet_KeepsOversizedRowIntact(t *testing.T) {
	row := strings.Repeat("x", 80)

	c := NewChunker(30, 0)
	chunks := c.SplitSheet("Data", []string{row})

	require.Len(t, chunks, 1)
	assert.Equal(t, row, chunks[0].Text)
	assert.Equal(t, "Data!A1", chunks[0].Locator)
}

func TestChunker_SplitSheet_Empty(t *testing.T) {
	c := NewChunker(100, 0)
	assert.Nil(t, c.SplitSheet("Sheet1", nil))
}
