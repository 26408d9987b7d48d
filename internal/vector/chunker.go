// Package vector implements the embedding storage and retrieval path: text
// chunking, an in-memory cosine index, batch embedding, and the service that
// ties them to the document store.
package vector

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Default chunking parameters, in runes. Tuned for embedding models that
// work best on passages of a few hundred tokens.
const (
	DefaultChunkSize = 1200
	DefaultOverlap   = 150
)

// Chunker splits document text into passages of bounded size.
// Size caps each chunk in runes; Overlap is carried from the tail of one
// chunk into the head of the next so sentences cut at a boundary stay
// retrievable.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a chunker with the given parameters, falling back to
// defaults for out-of-range values.
func NewChunker(size, overlap int) Chunker {
	return Chunker{Size: size, Overlap: overlap}
}

func (c Chunker) params() (size, overlap int) {
	size = c.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	overlap = c.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return size, overlap
}

// Split breaks text into chunks of at most Size runes. Paragraph boundaries
// are preferred; a paragraph longer than the budget is force-split at rune
// boundaries. Each chunk after the first opens with the last Overlap runes
// of its predecessor.
func (c Chunker) Split(text string) []string {
	size, overlap := c.params()

	// Overlap (plus its joining newline) is carried inside the cap, so
	// packing stops short of it.
	budget := size - overlap
	if overlap > 0 {
		budget--
	}
	if budget <= 0 {
		budget = size
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var packed []string
	var cur []rune
	flush := func() {
		if len(cur) == 0 {
			return
		}
		packed = append(packed, string(cur))
		cur = nil
	}

	for _, p := range paragraphs {
		for _, piece := range splitRunes(p, budget) {
			need := utf8.RuneCountInString(piece)
			if len(cur) > 0 && len(cur)+2+need > budget {
				flush()
			}
			if len(cur) > 0 {
				cur = append(cur, '\n', '\n')
			}
			cur = append(cur, []rune(piece)...)
		}
	}
	flush()

	if overlap == 0 || len(packed) < 2 {
		return packed
	}

	// Prefix every chunk after the first with the tail of the previous
	// packed chunk. The carry comes from the packed text, not the emitted
	// chunk, so overlap never compounds.
	out := make([]string, len(packed))
	out[0] = packed[0]
	for i := 1; i < len(packed); i++ {
		carry := tailRunes(packed[i-1], overlap)
		if carry == "" {
			out[i] = packed[i]
			continue
		}
		out[i] = carry + "\n" + packed[i]
	}
	return out
}

// SheetChunk is one block of spreadsheet rows with its cell-range locator.
type SheetChunk struct {
	Text    string
	Locator string
}

// SplitSheet groups consecutive spreadsheet rows into chunks without ever
// splitting a row. Rows are 1-based; each chunk's locator covers its row
// span, e.g. "Sheet1!A4:A18". A single row larger than the budget becomes
// its own chunk intact.
func (c Chunker) SplitSheet(sheet string, rows []string) []SheetChunk {
	size, _ := c.params()

	var chunks []SheetChunk
	var block []string
	blockLen := 0
	startRow := 1

	flush := func(endRow int) {
		if len(block) == 0 {
			return
		}
		chunks = append(chunks, SheetChunk{
			Text:    strings.Join(block, "\n"),
			Locator: sheetLocator(sheet, startRow, endRow),
		})
		block = nil
		blockLen = 0
	}

	for i, row := range rows {
		rowNum := i + 1
		n := utf8.RuneCountInString(row)
		if blockLen > 0 && blockLen+1+n > size {
			flush(rowNum - 1)
			startRow = rowNum
		}
		if len(block) == 0 {
			startRow = rowNum
		}
		block = append(block, row)
		if blockLen > 0 {
			blockLen++
		}
		blockLen += n
	}
	flush(len(rows))

	return chunks
}

func sheetLocator(sheet string, start, end int) string {
	if start == end {
		return fmt.Sprintf("%s!A%d", sheet, start)
	}
	return fmt.Sprintf("%s!A%d:A%d", sheet, start, end)
}

// splitParagraphs splits on blank lines and drops empty paragraphs.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitRunes hard-splits s into pieces of at most max runes.
func splitRunes(s string, max int) []string {
	runes := []rune(s)
	if len(runes) <= max {
		return []string{s}
	}
	var out []string
	for len(runes) > max {
		out = append(out, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// tailRunes returns the last n runes of s.
func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
