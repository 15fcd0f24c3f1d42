// Package chunker splits document text into fixed-size overlapping windows.
package chunker

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/minutes/internal/corpus"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Chunker cuts text into windows of Size runes. Consecutive windows of the
// same document share Overlap runes.
type Chunker struct {
	size    int
	overlap int
}

// New returns a chunker. overlap must be in [0, size).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be in [0, %d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by neighbouring windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts one document. Whitespace-only documents produce no chunks.
// Windows are counted in runes so multi-byte text is never cut mid-character.
func (c *Chunker) Split(doc corpus.RawDocument) []corpus.Chunk {
	if strings.TrimSpace(doc.Content) == "" {
		return nil
	}

	runes := []rune(doc.Content)
	step := c.size - c.overlap
	chunks := make([]corpus.Chunk, 0, len(runes)/step+1)

	for start, idx := 0, 0; ; start, idx = start+step, idx+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, corpus.Chunk{
			ID:         ChunkID(doc, idx),
			Topic:      doc.Topic,
			SourcePath: doc.RelPath,
			Index:      idx,
			Text:       string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// SplitAll splits documents in order. Chunks never span two documents.
func (c *Chunker) SplitAll(docs []corpus.RawDocument) []corpus.Chunk {
	var out []corpus.Chunk
	for _, d := range docs {
		out = append(out, c.Split(d)...)
	}
	return out
}

// ChunkID is "<topic>/<relpath>#<index>".
func ChunkID(doc corpus.RawDocument, index int) string {
	return fmt.Sprintf("%s/%s#%d", doc.Topic, doc.RelPath, index)
}

// Reconstruct joins the chunks of one document back into its text by
// dropping the leading overlap of every chunk after the first.
func Reconstruct(chunks []corpus.Chunk, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		if i == 0 {
			b.WriteString(ch.Text)
			continue
		}
		r := []rune(ch.Text)
		if overlap < len(r) {
			b.WriteString(string(r[overlap:]))
		}
	}
	return b.String()
}
