package rag

import "strings"

// DefaultChunkSize and DefaultChunkOverlap match the sizes used when
// generating the bundled embedding stores.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// TextChunk is a chunk with its position in the source document. Line
// numbers are 1-based and inclusive.
type TextChunk struct {
	Text      string
	Index     int
	StartLine int
	EndLine   int
}

// Chunker splits text into fixed-size windows with a fixed overlap between
// consecutive windows. The last window may be shorter than ChunkSize.
type Chunker struct {
	ChunkSize int
	Overlap   int
}

// NewChunker creates a chunker, falling back to defaults for non-positive
// sizes and clamping the overlap below the chunk size.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Chunker{ChunkSize: chunkSize, Overlap: overlap}
}

// Split cuts text into windows of ChunkSize characters, each starting
// Overlap characters before the end of the previous one. Concatenating the
// first chunk with every following chunk minus its leading Overlap
// characters reconstructs the input exactly.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= c.ChunkSize {
		return []string{text}
	}

	step := c.ChunkSize - c.Overlap
	var chunks []string
	for start := 0; ; start += step {
		end := start + c.ChunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

// SplitWithLines chunks text line by line, tracking the source line range of
// each chunk. Lines are accumulated until adding the next one would exceed
// the character budget; the following chunk is seeded with the trailing
// Overlap characters of the previous chunk's text. A single line longer
// than ChunkSize produces a chunk that exceeds the budget rather than being
// cut mid-line.
func (c *Chunker) SplitWithLines(text string) []TextChunk {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var chunks []TextChunk
	var b strings.Builder
	startLine := 1
	lastLine := 0

	for i, line := range lines {
		lineNo := i + 1

		if b.Len() > 0 && b.Len()+len(line)+1 > c.ChunkSize {
			chunkText := b.String()
			chunks = append(chunks, TextChunk{
				Text:      chunkText,
				Index:     len(chunks),
				StartLine: startLine,
				EndLine:   lastLine,
			})

			tail := chunkText
			if len(tail) > c.Overlap {
				tail = tail[len(tail)-c.Overlap:]
			}
			b.Reset()
			b.WriteString(tail)
			startLine = lineNo
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
		lastLine = lineNo
	}

	if b.Len() > 0 {
		chunks = append(chunks, TextChunk{
			Text:      b.String(),
			Index:     len(chunks),
			StartLine: startLine,
			EndLine:   lastLine,
		})
	}
	return chunks
}
