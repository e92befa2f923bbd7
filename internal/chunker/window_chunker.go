package chunker

import (
	"strings"

	"ragchat/internal/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// WindowChunker cuts text into fixed-size character windows. Consecutive
// windows share overlap characters.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker creates a chunker. Non-positive sizes fall back to the
// defaults and the overlap is clamped below the size.
func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &WindowChunker{size: size, overlap: overlap}
}

// Chunk returns the windows of document in order. Whitespace-only windows
// are skipped and ChunkID counts the emitted chunks.
func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	runes := []rune(document.Content)
	step := c.size - c.overlap
	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		if text := strings.TrimSpace(string(runes[start:end])); text != "" {
			chunks = append(chunks, domain.Chunk{
				Content: text,
				Source:  document.Source,
				Type:    document.Type,
				ChunkID: len(chunks),
			})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
