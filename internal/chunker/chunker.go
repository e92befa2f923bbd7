// Package chunker splits documents into the fragments that get indexed.
package chunker

import (
	"fmt"

	"ragchat/internal/config"
	"ragchat/internal/domain"
)

// New builds the chunker selected by cfg.Type.
func New(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "window", "":
		return NewWindowChunker(cfg.ChunkSize, cfg.ChunkOverlap), nil
	case "sentence":
		return NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	}
	return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
}
