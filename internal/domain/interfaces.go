package domain

import (
	"context"
	"fmt"
	"strings"
)

// DocType identifies where a document was acquired from.
type DocType string

const (
	DocTypePDF     DocType = "pdf"
	DocTypeWebsite DocType = "website"
)

// ParseDocType converts a user supplied name into a DocType.
func ParseDocType(s string) (DocType, error) {
	switch DocType(strings.ToLower(strings.TrimSpace(s))) {
	case DocTypePDF:
		return DocTypePDF, nil
	case DocTypeWebsite:
		return DocTypeWebsite, nil
	}
	return "", fmt.Errorf("unknown document type %q (want pdf or website)", s)
}

// Document is a single piece of extracted text before chunking.
type Document struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Type    DocType `json:"type"`
}

// Chunk is a contiguous fragment of a document. It is the metadata record
// stored next to each index entry and never changes once created.
type Chunk struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Type    DocType `json:"type"`
	ChunkID int     `json:"chunk_id"`
}

// SearchResult is a matching chunk with its inner-product similarity.
// Distance is always 1 - Similarity.
type SearchResult struct {
	Chunk
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
}

// IndexInfo describes the persisted index.
type IndexInfo struct {
	Exists    bool `json:"exists"`
	Count     int  `json:"count"`
	Dimension int  `json:"dimension"`
}

// Answer is the response to a question asked against the index.
type Answer struct {
	Question string         `json:"question"`
	Text     string         `json:"answer"`
	Context  string         `json:"context,omitempty"`
	Sources  []SearchResult `json:"sources,omitempty"`
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Generator produces an answer for a fully assembled prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
