// Package persist defines the persisted state of the similarity index and the
// contract its storage backends fulfil. A backend always reads and writes the
// vector index and its metadata as one pair.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/vocab"
	"ragchat/internal/index/flat"
)

var (
	// ErrNotFound means nothing has been persisted yet.
	ErrNotFound = errors.New("persist: no persisted index")
	// ErrCorrupt means persisted state exists but cannot be used.
	ErrCorrupt = errors.New("persist: corrupt persisted index")
)

// Snapshot is the complete persisted state: vector i of Index belongs to
// Records[i].
type Snapshot struct {
	Index      *flat.Index
	Records    []domain.Chunk
	Vocabulary vocab.Vocabulary
	Trained    bool
}

// Validate checks that the index and metadata line up, that the index has
// the expected dimension (skipped when dim is 0) and that the vocabulary
// ranks are well formed.
func (s *Snapshot) Validate(dim int) error {
	if s.Index == nil {
		return fmt.Errorf("%w: missing index", ErrCorrupt)
	}
	if s.Index.Len() != len(s.Records) {
		return fmt.Errorf("%w: index has %d entries, metadata has %d records", ErrCorrupt, s.Index.Len(), len(s.Records))
	}
	if dim > 0 && s.Index.Dim() != dim {
		return fmt.Errorf("%w: index dimension %d, expected %d", ErrCorrupt, s.Index.Dim(), dim)
	}
	return validateVocabulary(s.Vocabulary)
}

// validateVocabulary requires the ranks to be exactly 0..len-1.
func validateVocabulary(v vocab.Vocabulary) error {
	seen := make([]bool, len(v))
	for term, rank := range v {
		if rank < 0 || rank >= len(v) {
			return fmt.Errorf("%w: term %q has rank %d outside [0, %d)", ErrCorrupt, term, rank, len(v))
		}
		if seen[rank] {
			return fmt.Errorf("%w: rank %d assigned twice", ErrCorrupt, rank)
		}
		seen[rank] = true
	}
	return nil
}

// Store loads and saves snapshots.
type Store interface {
	// Name identifies the backend in logs.
	Name() string
	// Load returns ErrNotFound when nothing is persisted and an error
	// wrapping ErrCorrupt when persisted state is unreadable or inconsistent.
	Load() (*Snapshot, error)
	// Save replaces the persisted state. On failure the previous state is
	// left in place.
	Save(s *Snapshot) error
	// Remove deletes all persisted state. Missing state is not an error.
	Remove() error
	Close() error
}

type metadataDoc struct {
	Metadata   []domain.Chunk   `json:"metadata"`
	Vocabulary vocab.Vocabulary `json:"vocabulary"`
	Trained    *bool            `json:"trained"`
}

// EncodeMetadata serializes the metadata artifact:
// {"metadata": [...], "vocabulary": {...}, "trained": bool}.
func EncodeMetadata(s *Snapshot) ([]byte, error) {
	doc := metadataDoc{
		Metadata:   s.Records,
		Vocabulary: s.Vocabulary,
		Trained:    &s.Trained,
	}
	if doc.Metadata == nil {
		doc.Metadata = []domain.Chunk{}
	}
	if doc.Vocabulary == nil {
		doc.Vocabulary = vocab.Vocabulary{}
	}
	return json.Marshal(doc)
}

// DecodeMetadata parses a metadata artifact into s. A missing field is
// reported as corruption.
func DecodeMetadata(data []byte, s *Snapshot) error {
	var doc metadataDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	switch {
	case doc.Metadata == nil:
		return fmt.Errorf("%w: metadata field missing", ErrCorrupt)
	case doc.Vocabulary == nil:
		return fmt.Errorf("%w: vocabulary field missing", ErrCorrupt)
	case doc.Trained == nil:
		return fmt.Errorf("%w: trained field missing", ErrCorrupt)
	}
	s.Records = doc.Metadata
	s.Vocabulary = doc.Vocabulary
	s.Trained = *doc.Trained
	return nil
}

// DecodeIndex parses a raw index artifact.
func DecodeIndex(data []byte) (*flat.Index, error) {
	x := flat.New(0)
	if err := x.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return x, nil
}
