package persist

import (
	"errors"
	"testing"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/vocab"
	"ragchat/internal/index/flat"
)

func TestMetadataRoundTrip(t *testing.T) {
	in := &Snapshot{
		Records: []domain.Chunk{
			{Content: "hello world", Source: "a.pdf", Type: domain.DocTypePDF, ChunkID: 0},
			{Content: "second", Source: "https://x", Type: domain.DocTypeWebsite, ChunkID: 3},
		},
		Vocabulary: vocab.Vocabulary{"hello": 0, "world": 1},
		Trained:    true,
	}
	data, err := EncodeMetadata(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Snapshot
	if err := DecodeMetadata(data, &out); err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	if len(out.Records) != 2 || out.Records[1] != in.Records[1] {
		t.Errorf("records = %+v", out.Records)
	}
	if out.Vocabulary.Len() != 2 || !out.Trained {
		t.Errorf("vocabulary=%v trained=%v", out.Vocabulary, out.Trained)
	}
}

func TestEncodeMetadataEmptyStateIsComplete(t *testing.T) {
	data, err := EncodeMetadata(&Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"metadata":[],"vocabulary":{},"trained":false}` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var out Snapshot
	if err := DecodeMetadata(data, &out); err != nil {
		t.Fatalf("empty state should decode: %v", err)
	}
}

func TestDecodeMetadataCorrupt(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"metadata":`,
		"missing metadata": `{"vocabulary":{},"trained":true}`,
		"missing vocab":    `{"metadata":[],"trained":true}`,
		"missing trained":  `{"metadata":[],"vocabulary":{}}`,
		"wrong type":       `{"metadata":"x","vocabulary":{},"trained":true}`,
	}
	for name, data := range cases {
		var s Snapshot
		if err := DecodeMetadata([]byte(data), &s); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", name, err)
		}
	}
}

func TestSnapshotValidate(t *testing.T) {
	x := flat.New(2)
	_ = x.Add([]float32{1, 0})
	s := &Snapshot{Index: x, Records: []domain.Chunk{{Content: "a"}}}
	if err := s.Validate(2); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}
	if err := s.Validate(3); !errors.Is(err, ErrCorrupt) {
		t.Errorf("dimension mismatch: %v", err)
	}
	s.Records = nil
	if err := s.Validate(2); !errors.Is(err, ErrCorrupt) {
		t.Errorf("count mismatch: %v", err)
	}
	if err := (&Snapshot{}).Validate(0); !errors.Is(err, ErrCorrupt) {
		t.Errorf("nil index: %v", err)
	}
}

func TestSnapshotValidateVocabulary(t *testing.T) {
	x := flat.New(2)
	tests := []struct {
		name  string
		vocab vocab.Vocabulary
		ok    bool
	}{
		{"empty", nil, true},
		{"contiguous", vocab.Vocabulary{"cat": 0, "mat": 1}, true},
		{"negative", vocab.Vocabulary{"cat": -1, "mat": 1}, false},
		{"too large", vocab.Vocabulary{"cat": 0, "mat": 2}, false},
		{"duplicate", vocab.Vocabulary{"cat": 1, "mat": 1}, false},
	}
	for _, tt := range tests {
		err := (&Snapshot{Index: x, Vocabulary: tt.vocab}).Validate(2)
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", tt.name, err)
		}
	}
}

func TestDecodeIndexCorrupt(t *testing.T) {
	if _, err := DecodeIndex([]byte("garbage")); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
