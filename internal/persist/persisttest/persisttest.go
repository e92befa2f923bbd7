// Package persisttest holds the behaviour every persist.Store must share.
package persisttest

import (
	"errors"
	"testing"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/vocab"
	"ragchat/internal/index/flat"
	"ragchat/internal/persist"
)

// Snapshot builds a consistent snapshot with n entries of dimension dim.
func Snapshot(t *testing.T, dim, n int) *persist.Snapshot {
	t.Helper()
	x := flat.New(dim)
	records := make([]domain.Chunk, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		v[i%dim] = 1
		v[(i+1)%dim] += 0.5
		if err := x.Add(v); err != nil {
			t.Fatalf("add: %v", err)
		}
		typ := domain.DocTypePDF
		if i%2 == 1 {
			typ = domain.DocTypeWebsite
		}
		records[i] = domain.Chunk{Content: "chunk content", Source: "source", Type: typ, ChunkID: i}
	}
	return &persist.Snapshot{
		Index:      x,
		Records:    records,
		Vocabulary: vocab.Vocabulary{"chunk": 0, "content": 1},
		Trained:    n > 0,
	}
}

// Equal fails the test when a and b differ.
func Equal(t *testing.T, want, got *persist.Snapshot) {
	t.Helper()
	if got.Index.Dim() != want.Index.Dim() || got.Index.Len() != want.Index.Len() {
		t.Fatalf("index dim/len = %d/%d, want %d/%d", got.Index.Dim(), got.Index.Len(), want.Index.Dim(), want.Index.Len())
	}
	for i := 0; i < want.Index.Len(); i++ {
		w, g := want.Index.Vector(i), got.Index.Vector(i)
		for j := range w {
			if w[j] != g[j] {
				t.Fatalf("vector %d differs: %v vs %v", i, g, w)
			}
		}
	}
	if len(got.Records) != len(want.Records) {
		t.Fatalf("records = %d, want %d", len(got.Records), len(want.Records))
	}
	for i := range want.Records {
		if got.Records[i] != want.Records[i] {
			t.Fatalf("record %d = %+v, want %+v", i, got.Records[i], want.Records[i])
		}
	}
	if got.Vocabulary.Len() != want.Vocabulary.Len() {
		t.Fatalf("vocabulary = %v, want %v", got.Vocabulary, want.Vocabulary)
	}
	for term, rank := range want.Vocabulary {
		if r, ok := got.Vocabulary.Rank(term); !ok || r != rank {
			t.Fatalf("vocabulary[%q] = %d,%v want %d", term, r, ok, rank)
		}
	}
	if got.Trained != want.Trained {
		t.Fatalf("trained = %v, want %v", got.Trained, want.Trained)
	}
}

// Run exercises a backend. newStore must return a store over fresh, empty
// storage.
func Run(t *testing.T, newStore func(t *testing.T) persist.Store) {
	t.Run("load empty", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		if _, err := s.Load(); !errors.Is(err, persist.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save load", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		want := Snapshot(t, 4, 3)
		if err := s.Save(want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.Load()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		Equal(t, want, got)
	})

	t.Run("save replaces", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		if err := s.Save(Snapshot(t, 4, 5)); err != nil {
			t.Fatal(err)
		}
		want := Snapshot(t, 4, 2)
		want.Vocabulary = vocab.Vocabulary{"other": 0}
		if err := s.Save(want); err != nil {
			t.Fatal(err)
		}
		got, err := s.Load()
		if err != nil {
			t.Fatal(err)
		}
		Equal(t, want, got)
	})

	t.Run("save empty index", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		want := Snapshot(t, 4, 0)
		if err := s.Save(want); err != nil {
			t.Fatal(err)
		}
		got, err := s.Load()
		if err != nil {
			t.Fatal(err)
		}
		Equal(t, want, got)
	})

	t.Run("save rejects misaligned snapshot", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		good := Snapshot(t, 4, 2)
		if err := s.Save(good); err != nil {
			t.Fatal(err)
		}
		bad := Snapshot(t, 4, 2)
		bad.Records = bad.Records[:1]
		if err := s.Save(bad); err == nil {
			t.Fatal("expected error for misaligned snapshot")
		}
		got, err := s.Load()
		if err != nil {
			t.Fatal(err)
		}
		Equal(t, good, got)
	})

	t.Run("remove idempotent", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		if err := s.Save(Snapshot(t, 4, 2)); err != nil {
			t.Fatal(err)
		}
		if err := s.Remove(); err != nil {
			t.Fatalf("first remove: %v", err)
		}
		if err := s.Remove(); err != nil {
			t.Fatalf("second remove: %v", err)
		}
		if _, err := s.Load(); !errors.Is(err, persist.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after remove, got %v", err)
		}
	})
}
