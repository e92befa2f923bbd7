package sqlitestore

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"ragchat/internal/persist"
	"ragchat/internal/persist/persisttest"
)

func TestStore(t *testing.T) {
	persisttest.Run(t, func(t *testing.T) persist.Store {
		return New(t.TempDir())
	})
}

func TestLoadDoesNotCreateFile(t *testing.T) {
	s := New(t.TempDir())
	if _, err := s.Load(); !errors.Is(err, persist.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Fatalf("load created %s", s.Path())
	}
}

func TestLoadGarbageFileIsCorrupt(t *testing.T) {
	s := New(t.TempDir())
	if err := os.WriteFile(s.Path(), []byte("definitely not sqlite, just some bytes that go on for a while"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, persist.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestLoadMisalignedRowsIsCorrupt(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Save(persisttest.Snapshot(t, 4, 3)); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`DELETE FROM chunks WHERE position = 2`); err != nil {
		t.Fatal(err)
	}
	db.Close()
	if _, err := s.Load(); !errors.Is(err, persist.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
