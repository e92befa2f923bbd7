package boltstore

import (
	"errors"
	"os"
	"testing"
	"time"

	"go.etcd.io/bbolt"

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
	if err := os.WriteFile(s.Path(), []byte("this is not a bolt database"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, persist.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestLoadMissingMetadataBucketIsCorrupt(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Save(persisttest.Snapshot(t, 4, 2)); err != nil {
		t.Fatal(err)
	}
	db, err := bbolt.Open(s.Path(), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return tx.DeleteBucket(metadataBucket) }); err != nil {
		t.Fatal(err)
	}
	db.Close()
	if _, err := s.Load(); !errors.Is(err, persist.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
