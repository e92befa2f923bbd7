// Package boltstore keeps the index and its metadata in a single bbolt file.
// Both artifacts are replaced inside one write transaction.
package boltstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"ragchat/internal/persist"
)

const FileName = "index.db"

var (
	indexBucket    = []byte("index")
	metadataBucket = []byte("metadata")
	indexKey       = []byte("flat")
	metadataKey    = []byte("state")
)

// Store persists snapshots in dir/index.db.
type Store struct {
	path    string
	timeout time.Duration
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName), timeout: 5 * time.Second}
}

// Name returns the backend name.
func (s *Store) Name() string { return "bolt" }

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Load opens the database read-only and decodes both artifacts.
func (s *Store) Load() (*persist.Snapshot, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persist.ErrNotFound
		}
		return nil, err
	}
	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: s.timeout, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", persist.ErrCorrupt, FileName, err)
	}
	defer db.Close()

	var snap *persist.Snapshot
	err = db.View(func(tx *bbolt.Tx) error {
		ib := tx.Bucket(indexBucket)
		mb := tx.Bucket(metadataBucket)
		if ib == nil && mb == nil {
			return persist.ErrNotFound
		}
		if ib == nil || mb == nil {
			return fmt.Errorf("%w: only one of the index and metadata buckets exists", persist.ErrCorrupt)
		}
		raw := ib.Get(indexKey)
		meta := mb.Get(metadataKey)
		if raw == nil || meta == nil {
			return fmt.Errorf("%w: missing index or metadata value", persist.ErrCorrupt)
		}
		idx, err := persist.DecodeIndex(raw)
		if err != nil {
			return err
		}
		snap = &persist.Snapshot{Index: idx}
		return persist.DecodeMetadata(meta, snap)
	})
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(0); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save replaces both buckets in a single transaction.
func (s *Store) Save(snap *persist.Snapshot) error {
	if err := snap.Validate(0); err != nil {
		return err
	}
	raw, err := snap.Index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	meta, err := persist.EncodeMetadata(snap)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: s.timeout})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", FileName, err)
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		for _, kv := range []struct {
			bucket, key, value []byte
		}{
			{indexBucket, indexKey, raw},
			{metadataBucket, metadataKey, meta},
		} {
			if tx.Bucket(kv.bucket) != nil {
				if err := tx.DeleteBucket(kv.bucket); err != nil {
					return fmt.Errorf("failed to clear bucket %s: %w", kv.bucket, err)
				}
			}
			b, err := tx.CreateBucket(kv.bucket)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", kv.bucket, err)
			}
			if err := b.Put(kv.key, kv.value); err != nil {
				return fmt.Errorf("failed to write %s: %w", kv.bucket, err)
			}
		}
		return nil
	})
}

// Remove deletes the database file.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op; the database is opened per operation so other processes
// can read and write between calls.
func (s *Store) Close() error { return nil }
