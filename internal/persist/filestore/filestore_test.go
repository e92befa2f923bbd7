package filestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ragchat/internal/persist"
	"ragchat/internal/persist/persisttest"
)

func TestStore(t *testing.T) {
	persisttest.Run(t, func(t *testing.T) persist.Store {
		return New(filepath.Join(t.TempDir(), "faiss_db"), nil)
	})
}

func TestLoadSingleArtifactIsCorrupt(t *testing.T) {
	for _, keep := range []string{IndexFile, MetadataFile} {
		t.Run(keep, func(t *testing.T) {
			dir := t.TempDir()
			s := New(dir, nil)
			if err := s.Save(persisttest.Snapshot(t, 4, 2)); err != nil {
				t.Fatal(err)
			}
			other := MetadataFile
			if keep == MetadataFile {
				other = IndexFile
			}
			if err := os.Remove(filepath.Join(dir, other)); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Load(); !errors.Is(err, persist.ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestLoadGarbageIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	if err := s.Save(persisttest.Snapshot(t, 4, 2)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, persist.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for bad metadata, got %v", err)
	}

	if err := s.Save(persisttest.Snapshot(t, 4, 2)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, IndexFile), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, persist.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for bad index, got %v", err)
	}
}

func TestLoadCountMismatchIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	if err := s.Save(persisttest.Snapshot(t, 4, 3)); err != nil {
		t.Fatal(err)
	}
	meta, err := persist.EncodeMetadata(persisttest.Snapshot(t, 4, 1))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), meta, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); !errors.Is(err, persist.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestSaveFailureKeepsPreviousState(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	prev := persisttest.Snapshot(t, 4, 2)
	if err := s.Save(prev); err != nil {
		t.Fatal(err)
	}

	orig := rename
	defer func() { rename = orig }()
	rename = func(from, to string) error {
		if to == filepath.Join(dir, MetadataFile) && filepath.Ext(from) == ".tmp" {
			return errors.New("injected rename failure")
		}
		return orig(from, to)
	}

	if err := s.Save(persisttest.Snapshot(t, 4, 5)); err == nil {
		t.Fatal("expected save to fail")
	}
	rename = orig

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load after failed save: %v", err)
	}
	persisttest.Equal(t, prev, got)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != IndexFile && e.Name() != MetadataFile {
			t.Errorf("leftover file %s", e.Name())
		}
	}
}

func TestLoadRecoversInterruptedSwap(t *testing.T) {
	prev := persisttest.Snapshot(t, 4, 2)
	next := persisttest.Snapshot(t, 4, 3)

	moveAside := func(t *testing.T, dir string, names ...string) {
		t.Helper()
		for _, name := range names {
			p := filepath.Join(dir, name)
			if err := os.Rename(p, p+backupSuffix); err != nil {
				t.Fatal(err)
			}
		}
	}
	tests := []struct {
		name  string
		crash func(t *testing.T, s *Store)
		want  *persist.Snapshot
	}{
		{
			name: "both files moved aside",
			crash: func(t *testing.T, s *Store) {
				moveAside(t, s.Dir(), IndexFile, MetadataFile)
			},
			want: prev,
		},
		{
			name: "one file moved aside",
			crash: func(t *testing.T, s *Store) {
				moveAside(t, s.Dir(), IndexFile)
			},
			want: prev,
		},
		{
			name: "new index placed without metadata",
			crash: func(t *testing.T, s *Store) {
				moveAside(t, s.Dir(), IndexFile, MetadataFile)
				if err := s.Save(next); err != nil {
					t.Fatal(err)
				}
				if err := os.Remove(filepath.Join(s.Dir(), MetadataFile)); err != nil {
					t.Fatal(err)
				}
			},
			want: prev,
		},
		{
			name: "new pair placed before backups were removed",
			crash: func(t *testing.T, s *Store) {
				moveAside(t, s.Dir(), IndexFile, MetadataFile)
				if err := s.Save(next); err != nil {
					t.Fatal(err)
				}
			},
			want: next,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s := New(dir, nil)
			if err := s.Save(prev); err != nil {
				t.Fatal(err)
			}
			tt.crash(t, s)

			got, err := s.Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			persisttest.Equal(t, tt.want, got)
			for _, name := range []string{IndexFile, MetadataFile} {
				if ok, _ := exists(filepath.Join(dir, name+backupSuffix)); ok {
					t.Errorf("backup of %s left behind", name)
				}
			}
		})
	}
}

func TestRemoveMissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"), nil)
	if err := s.Remove(); err != nil {
		t.Fatalf("remove on missing dir: %v", err)
	}
}
