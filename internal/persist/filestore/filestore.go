// Package filestore keeps the index and its metadata as two files in one
// directory and replaces them together.
package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"ragchat/internal/persist"
)

const (
	IndexFile    = "index.bin"
	MetadataFile = "metadata.json"
	backupSuffix = ".bak"
)

// rename is replaced in tests to simulate a failing swap.
var rename = os.Rename

// Store persists snapshots as index.bin and metadata.json.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a store rooted at dir. The directory is created on first save.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Name returns the backend name.
func (s *Store) Name() string { return "file" }

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) indexPath() string { return filepath.Join(s.dir, IndexFile) }
func (s *Store) metaPath() string  { return filepath.Join(s.dir, MetadataFile) }

// Load reads both files. Exactly one of them existing is corruption.
func (s *Store) Load() (*persist.Snapshot, error) {
	s.recoverBackups()

	indexOK, err := exists(s.indexPath())
	if err != nil {
		return nil, err
	}
	metaOK, err := exists(s.metaPath())
	if err != nil {
		return nil, err
	}
	switch {
	case !indexOK && !metaOK:
		return nil, persist.ErrNotFound
	case !indexOK:
		return nil, fmt.Errorf("%w: %s without %s", persist.ErrCorrupt, MetadataFile, IndexFile)
	case !metaOK:
		return nil, fmt.Errorf("%w: %s without %s", persist.ErrCorrupt, IndexFile, MetadataFile)
	}

	raw, err := os.ReadFile(s.indexPath())
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", persist.ErrCorrupt, IndexFile, err)
	}
	idx, err := persist.DecodeIndex(raw)
	if err != nil {
		return nil, err
	}
	meta, err := os.ReadFile(s.metaPath())
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", persist.ErrCorrupt, MetadataFile, err)
	}
	snap := &persist.Snapshot{Index: idx}
	if err := persist.DecodeMetadata(meta, snap); err != nil {
		return nil, err
	}
	if err := snap.Validate(0); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save writes both artifacts to temporary files, moves the current files
// aside, renames the new ones into place and restores the old ones if any
// rename fails.
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
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmpIndex, err := writeTemp(s.dir, IndexFile, raw)
	if err != nil {
		return err
	}
	defer os.Remove(tmpIndex)
	tmpMeta, err := writeTemp(s.dir, MetadataFile, meta)
	if err != nil {
		return err
	}
	defer os.Remove(tmpMeta)

	targets := []struct{ tmp, dst string }{
		{tmpIndex, s.indexPath()},
		{tmpMeta, s.metaPath()},
	}
	var backedUp, placed []string
	restore := func() {
		for _, dst := range placed {
			_ = os.Remove(dst)
		}
		for _, dst := range backedUp {
			if err := rename(dst+backupSuffix, dst); err != nil {
				s.logger.Error("failed to restore backup", "file", dst, "error", err)
			}
		}
	}
	for _, t := range targets {
		ok, err := exists(t.dst)
		if err != nil {
			restore()
			return err
		}
		if !ok {
			continue
		}
		if err := rename(t.dst, t.dst+backupSuffix); err != nil {
			restore()
			return fmt.Errorf("failed to back up %s: %w", filepath.Base(t.dst), err)
		}
		backedUp = append(backedUp, t.dst)
	}
	for _, t := range targets {
		if err := rename(t.tmp, t.dst); err != nil {
			restore()
			return fmt.Errorf("failed to replace %s: %w", filepath.Base(t.dst), err)
		}
		placed = append(placed, t.dst)
	}
	s.dropBackups(backedUp)
	return nil
}

// Remove deletes both artifacts and any leftover backups. Every path is
// attempted; failures are joined.
func (s *Store) Remove() error {
	var errs []error
	for _, p := range []string{
		s.indexPath(), s.metaPath(),
		s.indexPath() + backupSuffix, s.metaPath() + backupSuffix,
	} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close is a no-op; files are opened per operation.
func (s *Store) Close() error { return nil }

// recoverBackups settles the directory after a save that was interrupted
// while swapping files. With both backups present the committed pair is the
// backed-up one unless both new files made it into place. A single backup is
// put back when its live file is missing and dropped when the live pair is
// complete.
func (s *Store) recoverBackups() {
	paths := []string{s.indexPath(), s.metaPath()}
	var live, backup [2]bool
	for i, p := range paths {
		live[i], _ = exists(p)
		backup[i], _ = exists(p + backupSuffix)
	}
	complete := live[0] && live[1]

	switch {
	case backup[0] && backup[1] && complete:
		s.dropBackups(paths)
	case backup[0] && backup[1]:
		for i, p := range paths {
			if !live[i] {
				continue
			}
			if err := os.Remove(p); err != nil {
				s.logger.Warn("failed to remove partial file", "file", p, "error", err)
				return
			}
		}
		for _, p := range paths {
			if err := rename(p+backupSuffix, p); err != nil {
				s.logger.Warn("failed to recover backup", "file", p, "error", err)
				return
			}
		}
		s.logger.Warn("recovered index from backup after interrupted save", "dir", s.dir)
	default:
		for i, p := range paths {
			switch {
			case !backup[i]:
			case complete:
				s.dropBackups([]string{p})
			case !live[i]:
				if err := rename(p+backupSuffix, p); err != nil {
					s.logger.Warn("failed to recover backup", "file", p, "error", err)
					return
				}
				s.logger.Warn("recovered file from backup after interrupted save", "file", p)
			}
		}
	}
}

func (s *Store) dropBackups(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p + backupSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to remove backup", "file", p+backupSuffix, "error", err)
		}
	}
}

func writeTemp(dir, name string, data []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}
	return f.Name(), nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
