// Package sqlitestore keeps the index and its metadata in a single SQLite
// database and rewrites both inside one transaction.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/vocab"
	"ragchat/internal/index/flat"
	"ragchat/internal/persist"
	"ragchat/internal/vector"
)

const FileName = "index.sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS vectors (
	position INTEGER PRIMARY KEY,
	embedding BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	position INTEGER PRIMARY KEY,
	content TEXT NOT NULL,
	source TEXT NOT NULL,
	type TEXT NOT NULL,
	chunk_id INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS vocabulary (
	term TEXT PRIMARY KEY,
	rank INTEGER NOT NULL
);
`

// Store persists snapshots in dir/index.sqlite.
type Store struct {
	path string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{path: filepath.Join(dir, FileName)}
}

// Name returns the backend name.
func (s *Store) Name() string { return "sqlite" }

// Path returns the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Load reads every table. A missing file is ErrNotFound and is never created.
func (s *Store) Load() (*persist.Snapshot, error) {
	if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persist.ErrNotFound
		}
		return nil, err
	}
	db, err := s.open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", persist.ErrCorrupt, err)
	}
	defer db.Close()

	snap, err := load(context.Background(), db)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", persist.ErrCorrupt, err)
	}
	if err := snap.Validate(0); err != nil {
		return nil, err
	}
	return snap, nil
}

func load(ctx context.Context, db *sql.DB) (*persist.Snapshot, error) {
	state := map[string]string{}
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM state`)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		state[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(state) == 0 {
		return nil, persist.ErrNotFound
	}

	dim, err := strconv.Atoi(state["dimension"])
	if err != nil || dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %q", state["dimension"])
	}
	trained, err := strconv.ParseBool(state["trained"])
	if err != nil {
		return nil, fmt.Errorf("invalid trained flag %q", state["trained"])
	}

	idx := flat.New(dim)
	rows, err = db.QueryContext(ctx, `SELECT position, embedding FROM vectors ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to read vectors: %w", err)
	}
	for rows.Next() {
		var pos int
		var blob []byte
		if err := rows.Scan(&pos, &blob); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan vector: %w", err)
		}
		if pos != idx.Len() {
			rows.Close()
			return nil, fmt.Errorf("vector positions not contiguous at %d", pos)
		}
		v, err := vector.DecodeEmbedding(blob)
		if err == nil {
			err = idx.Add(v)
		}
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("vector %d: %w", pos, err)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var records []domain.Chunk
	rows, err = db.QueryContext(ctx, `SELECT position, content, source, type, chunk_id FROM chunks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	for rows.Next() {
		var pos int
		var c domain.Chunk
		var typ string
		if err := rows.Scan(&pos, &c.Content, &c.Source, &typ, &c.ChunkID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if pos != len(records) {
			rows.Close()
			return nil, fmt.Errorf("chunk positions not contiguous at %d", pos)
		}
		c.Type = domain.DocType(typ)
		records = append(records, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	voc := vocab.Vocabulary{}
	rows, err = db.QueryContext(ctx, `SELECT term, rank FROM vocabulary`)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	for rows.Next() {
		var term string
		var rank int
		if err := rows.Scan(&term, &rank); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan vocabulary: %w", err)
		}
		voc[term] = rank
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if records == nil {
		records = []domain.Chunk{}
	}
	return &persist.Snapshot{Index: idx, Records: records, Vocabulary: voc, Trained: trained}, nil
}

// Save replaces all rows in a single transaction.
func (s *Store) Save(snap *persist.Snapshot) error {
	if err := snap.Validate(0); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := save(ctx, tx, snap); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func save(ctx context.Context, tx *sql.Tx, snap *persist.Snapshot) error {
	for _, table := range []string{"state", "vectors", "chunks", "vocabulary"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	state := map[string]string{
		"dimension": strconv.Itoa(snap.Index.Dim()),
		"trained":   strconv.FormatBool(snap.Trained),
		"count":     strconv.Itoa(snap.Index.Len()),
	}
	for k, v := range state {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("failed to write state: %w", err)
		}
	}

	vecStmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (position, embedding) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector insert: %w", err)
	}
	defer vecStmt.Close()
	for i := 0; i < snap.Index.Len(); i++ {
		if _, err := vecStmt.ExecContext(ctx, i, vector.EncodeEmbedding(snap.Index.Vector(i))); err != nil {
			return fmt.Errorf("failed to insert vector %d: %w", i, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (position, content, source, type, chunk_id) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer chunkStmt.Close()
	for i, c := range snap.Records {
		if _, err := chunkStmt.ExecContext(ctx, i, c.Content, c.Source, string(c.Type), c.ChunkID); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}

	vocabStmt, err := tx.PrepareContext(ctx, `INSERT INTO vocabulary (term, rank) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare vocabulary insert: %w", err)
	}
	defer vocabStmt.Close()
	for term, rank := range snap.Vocabulary {
		if _, err := vocabStmt.ExecContext(ctx, term, rank); err != nil {
			return fmt.Errorf("failed to insert term %q: %w", term, err)
		}
	}
	return nil
}

// Remove deletes the database file and its journal files.
func (s *Store) Remove() error {
	var errs []error
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm", s.path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close is a no-op; the database is opened per operation.
func (s *Store) Close() error { return nil }
