// Package vectorstore manages the persisted similarity index: it appends
// encoded chunks, answers nearest-neighbour queries and wipes the index.
//
// Every operation reloads the persisted state first, so changes written by
// another process are always observed. Concurrent writers in different
// processes are not merged: the last save wins. Within one process a Manager
// serializes its callers.
package vectorstore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/vocab"
	"ragchat/internal/errortypes"
	"ragchat/internal/index/flat"
	"ragchat/internal/persist"
	"ragchat/internal/vector"
)

// State is the lifecycle state of the in-memory copy of the index.
type State int

const (
	// StateEmpty means nothing is persisted or the persisted state is unusable.
	StateEmpty State = iota
	// StateLoaded means memory mirrors the persisted state.
	StateLoaded
	// StateDirty means memory holds entries that are not yet saved.
	StateDirty
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Manager owns the index, its metadata records and the encoder vocabulary.
type Manager struct {
	mu       sync.Mutex
	store    persist.Store
	logger   *slog.Logger
	dim      int
	maxTerms int

	encoder *vocab.Encoder
	index   *flat.Index
	records []domain.Chunk
	trained bool
	state   State
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDimension sets the embedding dimension.
func WithDimension(d int) Option {
	return func(m *Manager) {
		if d > 0 {
			m.dim = d
		}
	}
}

// WithMaxTerms sets the vocabulary cap.
func WithMaxTerms(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTerms = n
		}
	}
}

// NewManager creates a manager over store. Nothing is read until the first
// operation.
func NewManager(store persist.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		logger:   slog.Default(),
		dim:      vocab.DefaultDimension,
		maxTerms: vocab.DefaultMaxTerms,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "vectorstore", "backend", store.Name())
	m.reset()
	return m
}

// Dimension returns the embedding dimension.
func (m *Manager) Dimension() int { return m.dim }

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) encoderOpts() []vocab.Option {
	return []vocab.Option{vocab.WithDimension(m.dim), vocab.WithMaxTerms(m.maxTerms)}
}

// reset installs a fresh empty index and an empty vocabulary.
func (m *Manager) reset() {
	m.encoder = vocab.NewEncoder(m.encoderOpts()...)
	m.index = flat.New(m.dim)
	m.records = nil
	m.trained = false
	m.state = StateEmpty
}

// load replaces the in-memory state with the persisted one. It reports
// whether a usable index was found; unusable state is logged and treated as
// absent.
func (m *Manager) load() bool {
	snap, err := m.store.Load()
	if err == nil {
		err = snap.Validate(m.dim)
	}
	if err != nil {
		if !errors.Is(err, persist.ErrNotFound) {
			m.logger.Warn("persisted index unusable, treating as absent", "error", err)
		}
		m.reset()
		return false
	}
	m.encoder = vocab.NewEncoderWithVocabulary(snap.Vocabulary, m.encoderOpts()...)
	m.index = snap.Index
	m.records = snap.Records
	m.trained = snap.Trained
	m.state = StateLoaded
	return true
}

func (m *Manager) snapshot() *persist.Snapshot {
	return &persist.Snapshot{
		Index:      m.index,
		Records:    m.records,
		Vocabulary: m.encoder.Vocabulary(),
		Trained:    m.trained,
	}
}

// AddDocuments encodes the chunk contents, appends them to the index in
// order and saves index and metadata together. The first non-empty batch
// ever added fixes the vocabulary. An empty batch succeeds without writing.
// When saving fails the previously persisted state is kept and the returned
// error is a storage error.
func (m *Manager) AddDocuments(chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.logger.With("op", "add", "batch", uuid.NewString())
	m.load()
	if len(chunks) == 0 {
		log.Debug("empty batch, nothing to add")
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	frozen := m.encoder.Frozen()
	vecs := m.encoder.Encode(texts)
	vector.NormalizeBatch(vecs)
	if !frozen {
		log.Info("built vocabulary", "vocabulary", m.encoder.Vocabulary().Len())
	}

	if err := m.index.Add(vecs...); err != nil {
		m.reset()
		return errortypes.InternalError(err, "failed to append vectors")
	}
	m.records = append(append([]domain.Chunk(nil), m.records...), chunks...)
	m.trained = true
	m.state = StateDirty

	if err := m.store.Save(m.snapshot()); err != nil {
		m.reset()
		appErr := errortypes.StorageError(err, "failed to save index").WithField("chunks", len(chunks))
		errortypes.LogError(log, appErr)
		return appErr
	}
	m.state = StateLoaded
	log.Info("added documents", "count", len(chunks), "total", m.index.Len(), "state", m.state)
	return nil
}

// Search returns up to limit chunks by descending cosine similarity to
// query, ties broken by insertion order. An absent or empty index yields an
// empty result. The query never changes the vocabulary.
func (m *Manager) Search(query string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		return nil, errortypes.ValidationError(nil, fmt.Sprintf("limit must be positive, got %d", limit))
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	results := []domain.SearchResult{}
	if !m.load() || m.index.Len() == 0 {
		return results, nil
	}

	q := m.encoder.EncodeFrozen([]string{query})[0]
	vector.Normalize(q)
	k := min(limit, m.index.Len())
	labels, scores, err := m.index.Search(q, k)
	if err != nil {
		return nil, errortypes.InternalError(err, "failed to search index")
	}
	for i, label := range labels {
		if label == flat.NoLabel || label < 0 || label >= len(m.records) {
			continue
		}
		sim := float64(scores[i])
		results = append(results, domain.SearchResult{
			Chunk:      m.records[label],
			Similarity: sim,
			Distance:   1 - sim,
		})
	}
	m.logger.Debug("searched index", "op", "search", "limit", limit, "results", len(results))
	return results, nil
}

// Info reports whether a usable index is persisted and how many entries it
// holds. It never writes.
func (m *Manager) Info() domain.IndexInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.load() {
		return domain.IndexInfo{Exists: false, Count: 0, Dimension: m.dim}
	}
	return domain.IndexInfo{Exists: true, Count: m.index.Len(), Dimension: m.dim}
}

// DeleteAll removes the persisted index and metadata and resets the
// in-memory index and vocabulary. Removing nothing succeeds. The in-memory
// state is reset even when removal fails.
func (m *Manager) DeleteAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.Remove()
	m.reset()
	if err != nil {
		appErr := errortypes.StorageError(err, "failed to delete index")
		errortypes.LogError(m.logger.With("op", "delete"), appErr)
		return appErr
	}
	m.logger.Info("deleted index", "op", "delete")
	return nil
}
