// Package flat implements an exact inner-product index over fixed-length
// float32 vectors. Entries are append-only and addressed by insertion
// position. With unit-normalized vectors the inner product is the cosine
// similarity.
package flat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"ragchat/internal/vector"
)

// NoLabel marks an unfilled result slot.
const NoLabel = -1

var (
	// ErrDimension is returned when a vector does not match the index dimension.
	ErrDimension = errors.New("flat: dimension mismatch")
	// ErrCorrupt is returned when a serialized index cannot be decoded.
	ErrCorrupt = errors.New("flat: corrupt index data")
)

var magic = [8]byte{'R', 'A', 'G', 'F', 'L', 'A', 'T', '1'}

const headerSize = len(magic) + 4 + 8

// Index is a flat inner-product index.
type Index struct {
	dim  int
	vecs [][]float32
}

// New creates an empty index for vectors of length dim.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dim returns the vector length.
func (x *Index) Dim() int { return x.dim }

// Len returns the number of stored vectors.
func (x *Index) Len() int { return len(x.vecs) }

// Vector returns the vector stored at position i.
func (x *Index) Vector(i int) []float32 { return x.vecs[i] }

// Reset drops every stored vector.
func (x *Index) Reset() { x.vecs = nil }

// Add appends copies of vectors in order. Nothing is added if any vector has
// the wrong length.
func (x *Index) Add(vectors ...[]float32) error {
	for j, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("%w: vector %d has %d values, index dim %d", ErrDimension, j, len(v), x.dim)
		}
	}
	for _, v := range vectors {
		x.vecs = append(x.vecs, append([]float32(nil), v...))
	}
	return nil
}

// Search returns exactly k slots ordered by descending inner product with
// query, ties broken by lower position. Slots beyond the stored entries
// carry label NoLabel and score -Inf.
func (x *Index) Search(query []float32, k int) ([]int, []float32, error) {
	if k <= 0 {
		return []int{}, []float32{}, nil
	}
	if len(query) != x.dim {
		return nil, nil, fmt.Errorf("%w: query has %d values, index dim %d", ErrDimension, len(query), x.dim)
	}
	type scored struct {
		pos   int
		score float64
	}
	scoreds := make([]scored, len(x.vecs))
	for j, v := range x.vecs {
		scoreds[j] = scored{pos: j, score: vector.Dot(query, v)}
	}
	sort.SliceStable(scoreds, func(a, b int) bool { return scoreds[a].score > scoreds[b].score })

	labels := make([]int, k)
	scores := make([]float32, k)
	for n := 0; n < k; n++ {
		if n < len(scoreds) {
			labels[n] = scoreds[n].pos
			scores[n] = float32(scoreds[n].score)
			continue
		}
		labels[n] = NoLabel
		scores[n] = float32(math.Inf(-1))
	}
	return labels, scores, nil
}

// MarshalBinary stores: magic, dim(uint32), n(uint64), then n*dim float32,
// all little-endian.
func (x *Index) MarshalBinary() ([]byte, error) {
	out := make([]byte, headerSize, headerSize+len(x.vecs)*x.dim*4)
	copy(out, magic[:])
	binary.LittleEndian.PutUint32(out[8:12], uint32(x.dim))
	binary.LittleEndian.PutUint64(out[12:20], uint64(len(x.vecs)))
	for _, v := range x.vecs {
		out = append(out, vector.EncodeEmbedding(v)...)
	}
	return out, nil
}

// UnmarshalBinary replaces the index contents with the decoded data.
func (x *Index) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if [8]byte(data[:8]) != magic {
		return fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	dim := int(binary.LittleEndian.Uint32(data[8:12]))
	n := binary.LittleEndian.Uint64(data[12:20])
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrCorrupt, dim)
	}
	body := data[headerSize:]
	stride := dim * 4
	if n > uint64(len(body)/stride) || uint64(len(body)) != n*uint64(stride) {
		return fmt.Errorf("%w: %d vectors of dim %d do not fit %d bytes", ErrCorrupt, n, dim, len(body))
	}
	vecs := make([][]float32, n)
	for i := range vecs {
		v, err := vector.DecodeEmbedding(body[i*stride : (i+1)*stride])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		vecs[i] = v
	}
	x.dim = dim
	x.vecs = vecs
	return nil
}
