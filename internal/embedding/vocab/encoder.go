package vocab

import "math"

const (
	// DefaultDimension is the length of every embedding vector.
	DefaultDimension = 384
	// DefaultMaxTerms caps the vocabulary size.
	DefaultMaxTerms = 5000
)

// Encoder turns text into fixed-length vectors. Each known term adds its
// term frequency to coordinate rank mod dimension, so colliding terms sum.
// An Encoder is not safe for concurrent use; its owner serializes access.
type Encoder struct {
	dimension  int
	maxTerms   int
	vocabulary Vocabulary
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithDimension sets the vector length.
func WithDimension(d int) Option {
	return func(e *Encoder) {
		if d > 0 {
			e.dimension = d
		}
	}
}

// WithMaxTerms sets the vocabulary cap.
func WithMaxTerms(n int) Option {
	return func(e *Encoder) {
		if n > 0 {
			e.maxTerms = n
		}
	}
}

// NewEncoder creates an encoder with an empty vocabulary.
func NewEncoder(opts ...Option) *Encoder {
	return NewEncoderWithVocabulary(nil, opts...)
}

// NewEncoderWithVocabulary creates an encoder around a previously persisted
// vocabulary. A non-empty vocabulary is frozen.
func NewEncoderWithVocabulary(v Vocabulary, opts ...Option) *Encoder {
	e := &Encoder{dimension: DefaultDimension, maxTerms: DefaultMaxTerms}
	for _, opt := range opts {
		opt(e)
	}
	if v == nil {
		v = Vocabulary{}
	}
	e.vocabulary = v.Clone()
	return e
}

// Dimension returns the vector length.
func (e *Encoder) Dimension() int { return e.dimension }

// Vocabulary returns a copy of the current vocabulary.
func (e *Encoder) Vocabulary() Vocabulary { return e.vocabulary.Clone() }

// Frozen reports whether the vocabulary has been built.
func (e *Encoder) Frozen() bool { return len(e.vocabulary) > 0 }

// BuildVocabulary ranks the terms of texts. It does nothing once the
// vocabulary is non-empty.
func (e *Encoder) BuildVocabulary(texts []string) {
	if e.Frozen() {
		return
	}
	e.vocabulary = build(texts, e.maxTerms)
}

// Encode returns one vector per text, in input order. An empty vocabulary
// is built from texts first.
func (e *Encoder) Encode(texts []string) [][]float32 {
	if !e.Frozen() {
		e.BuildVocabulary(texts)
	}
	return e.EncodeFrozen(texts)
}

// EncodeFrozen encodes texts against the current vocabulary and never
// builds one. With an empty vocabulary every vector is zero.
func (e *Encoder) EncodeFrozen(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out
}

func (e *Encoder) vector(text string) []float32 {
	acc := make([]float64, e.dimension)
	tokens := Tokenize(text)
	if len(tokens) > 0 {
		total := float64(len(tokens))
		counts, order := termCounts(tokens)
		for _, term := range order {
			rank, ok := e.vocabulary[term]
			if !ok {
				continue
			}
			acc[rank%e.dimension] += float64(counts[term]) / total
		}
	}
	norm := 0.0
	for _, x := range acc {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, e.dimension)
	for i, x := range acc {
		if norm > 0 {
			x /= norm
		}
		vec[i] = float32(x)
	}
	return vec
}
