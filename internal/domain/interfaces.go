package domain

import (
	"context"
	"errors"
)

var (
	// ErrDataFormat reports a CSV file that is missing a required column or
	// holds a cell that cannot be parsed into its column type.
	ErrDataFormat = errors.New("data format error")
	// ErrFilesystem wraps failures creating or clearing folders.
	ErrFilesystem = errors.New("filesystem error")
	// ErrNestedEntry is returned when a folder to be emptied holds a subdirectory.
	ErrNestedEntry = errors.New("nested directory entry")
	// ErrZeroVector is returned when a similarity is requested for a zero-norm vector.
	ErrZeroVector = errors.New("zero-norm vector")
	// ErrDimensionMismatch is returned when two vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyVector is returned for zero-length vectors.
	ErrEmptyVector = errors.New("empty vector")
)

// LabeledPair is one row of the argument/key point dataset.
// Topic, KeyPoint, Stance and Score are only set when the file carries those columns.
type LabeledPair struct {
	Topic         string
	KeyPoint      string
	TopicKeyPoint string
	Argument      string
	Label         int
	Stance        string
	Score         float64
	HasScore      bool
}

// InputExample is a text pair with an integer label, shaped for pairwise training.
type InputExample struct {
	Texts [2]string
	Label int
}

// Record is the field-keyed shape of a row used for inspection and evaluation.
type Record struct {
	Argument      string
	TopicKeyPoint string
	Label         int
}

// Example converts the pair into its training shape.
func (p LabeledPair) Example() InputExample {
	return InputExample{Texts: [2]string{p.TopicKeyPoint, p.Argument}, Label: p.Label}
}

// Record converts the pair into its inspection shape.
func (p LabeledPair) Record() Record {
	return Record{Argument: p.Argument, TopicKeyPoint: p.TopicKeyPoint, Label: p.Label}
}

// KeyPointMatch is a key point ranked against an argument.
type KeyPointMatch struct {
	KeyPoint string
	Score    float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// KeyPointIndex holds key point vectors and ranks them against a query vector.
type KeyPointIndex interface {
	Init(dimension int) error
	Upsert(keyPoints []string, vectors [][]float64) error
	Search(vector []float64, topK int) ([]KeyPointMatch, error)
	Clear() error
}
