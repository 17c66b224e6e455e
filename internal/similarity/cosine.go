package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"argmatch/internal/domain"
)

// Float is the element type of an embedding vector.
type Float interface {
	~float32 | ~float64
}

// Cosine returns dot(a, b) / (|a| * |b|), accumulated in float64.
// Vectors must be non-empty and of equal length. A zero-norm vector fails
// with domain.ErrZeroVector instead of producing NaN.
func Cosine[T Float](a, b []T) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, domain.ErrEmptyVector
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, domain.ErrZeroVector
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// CosineOrZero is Cosine with a zero-norm vector scored as 0.
func CosineOrZero[T Float](a, b []T) (float64, error) {
	s, err := Cosine(a, b)
	if errors.Is(err, domain.ErrZeroVector) {
		return 0, nil
	}
	return s, err
}

// Scored is a candidate index with its similarity to a query.
type Scored struct {
	Index int
	Score float64
}

// Rank scores every candidate against query and returns them by descending
// similarity. Ties keep candidate order. Zero-norm candidates score 0; a
// zero-norm query is an error.
func Rank[T Float](query []T, candidates [][]T) ([]Scored, error) {
	if isZero(query) {
		if len(query) == 0 {
			return nil, domain.ErrEmptyVector
		}
		return nil, domain.ErrZeroVector
	}
	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		s, err := CosineOrZero(query, c)
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
		out[i] = Scored{Index: i, Score: s}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func isZero[T Float](v []T) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
