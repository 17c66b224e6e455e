package memory

import (
	"errors"
	"fmt"
	"sync"

	"argmatch/internal/domain"
	"argmatch/internal/similarity"
)

// Storage is a simple in-memory key point index using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
	keyPoints []string
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.keyPoints = nil
	return nil
}

func (s *Storage) Upsert(keyPoints []string, vectors [][]float64) error {
	if len(keyPoints) != len(vectors) {
		return errors.New("key points and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: got %d, index holds %d", domain.ErrDimensionMismatch, len(v), s.dimension)
		}
	}
	// replace vectors of key points already present
	pos := make(map[string]int, len(s.keyPoints))
	for i, kp := range s.keyPoints {
		pos[kp] = i
	}
	for i, kp := range keyPoints {
		if j, ok := pos[kp]; ok {
			s.vectors[j] = vectors[i]
			continue
		}
		pos[kp] = len(s.keyPoints)
		s.keyPoints = append(s.keyPoints, kp)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

// Search returns the topK key points most similar to vector. A zero query
// vector fails with domain.ErrZeroVector.
func (s *Storage) Search(vector []float64, topK int) ([]domain.KeyPointMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	if len(s.vectors) == 0 {
		return nil, nil
	}
	ranked, err := similarity.Rank(vector, s.vectors)
	if err != nil {
		return nil, err
	}
	if topK > len(ranked) {
		topK = len(ranked)
	}
	results := make([]domain.KeyPointMatch, 0, topK)
	for _, r := range ranked[:topK] {
		results = append(results, domain.KeyPointMatch{KeyPoint: s.keyPoints[r.Index], Score: r.Score})
	}
	return results, nil
}

// Len returns the number of indexed key points.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keyPoints)
}

func (s *Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.keyPoints = nil
	return nil
}
