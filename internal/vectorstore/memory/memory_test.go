package memory

import (
	"errors"
	"testing"

	"argmatch/internal/domain"
)

var _ domain.KeyPointIndex = (*Storage)(nil)

func TestSearchRanksKeyPoints(t *testing.T) {
	s := NewStorage()
	if err := s.Init(2); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	err := s.Upsert(
		[]string{"kp-x", "kp-y", "kp-xy"},
		[][]float64{{1, 0}, {0, 1}, {1, 1}},
	)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	res, err := s.Search([]float64{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res) != 2 || res[0].KeyPoint != "kp-x" || res[1].KeyPoint != "kp-xy" {
		t.Fatalf("Search = %+v, want [kp-x kp-xy]", res)
	}
	if res[0].Score < res[1].Score {
		t.Fatalf("scores not descending: %+v", res)
	}
}

func TestUpsertReplacesExistingKeyPoint(t *testing.T) {
	s := NewStorage()
	_ = s.Init(2)
	_ = s.Upsert([]string{"kp"}, [][]float64{{1, 0}})
	if err := s.Upsert([]string{"kp"}, [][]float64{{0, 1}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	res, _ := s.Search([]float64{0, 1}, 1)
	if res[0].Score != 1 {
		t.Fatalf("Score = %v, want 1 after replace", res[0].Score)
	}
}

func TestUpsertErrors(t *testing.T) {
	s := NewStorage()
	if err := s.Init(0); err == nil {
		t.Fatalf("Init(0) succeeded")
	}
	_ = s.Init(3)
	if err := s.Upsert([]string{"a", "b"}, [][]float64{{1, 2, 3}}); err == nil {
		t.Fatalf("Upsert with length mismatch succeeded")
	}
	if err := s.Upsert([]string{"a"}, [][]float64{{1, 2}}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Upsert error = %v, want ErrDimensionMismatch", err)
	}
}

func TestSearchEmptyAndClear(t *testing.T) {
	s := NewStorage()
	_ = s.Init(2)
	if res, err := s.Search([]float64{1, 0}, 3); err != nil || len(res) != 0 {
		t.Fatalf("Search on empty index = %v, %v", res, err)
	}
	_ = s.Upsert([]string{"a"}, [][]float64{{1, 0}})
	if _, err := s.Search([]float64{0, 0}, 3); !errors.Is(err, domain.ErrZeroVector) {
		t.Fatalf("Search(zero) error = %v, want ErrZeroVector", err)
	}
	if err := s.Clear(); err != nil || s.Len() != 0 {
		t.Fatalf("Clear = %v, Len = %d", err, s.Len())
	}
}
