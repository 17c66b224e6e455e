package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"argmatch/internal/domain"
)

// Storage is a minimal REST client to Qdrant holding key point vectors.
// It assumes cosine distance and creates the collection if missing.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init drops any existing collection and creates it empty with the given
// vector size.
func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension
	if err := s.deleteCollection(); err != nil {
		return err
	}
	return s.createCollection()
}

// PointID derives a stable point id from the key point text, so that
// upserting the same key point replaces its vector.
func PointID(keyPoint string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(keyPoint)).String()
}

func (s *Storage) Upsert(keyPoints []string, vectors [][]float64) error {
	if len(keyPoints) != len(vectors) {
		return errors.New("key points and vectors length mismatch")
	}
	points := make([]map[string]any, len(keyPoints))
	for i := range keyPoints {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("%w: got %d, collection holds %d", domain.ErrDimensionMismatch, len(vectors[i]), s.dimension)
		}
		points[i] = map[string]any{
			"id":      PointID(keyPoints[i]),
			"vector":  vectors[i],
			"payload": map[string]any{"key_point": keyPoints[i]},
		}
	}
	body := map[string]any{"points": points}
	return s.do(http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body, nil)
}

// Search returns the topK key points closest to vector. Qdrant cannot score a
// zero vector, so that case fails locally with domain.ErrZeroVector.
func (s *Storage) Search(vector []float64, topK int) ([]domain.KeyPointMatch, error) {
	if topK <= 0 {
		topK = 5
	}
	zero := true
	for _, v := range vector {
		if v != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil, domain.ErrZeroVector
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.KeyPointMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		kp, _ := r.Payload["key_point"].(string)
		results = append(results, domain.KeyPointMatch{KeyPoint: kp, Score: r.Score})
	}
	return results, nil
}

// Clear drops the collection and recreates it empty when a dimension is known.
func (s *Storage) Clear() error {
	if err := s.deleteCollection(); err != nil {
		return err
	}
	if s.dimension == 0 {
		return nil
	}
	return s.createCollection()
}

func (s *Storage) createCollection() error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.do(http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

// deleteCollection removes the collection. A missing collection is not an error.
func (s *Storage) deleteCollection() error {
	err := s.do(http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

type statusError struct {
	method, url string
	code        int
	status      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (s *Storage) do(method, url string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
