package qdrant

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"argmatch/internal/domain"
)

var _ domain.KeyPointIndex = (*Storage)(nil)

type recorded struct {
	method, path, apiKey string
	body                 map[string]any
}

// fakeQdrant keeps collection state like a Qdrant server: creating an
// existing collection is a conflict and deleting a missing one is not found.
type fakeQdrant struct {
	mu      sync.Mutex
	search  string
	calls   []recorded
	points  map[string]map[string]bool
	created int
}

func newServer(t *testing.T, search string) (*httptest.Server, *fakeQdrant) {
	t.Helper()
	fq := &fakeQdrant{search: search, points: make(map[string]map[string]bool)}
	srv := httptest.NewServer(http.HandlerFunc(fq.serve))
	t.Cleanup(srv.Close)
	return srv, fq
}

func (fq *fakeQdrant) serve(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path, apiKey: r.Header.Get("api-key")}
	_ = json.NewDecoder(r.Body).Decode(&rec.body)
	fq.mu.Lock()
	defer fq.mu.Unlock()
	fq.calls = append(fq.calls, rec)

	const coll = "/collections/kp"
	switch {
	case r.URL.Path == coll && r.Method == http.MethodPut:
		if _, ok := fq.points["kp"]; ok {
			w.WriteHeader(http.StatusConflict)
			return
		}
		fq.points["kp"] = make(map[string]bool)
		fq.created++
	case r.URL.Path == coll && r.Method == http.MethodDelete:
		if _, ok := fq.points["kp"]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(fq.points, "kp")
	case r.URL.Path == coll+"/points" && r.Method == http.MethodPut:
		pts, ok := fq.points["kp"]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		list, _ := rec.body["points"].([]any)
		for _, p := range list {
			m, _ := p.(map[string]any)
			id, _ := m["id"].(string)
			pts[id] = true
		}
	case r.URL.Path == coll+"/points/search":
		_, _ = w.Write([]byte(fq.search))
		return
	}
	_, _ = w.Write([]byte(`{"result":true}`))
}

func (fq *fakeQdrant) snapshot() []recorded {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	return append([]recorded(nil), fq.calls...)
}

func (fq *fakeQdrant) pointCount() int {
	fq.mu.Lock()
	defer fq.mu.Unlock()
	return len(fq.points["kp"])
}

func TestInitUpsertSearch(t *testing.T) {
	srv, fq := newServer(t, `{"result":[{"score":0.9,"payload":{"key_point":"uniforms reduce bullying"}},{"score":0.1,"payload":{"key_point":"guns kill"}}]}`)
	s := NewStorage(Config{URL: srv.URL, APIKey: "k", Collection: "kp"})

	if err := s.Init(2); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Upsert([]string{"a", "b"}, [][]float64{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	res, err := s.Search([]float64{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res) != 2 || res[0].KeyPoint != "uniforms reduce bullying" || res[0].Score != 0.9 {
		t.Fatalf("Search = %+v", res)
	}

	got := fq.snapshot()
	if len(got) != 4 {
		t.Fatalf("server saw %d calls, want 4", len(got))
	}
	if got[0].method != http.MethodDelete || got[1].method != http.MethodPut || got[1].path != "/collections/kp" || got[1].apiKey != "k" {
		t.Errorf("init calls = %+v, %+v", got[0], got[1])
	}
	points, _ := got[2].body["points"].([]any)
	if len(points) != 2 {
		t.Fatalf("upsert sent %d points, want 2", len(points))
	}
	first, _ := points[0].(map[string]any)
	if first["id"] != PointID("a") {
		t.Errorf("point id = %v, want %s", first["id"], PointID("a"))
	}
	if got[3].body["limit"] != float64(2) {
		t.Errorf("search limit = %v, want 2", got[3].body["limit"])
	}
}

func TestInitOnExistingCollectionReplacesContents(t *testing.T) {
	srv, fq := newServer(t, `{"result":[]}`)
	s := NewStorage(Config{URL: srv.URL, Collection: "kp"})
	if err := s.Init(2); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Upsert([]string{"a", "b"}, [][]float64{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	next := NewStorage(Config{URL: srv.URL, Collection: "kp"})
	if err := next.Init(2); err != nil {
		t.Fatalf("Init on existing collection failed: %v", err)
	}
	if n := fq.pointCount(); n != 0 {
		t.Fatalf("collection holds %d points after Init, want 0", n)
	}
	if err := next.Upsert([]string{"c"}, [][]float64{{1, 1}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if n := fq.pointCount(); n != 1 {
		t.Fatalf("collection holds %d points, want 1", n)
	}
}

func TestPointIDStable(t *testing.T) {
	if PointID("x") != PointID("x") || PointID("x") == PointID("y") {
		t.Fatalf("PointID not stable per key point")
	}
}

func TestLocalValidation(t *testing.T) {
	srv, fq := newServer(t, `{"result":[]}`)
	s := NewStorage(Config{URL: srv.URL, Collection: "kp"})
	if err := s.Init(0); err == nil {
		t.Fatalf("Init(0) succeeded")
	}
	if err := s.Init(2); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Upsert([]string{"a"}, [][]float64{{1, 2, 3}}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("Upsert error = %v, want ErrDimensionMismatch", err)
	}
	if _, err := s.Search([]float64{0, 0}, 3); !errors.Is(err, domain.ErrZeroVector) {
		t.Fatalf("Search error = %v, want ErrZeroVector", err)
	}
	if n := len(fq.snapshot()); n != 2 {
		t.Fatalf("server saw %d calls, want only the two of Init", n)
	}
}

func TestClearRecreatesCollection(t *testing.T) {
	srv, fq := newServer(t, `{"result":[]}`)
	s := NewStorage(Config{URL: srv.URL, Collection: "kp"})
	if err := s.Init(4); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	got := fq.snapshot()
	if len(got) != 4 || got[2].method != http.MethodDelete || got[3].method != http.MethodPut {
		t.Fatalf("calls = %+v", got)
	}
	fq.mu.Lock()
	created := fq.created
	fq.mu.Unlock()
	if created != 2 {
		t.Fatalf("collection created %d times, want 2", created)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	if err := NewStorage(Config{URL: srv.URL, Collection: "kp"}).Init(2); err == nil {
		t.Fatalf("Init succeeded on 400")
	}
}
