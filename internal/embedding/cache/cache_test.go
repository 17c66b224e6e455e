package cache

import (
	"context"
	"path/filepath"
	"testing"

	"argmatch/internal/embedding/tfidf"
)

type countingEmbedder struct {
	calls    int
	prepared int
}

func (e *countingEmbedder) Name() string { return "counting" }
func (e *countingEmbedder) Prepare([]string) error { e.prepared++; return nil }
func (e *countingEmbedder) Dimension() int { return 2 }
func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls++
	return []float64{float64(len(text)), 0.5}, nil
}

func TestEmbedCachesVectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "emb.db")
	next := &countingEmbedder{}
	c, err := Open(path, next)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx := context.Background()
	first, err := c.Embed(ctx, "abc")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := c.Embed(ctx, "abc")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("wrapped embedder called %d times, want 1", next.calls)
	}
	if first[0] != 3 || second[0] != 3 || second[1] != 0.5 {
		t.Fatalf("vectors = %v / %v", first, second)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("Stats() = %d/%d, want 1/1", hits, misses)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// vectors survive reopening
	reopened, err := Open(path, next)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Embed(ctx, "abc"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("wrapped embedder called %d times after reopen, want 1", next.calls)
	}
}

type fittedEmbedder struct {
	countingEmbedder
	fp string
}

func (e *fittedEmbedder) Fingerprint() string { return e.fp }

func TestFingerprintSeparatesModelStates(t *testing.T) {
	next := &fittedEmbedder{fp: "a"}
	c, err := Open(filepath.Join(t.TempDir(), "emb.db"), next)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	steps := []struct {
		fp        string
		wantCalls int
	}{
		{"a", 1},
		{"a", 1},
		{"b", 2},
		{"a", 2},
	}
	for i, s := range steps {
		next.fp = s.fp
		if _, err := c.Embed(ctx, "x"); err != nil {
			t.Fatal(err)
		}
		if next.calls != s.wantCalls {
			t.Fatalf("step %d (fingerprint %q): calls = %d, want %d", i, s.fp, next.calls, s.wantCalls)
		}
	}
}

func TestPrepareKeepsCache(t *testing.T) {
	next := &countingEmbedder{}
	c, err := Open(filepath.Join(t.TempDir(), "emb.db"), next)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	if _, err := c.Embed(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if err := c.Prepare([]string{"x"}); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if _, err := c.Embed(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if next.prepared != 1 || next.calls != 1 {
		t.Fatalf("prepared=%d calls=%d, want 1/1", next.prepared, next.calls)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := c.Embed(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Fatalf("calls after Clear = %d, want 2", next.calls)
	}
}

func TestLoadedModelDoesNotReuseOtherVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emb.db")
	ctx := context.Background()

	wide := tfidf.NewEmbedder(0)
	if err := wide.Prepare([]string{"alpha beta", "gamma delta", "epsilon"}); err != nil {
		t.Fatal(err)
	}
	c, err := Open(path, wide)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := c.Embed(ctx, "alpha gamma"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	narrow := tfidf.NewEmbedder(0)
	if err := narrow.Prepare([]string{"alpha", "gamma"}); err != nil {
		t.Fatal(err)
	}
	if err := narrow.Save(dir); err != nil {
		t.Fatal(err)
	}
	loaded := tfidf.NewEmbedder(0)
	if err := loaded.Load(dir); err != nil {
		t.Fatal(err)
	}
	c, err = Open(path, loaded)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer c.Close()
	vec, err := c.Embed(ctx, "alpha gamma")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != loaded.Dimension() {
		t.Fatalf("cached vector dimension = %d, want %d", len(vec), loaded.Dimension())
	}
}

func TestDecodeVectorRejectsCorruptData(t *testing.T) {
	if _, err := decodeVector([]byte{1}); err == nil {
		t.Fatalf("decodeVector(short) succeeded")
	}
	buf := encodeVector([]float64{1, 2})
	if _, err := decodeVector(buf[:len(buf)-1]); err == nil {
		t.Fatalf("decodeVector(truncated) succeeded")
	}
}
