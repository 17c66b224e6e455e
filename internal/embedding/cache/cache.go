package cache

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"argmatch/internal/domain"
)

var bucketName = []byte("embeddings")

// Fingerprinter is implemented by embedders whose vectors depend on fitted or
// loaded state. The fingerprint must change whenever that state does.
type Fingerprinter interface {
	Fingerprint() string
}

// Embedder wraps another embedder and stores its vectors in a BoltDB file,
// keyed by embedder name, fingerprint and text.
type Embedder struct {
	next   domain.Embedder
	db     *bolt.DB
	mu     sync.RWMutex
	hits   int
	misses int
}

// Open opens (or creates) the cache file at path in front of next.
func Open(path string, next domain.Embedder) (*Embedder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Embedder{next: next, db: db}, nil
}

// Name returns the name of the wrapped embedder.
func (c *Embedder) Name() string { return c.next.Name() }

// Prepare prepares the wrapped embedder. Vectors of an earlier state stay in
// the file under their own fingerprint.
func (c *Embedder) Prepare(corpus []string) error { return c.next.Prepare(corpus) }

// Dimension returns the dimension of the wrapped embedder.
func (c *Embedder) Dimension() int { return c.next.Dimension() }

// Embed returns the cached vector for text, computing and storing it on a miss.
func (c *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.key(text)
	var cached []float64
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(key); v != nil {
			var err error
			cached, err = decodeVector(v)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if cached != nil {
		c.count(true)
		return cached, nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.count(false)
	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, encodeVector(vec))
	})
	if err != nil {
		return nil, fmt.Errorf("store embedding: %w", err)
	}
	return vec, nil
}

// Stats returns the number of cache hits and misses since Open.
func (c *Embedder) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Clear removes all cached vectors.
func (c *Embedder) Clear() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

// Close closes the BoltDB file.
func (c *Embedder) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Embedder) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func (c *Embedder) key(text string) []byte {
	h := sha1.New()
	_, _ = io.WriteString(h, c.next.Name())
	_, _ = io.WriteString(h, "|")
	if fp, ok := c.next.(Fingerprinter); ok {
		_, _ = io.WriteString(h, fp.Fingerprint())
	}
	_, _ = io.WriteString(h, "|")
	_, _ = io.WriteString(h, text)
	return []byte(hex.EncodeToString(h.Sum(nil)))
}

func encodeVector(vec []float64) []byte {
	buf := make([]byte, 4+len(vec)*8)
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(vec)))
	off := 4
	for _, v := range vec {
		binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(v))
		off += 8
	}
	return buf
}

// decodeVector copies out of the bolt page, which is only valid inside the transaction.
func decodeVector(data []byte) ([]float64, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cached vector too small: %d bytes", len(data))
	}
	length := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != length*8 {
		return nil, fmt.Errorf("cached vector length mismatch: %d values, %d bytes", length, len(data))
	}
	vec := make([]float64, length)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8 : (i+1)*8]))
	}
	return vec, nil
}
