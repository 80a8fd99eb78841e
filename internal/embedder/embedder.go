// Package embedder provides the dense-embedding client used by ingestion
// and query. The concrete client talks to a local Ollama instance; an LRU
// cache keyed by content hash avoids re-embedding identical text within a
// process lifetime.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/grepvec/grepvec/pkg/types"
)

// Embedder maps batches of text to fixed-dimension vectors.
type Embedder interface {
	// EmbedBatch embeds texts in order. The returned slice has one vector
	// per input, each of exactly Dimension() elements. Service failures
	// are reported as types.ErrInference wraps after bounded retries; a
	// wrong-size vector is a types.ErrDimensionMismatch wrap, never
	// retried.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the configured embedding dimension D.
	Dimension() int

	// Model returns the model identifier.
	Model() string

	Close() error
}

// ValidateBatch rejects empty batches and empty texts before any network
// call is made.
func ValidateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", types.ErrInvalidQueryParams)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", types.ErrInvalidQueryParams, i)
		}
	}
	return nil
}

// ComputeHash computes the SHA-256 hash of text for cache keys.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Cache is an in-memory LRU of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Only reachable with a non-positive size, which we just ruled out.
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so caller mutations cannot
// pollute the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	v, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	cp := make([]float32, len(v))
	copy(cp, v)
	return cp, true
}

// Set stores a vector under the given content hash.
func (c *Cache) Set(hash string, vector []float32) {
	c.cache.Add(hash, vector)
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	return c.cache.Len()
}
