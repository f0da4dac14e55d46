// Package cache provides a content-addressed cache in front of an Embedder.
//
// Entries are keyed by the SHA-256 of the exact input text (case-sensitive,
// no normalization). Eviction is strictly insertion-order FIFO: once the
// cache holds more than its capacity, the oldest-inserted entry is removed.
// A cache hit does NOT refresh an entry's position, so this is not an LRU
// despite serving a similar purpose. There is no time-based expiry.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"go.uber.org/zap"

	"github.com/recallhq/recall/pkg/embeddings"
)

// DefaultCapacity is the number of entries kept before FIFO eviction starts.
const DefaultCapacity = 1000

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// HitRate returns hits / (hits + misses), or 0 for an unused cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache wraps an Embedder with content-addressed memoization.
// It implements embeddings.Embedder itself so callers can treat it as a
// drop-in provider.
type Cache struct {
	provider embeddings.Embedder
	capacity int
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[string][]float32
	order   *list.List // of string keys, front = oldest insert
	hits    uint64
	misses  uint64
}

// New creates a cache in front of provider. A capacity <= 0 selects
// DefaultCapacity.
func New(provider embeddings.Embedder, capacity int, logger *zap.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		provider: provider,
		capacity: capacity,
		logger:   logger,
		entries:  make(map[string][]float32),
		order:    list.New(),
	}
}

// Embed returns the cached vector for text, computing and storing it on miss.
// The returned slice is a copy; callers may mutate it freely.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := hashKey(text)

	c.mu.Lock()
	if vec, ok := c.entries[key]; ok {
		c.hits++
		out := cloneVector(vec)
		c.mu.Unlock()
		return out, nil
	}
	c.misses++
	c.mu.Unlock()

	// Provider call happens outside the lock so a slow provider doesn't
	// serialize unrelated lookups.
	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent miss for the same text may have inserted already.
	// Overwrite the value without adding a second order entry.
	if _, ok := c.entries[key]; !ok {
		c.order.PushBack(key)
	}
	c.entries[key] = cloneVector(vec)

	for len(c.entries) > c.capacity {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}

	c.logger.Debug("embedding cached",
		zap.Int("size", len(c.entries)),
		zap.Int("dimensions", len(vec)),
	)

	return vec, nil
}

// Stats returns a snapshot of the hit/miss counters and current size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   len(c.entries),
	}
}

// Close releases the underlying provider.
func (c *Cache) Close() error {
	return c.provider.Close()
}

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

var _ embeddings.Embedder = (*Cache)(nil)
