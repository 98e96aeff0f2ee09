// Package embedding implements the two-tier embedding cache described in
// §4.2: an in-process LRU (L1) backed by a content-addressed on-disk store
// (L2), wrapping any domain.EmbeddingProvider.
package embedding

import (
	"container/list"
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"memkernel/internal/domain"
)

// cacheEntry is the L1 LRU payload: a cached vector plus the time it was
// written, so TTL expiry can be checked without a separate sweep goroutine.
type cacheEntry struct {
	key       string
	vec       []float32
	expiresAt time.Time
}

// l2Store is satisfied by diskCache; factored out so tests can substitute an
// in-memory fake without touching the filesystem.
type l2Store interface {
	get(key string) ([]float32, bool)
	put(key string, vec []float32) error
}

// CachedEmbedder wraps a domain.EmbeddingProvider with the two-tier cache:
// L1 is an in-memory LRU with a TTL, L2 is a content-addressed disk cache.
// Single-text Embed calls are cached; batch (len > 1) calls pass through to
// the inner provider uncached, since cache keys are per-text.
type CachedEmbedder struct {
	inner  domain.EmbeddingProvider
	l2     l2Store
	maxLen int
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List
}

// NewCachedEmbedder wraps inner with the two-tier embedding cache. l2Dir is
// the directory backing the on-disk L2 tier (one file per MD5 hex key).
// maxLen and ttl are the L1 entry count and time-to-live; per spec they
// should be >= 10000 and >= 24h respectively, but this constructor does not
// itself enforce that floor — config.Validate does.
func NewCachedEmbedder(inner domain.EmbeddingProvider, l2Dir string, maxLen int, ttl time.Duration, logger *slog.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		l2:     newDiskCache(l2Dir),
		maxLen: maxLen,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]*list.Element, maxLen),
		order:  list.New(),
	}
}

// Embed implements domain.EmbeddingProvider. A single-text call is served
// from L1, then L2, then the inner provider (in that order), with every
// miss backfilling the tiers above it.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return c.inner.Embed(ctx, texts)
	}

	key := cacheKey(texts[0])

	if vec, ok := c.getL1(key); ok {
		return [][]float32{vec}, nil
	}

	if vec, ok := c.l2.get(key); ok {
		c.putL1(key, vec)
		return [][]float32{vec}, nil
	}

	result, err := c.inner.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}

	c.putL1(key, result[0])
	// L2 is best-effort (§4.2): a disk-write failure is logged, not fatal —
	// the caller still gets the embedding it asked for.
	if err := c.l2.put(key, result[0]); err != nil {
		c.logger.Warn("L2 embedding cache write failed", "error", err)
	}

	return result, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Name implements domain.EmbeddingProvider.
func (c *CachedEmbedder) Name() string { return c.inner.Name() }

// cacheKey returns the MD5 hex digest used as the cache key for text, per
// §4.2 ("keyed by MD5 of text").
func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) getL1(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.cache, key)
		return nil, false
	}
	c.order.MoveToBack(elem)
	return entry.vec, true
}

func (c *CachedEmbedder) putL1(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if elem, exists := c.cache[key]; exists {
		c.order.MoveToBack(elem)
		entry := elem.Value.(*cacheEntry)
		entry.vec = vec
		entry.expiresAt = expiresAt
		return
	}

	if c.order.Len() >= c.maxLen {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}

	entry := &cacheEntry{key: key, vec: vec, expiresAt: expiresAt}
	c.cache[key] = c.order.PushBack(entry)
}

// Compile-time interface check.
var _ domain.EmbeddingProvider = (*CachedEmbedder)(nil)
