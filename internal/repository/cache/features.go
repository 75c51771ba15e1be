package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pissang/little-big-city/internal/vectortile"
	"github.com/pissang/little-big-city/pkg/metrics"
)

const DefaultFeatureCacheSize = 50

// FeatureCache keeps decoded tiles keyed by fetch URL. Entries are only ever
// removed by capacity eviction, least recently used first.
type FeatureCache struct {
	lru *lru.Cache[string, vectortile.Features]

	size      int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type FeatureCacheStats struct {
	Size      int      `json:"size"`
	Capacity  int      `json:"capacity"`
	Hits      uint64   `json:"hits"`
	Misses    uint64   `json:"misses"`
	Evictions uint64   `json:"evictions"`
	Keys      []string `json:"keys"`
}

func NewFeatureCache(size int) (*FeatureCache, error) {
	if size <= 0 {
		size = DefaultFeatureCacheSize
	}

	c := &FeatureCache{size: size}

	l, err := lru.NewWithEvict(size, func(string, vectortile.Features) {
		c.evictions.Add(1)
		metrics.FeatureCacheEvictions.Inc()
	})
	if err != nil {
		return nil, err
	}
	c.lru = l

	return c, nil
}

// Get returns the cached features for url and marks the entry as recently used.
func (c *FeatureCache) Get(url string) (vectortile.Features, bool) {
	f, ok := c.lru.Get(url)
	if ok {
		c.hits.Add(1)
		metrics.FeatureCacheHits.Inc()
	} else {
		c.misses.Add(1)
		metrics.FeatureCacheMisses.Inc()
	}
	return f, ok
}

// Add stores f under url and reports whether an older entry was evicted.
func (c *FeatureCache) Add(url string, f vectortile.Features) bool {
	return c.lru.Add(url, f)
}

func (c *FeatureCache) Contains(url string) bool {
	return c.lru.Contains(url)
}

func (c *FeatureCache) Len() int {
	return c.lru.Len()
}

// Keys returns the cached urls from oldest to newest.
func (c *FeatureCache) Keys() []string {
	return c.lru.Keys()
}

func (c *FeatureCache) Stats() FeatureCacheStats {
	return FeatureCacheStats{
		Size:      c.lru.Len(),
		Capacity:  c.size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Keys:      c.lru.Keys(),
	}
}
