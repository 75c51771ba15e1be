package cache

import (
	"context"

	"github.com/pissang/little-big-city/pkg/metrics"
)

// Instrumented counts hits, misses and writes of the wrapped store.
type Instrumented struct {
	next TileCache
}

var _ TileCache = (*Instrumented)(nil)

func NewInstrumented(next TileCache) *Instrumented {
	return &Instrumented{next: next}
}

func (c *Instrumented) Get(ctx context.Context, k TileCacheKey) (TileCacheValue, bool, error) {
	v, ok, err := c.next.Get(ctx, k)
	if err == nil {
		if ok {
			metrics.StoreHits.Inc()
		} else {
			metrics.StoreMisses.Inc()
		}
	}
	return v, ok, err
}

func (c *Instrumented) Set(ctx context.Context, k TileCacheKey, v TileCacheValue) error {
	err := c.next.Set(ctx, k, v)
	if err == nil {
		metrics.StoreWrites.Inc()
	}
	return err
}
