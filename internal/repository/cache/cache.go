package cache

import (
	"context"
	"fmt"
)

// TileCacheKey addresses a raw tile payload by its tile coordinate.
type TileCacheKey struct {
	X int
	Y int
	Z int
}

func (k TileCacheKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}

type TileCacheValue []byte

// TileCache stores encoded vector tile payloads between regeneration passes.
type TileCache interface {
	Get(context.Context, TileCacheKey) (TileCacheValue, bool, error)
	Set(context.Context, TileCacheKey, TileCacheValue) error
}

// NopCache never stores anything.
type NopCache struct{}

var _ TileCache = NopCache{}

func (NopCache) Get(context.Context, TileCacheKey) (TileCacheValue, bool, error) {
	return nil, false, nil
}

func (NopCache) Set(context.Context, TileCacheKey, TileCacheValue) error {
	return nil
}
