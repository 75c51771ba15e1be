package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pissang/little-big-city/internal/repository/cache"
	"github.com/pissang/little-big-city/pkg/logger"
	"github.com/pissang/little-big-city/pkg/metrics"
	"github.com/pissang/little-big-city/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrUpstreamStatus = errors.New("upstream returned non-200 status")

type TileFetchUseCase struct {
	cache      cache.TileCache
	httpClient *http.Client
	userAgent  string
	logger     logger.Logger
}

func NewTileFetchUseCase(c cache.TileCache, timeout time.Duration, userAgent string, l logger.Logger) *TileFetchUseCase {
	return &TileFetchUseCase{
		cache: c,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		logger:    l,
	}
}

// Fetch returns the encoded tile at url, consulting the raw store under key first.
// Store failures are logged and never fail the fetch.
func (uc *TileFetchUseCase) Fetch(ctx context.Context, url string, key cache.TileCacheKey) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "tile.fetch",
		attribute.String("tile", key.String()),
	)
	defer span.End()

	data, exists, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.logger.Warn("failed to check tile store, will fetch from upstream", "tile", key.String(), "error", err)
	} else if exists && len(data) > 0 {
		uc.logger.Debug("tile store hit", "tile", key.String(), "size", len(data))
		span.SetAttributes(attribute.Bool("tile.store_hit", true))
		return data, nil
	}

	data, err = uc.fetchUpstream(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("tile.size", len(data)))

	if err := uc.cache.Set(ctx, key, data); err != nil {
		uc.logger.Warn("failed to store tile", "tile", key.String(), "error", err)
	}

	return data, nil
}

func (uc *TileFetchUseCase) fetchUpstream(ctx context.Context, url string) ([]byte, error) {
	uc.logger.Debug("fetching from upstream", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", uc.userAgent)

	start := time.Now()
	resp, err := uc.httpClient.Do(req)
	metrics.UpstreamLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to fetch tile from upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	tileData, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}
	metrics.UpstreamRequests.WithLabelValues("ok").Inc()

	uc.logger.Debug("fetched tile from upstream", "url", url, "size", len(tileData))

	return tileData, nil
}

// GetCachedTile returns the stored payload for a tile coordinate, if any.
func (uc *TileFetchUseCase) GetCachedTile(ctx context.Context, x, y, z int) ([]byte, bool, error) {
	key := cache.TileCacheKey{
		X: x,
		Y: y,
		Z: z,
	}

	data, exists, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.logger.Error("tile store lookup failed", "z", z, "x", x, "y", y, "error", err)
		return nil, false, err
	}
	return data, exists, nil
}
