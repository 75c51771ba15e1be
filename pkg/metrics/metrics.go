package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Raw tile store
	StoreHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tile_store_hits_total",
		Help: "Total number of raw tile store hits",
	})

	StoreMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tile_store_misses_total",
		Help: "Total number of raw tile store misses",
	})

	StoreWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tile_store_writes_total",
		Help: "Total number of raw tile store write operations",
	})

	// Decoded feature cache
	FeatureCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feature_cache_hits_total",
		Help: "Total number of decoded feature cache hits",
	})

	FeatureCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feature_cache_misses_total",
		Help: "Total number of decoded feature cache misses",
	})

	FeatureCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feature_cache_evictions_total",
		Help: "Total number of decoded feature cache evictions",
	})

	// Upstream
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Total number of upstream vector tile requests by result",
	}, []string{"result"})

	UpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "upstream_latency_seconds",
		Help:    "Latency of upstream vector tile fetches in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Pipeline
	PassesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_passes_total",
		Help: "Total number of regeneration passes started",
	})

	TileResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_tile_results_total",
		Help: "Total number of tile pipeline outcomes",
	}, []string{"outcome"})

	Commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_commits_total",
		Help: "Total number of meshes committed to the scene",
	}, []string{"node"})

	TessellatedVertices = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_tessellated_vertices_total",
		Help: "Total number of vertices added by adaptive tessellation",
	})

	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_build_duration_seconds",
		Help:    "Duration of per tile mesh builds in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"kind"})

	// Redis metrics
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redis_operation_duration_seconds",
		Help:    "Duration of Redis operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"operation"})

	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redis_errors_total",
		Help: "Total number of Redis errors",
	}, []string{"operation"})
)
