package cache

import (
	"github.com/Sternrassler/yfi-proxy/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by endpoint
	CacheHits = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "yfi_cache_hits_total",
			Help: "Total number of quote cache hits",
		},
		[]string{"endpoint"}, // "quote", "quotes", "info"
	)

	// CacheMisses tracks cache misses by endpoint
	CacheMisses = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "yfi_cache_misses_total",
			Help: "Total number of quote cache misses",
		},
		[]string{"endpoint"},
	)

	// CacheEntries tracks the number of stored entries
	CacheEntries = promauto.With(metrics.Registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "yfi_cache_entries",
			Help: "Current number of entries in the quote cache",
		},
	)

	// CacheSharedLoads tracks callers whose miss was served by a shared load
	CacheSharedLoads = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "yfi_cache_shared_loads_total",
			Help: "Total number of cache misses that shared a concurrent load",
		},
	)
)
