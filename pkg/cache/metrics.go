package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by section ("other" for unknown routes)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devlife_cache_hits_total",
			Help: "Total number of response cache hits",
		},
		[]string{"section"},
	)

	// CacheMisses tracks cache misses by section and reason
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devlife_cache_misses_total",
			Help: "Total number of response cache misses",
		},
		[]string{"section", "reason"}, // "absent", "expired", "invalid"
	)

	// CacheSize tracks bytes written to the cache by section
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devlife_cache_size_bytes",
			Help: "Bytes written to the response cache",
		},
		[]string{"section"},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match or If-Modified-Since
	ConditionalRequestsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devlife_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devlife_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devlife_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "index"
	)
)
