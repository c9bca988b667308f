package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hits counts lookups that found a stored entry.
	Hits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petstore_cache_hits_total",
		Help: "Total number of catalog cache hits",
	})

	// Misses counts lookups without a stored entry.
	Misses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petstore_cache_misses_total",
		Help: "Total number of catalog cache misses",
	})

	// NotModified counts responses answered from a revalidated entry.
	NotModified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petstore_304_responses_total",
		Help: "Total number of 304 Not Modified catalog responses",
	})

	// Errors counts Redis failures by operation (get, set, delete).
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petstore_cache_errors_total",
		Help: "Total number of catalog cache operation errors",
	}, []string{"operation"})
)
