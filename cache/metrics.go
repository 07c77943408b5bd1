package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchscout_cache_hits_total",
		Help: "Cache hits by cache name",
	}, []string{"cache"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchscout_cache_misses_total",
		Help: "Cache misses by cache name",
	}, []string{"cache"})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchscout_cache_evictions_total",
		Help: "Entries evicted under size or count pressure",
	}, []string{"cache"})

	cacheRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patchscout_cache_rejected_total",
		Help: "Entries refused because they exceed the cache capacity",
	}, []string{"cache"})

	cacheBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "patchscout_cache_bytes",
		Help: "Current weighted size of the cache",
	}, []string{"cache"})
)

type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	rejected  prometheus.Counter
	bytes     prometheus.Gauge
}

func metricsFor(name string) *cacheMetrics {
	return &cacheMetrics{
		hits:      cacheHits.WithLabelValues(name),
		misses:    cacheMisses.WithLabelValues(name),
		evictions: cacheEvictions.WithLabelValues(name),
		rejected:  cacheRejected.WithLabelValues(name),
		bytes:     cacheBytes.WithLabelValues(name),
	}
}
