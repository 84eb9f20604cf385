package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostrboard_cache_requests_total",
		Help: "Query cache lookups by result: hit, miss, shared, error or abandoned",
	}, []string{"result"})

	cacheFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nostrboard_cache_fetch_duration_seconds",
		Help:    "Duration of fetches run on a cache miss",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 3, 5, 10},
	})
)
