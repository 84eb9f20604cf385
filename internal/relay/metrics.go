package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nostrboard_relay_query_duration_seconds",
		Help:    "Duration of a single relay subscription from REQ to EOSE",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
	}, []string{"relay", "outcome"})

	relayDroppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nostrboard_relay_dropped_events_total",
		Help: "Events discarded because they failed shape checks",
	}, []string{"relay"})
)

// outcome labels for relayQueryDuration.
const (
	outcomeOK      = "ok"
	outcomeClosed  = "closed"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)
