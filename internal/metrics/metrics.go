// Package metrics provides the Prometheus metrics of the routing engine.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RoutingMetrics contains the counters and histograms of derivation,
// geocoding and tree maintenance.
type RoutingMetrics struct {
	DerivationTotal   *prometheus.CounterVec
	GeocoderRequests  *prometheus.CounterVec
	GeocoderCacheHits *prometheus.CounterVec
	RebuildDuration   prometheus.Histogram
	AlarmsMarked      prometheus.Counter
}

// NewRoutingMetrics creates the metrics and registers them on registry.
func NewRoutingMetrics(registry prometheus.Registerer) (*RoutingMetrics, error) {
	m := &RoutingMetrics{
		DerivationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routing_derivations_total",
				Help: "Derivation outcomes partitioned by the strategy that produced them.",
			},
			[]string{"strategy"},
		),
		GeocoderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routing_geocoder_requests_total",
				Help: "Calls to the external geocoder by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		GeocoderCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routing_geocoder_cache_hits_total",
				Help: "Geocoder lookups answered from cache by cache layer.",
			},
			[]string{"layer"},
		),
		RebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "routing_plate_rebuild_duration_seconds",
				Help:    "Time taken to rebuild the group plates.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		AlarmsMarked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "routing_response_expired_marked_total",
				Help: "Record cards flagged with an expired response time.",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.DerivationTotal, m.GeocoderRequests, m.GeocoderCacheHits, m.RebuildDuration, m.AlarmsMarked} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register routing metrics: %w", err)
		}
	}
	return m, nil
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *RoutingMetrics {
	m, err := NewRoutingMetrics(prometheus.NewRegistry())
	if err != nil {
		panic(err)
	}
	return m
}
