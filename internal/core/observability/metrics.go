// Package observability holds the prometheus collectors of a search client.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op, which is
// what Init returns when metrics are disabled.
type Metrics struct {
	searches        *prometheus.CounterVec
	features        *prometheus.CounterVec
	xmlRequests     *prometheus.CounterVec
	metaResponses   prometheus.Counter
	invalidations   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
}

// Init creates the collectors and registers them with reg. It returns nil
// when enabled is false.
func Init(reg prometheus.Registerer, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	m := &Metrics{
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dov_wfs_searches_total",
				Help: "WFS searches started, by typename.",
			},
			[]string{"typename"},
		),
		features: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dov_wfs_features_total",
				Help: "Features returned by WFS searches, by typename.",
			},
			[]string{"typename"},
		),
		xmlRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dov_xml_requests_total",
				Help: "Object XML requests by outcome.",
			},
			[]string{"outcome"},
		),
		metaResponses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dov_meta_responses_total",
				Help: "Metadata responses received (capabilities, schemas, catalogues).",
			},
		),
		invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dov_cache_invalidations_total",
				Help: "Cached object documents dropped by update events, by op.",
			},
			[]string{"op"},
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dov_upstream_latency_seconds",
				Help:    "Latency of upstream calls in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"upstream"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.searches, m.features, m.xmlRequests, m.metaResponses, m.invalidations, m.upstreamLatency)
	}
	return m
}

func (m *Metrics) IncSearch(typename string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(typename).Inc()
}

func (m *Metrics) AddFeatures(typename string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.features.WithLabelValues(typename).Add(float64(n))
}

// IncXML counts an object XML request; outcome is one of requested, hit,
// miss or downloaded.
func (m *Metrics) IncXML(outcome string) {
	if m == nil {
		return
	}
	m.xmlRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncMeta() {
	if m == nil {
		return
	}
	m.metaResponses.Inc()
}

func (m *Metrics) AddInvalidations(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidations.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) ObserveUpstream(upstream string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(upstream).Observe(d.Seconds())
}
