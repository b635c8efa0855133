// Package metrics holds the Prometheus collectors of the resolver service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for taxon resolution. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	// Resolution outcomes: resolved, not_found, ambiguous
	Resolutions *prometheus.CounterVec

	// Store faults surfaced by any lookup
	StoreErrors prometheus.Counter

	// Duration of single name resolutions
	ResolveLatency prometheus.Histogram

	// Taxonomy database replacements picked up by the watcher
	TaxonomyReloads prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "taxonid_resolutions_total",
			Help: "Total name resolutions by outcome",
		}, []string{"outcome"}),

		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "taxonid_store_errors_total",
			Help: "Total taxonomy store faults",
		}),

		ResolveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxonid_resolve_duration_seconds",
			Help:    "Duration of a single name resolution",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		TaxonomyReloads: f.NewCounter(prometheus.CounterOpts{
			Name: "taxonid_taxonomy_reloads_total",
			Help: "Total taxonomy database changes observed on disk",
		}),
	}
}

// IncrementOutcome records a resolution outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Resolutions.WithLabelValues(outcome).Inc()
	}
}

// IncrementStoreErrors records a store fault.
func (m *Metrics) IncrementStoreErrors() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}

// ObserveResolveLatency records how long one resolution took.
func (m *Metrics) ObserveResolveLatency(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}

// IncrementReloads records a taxonomy database change.
func (m *Metrics) IncrementReloads() {
	if m != nil {
		m.TaxonomyReloads.Inc()
	}
}
