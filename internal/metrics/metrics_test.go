package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementOutcome("resolved")
	m.IncrementOutcome("resolved")
	m.IncrementOutcome("ambiguous")
	m.IncrementStoreErrors()
	m.IncrementReloads()
	m.ObserveResolveLatency(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("ambiguous")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaxonomyReloads))

	n, err := testutil.GatherAndCount(reg, "taxonid_resolve_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementOutcome("resolved")
		m.IncrementStoreErrors()
		m.IncrementReloads()
		m.ObserveResolveLatency(time.Millisecond)
	})
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
