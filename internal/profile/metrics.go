package profile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the repository's Prometheus collectors.
type Metrics struct {
	cacheRequests *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	cacheSize     prometheus.GaugeFunc
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer, cache ProfileCache) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "learnengine_profile_cache_requests_total",
			Help: "Profile cache lookups by result (hit or miss)",
		}, []string{"result"}),
		storeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "learnengine_profile_store_errors_total",
			Help: "Profile store failures by operation",
		}, []string{"operation"}),
	}
	if cache != nil {
		m.cacheSize = factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "learnengine_profile_cache_entries",
			Help: "Number of cached profiles",
		}, func() float64 { return float64(cache.Len()) })
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.cacheRequests.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.cacheRequests.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) storeError(op string) {
	if m != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}
