package imagecache

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeLoaded  = "loaded"
	outcomeFailed  = "failed"
	outcomeTimeout = "timeout"
	outcomeMemo    = "memo"
)

// Metrics counts cache activity. A nil *Metrics is a valid no-op.
type Metrics struct {
	Resolutions *prometheus.CounterVec
	Hits        prometheus.Counter
	Coalesced   prometheus.Counter
}

// NewMetrics registers the cache counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mindtrail_image_resolutions_total",
				Help: "Image resolutions by outcome (loaded, failed, timeout, memo)",
			},
			[]string{"outcome"},
		),
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mindtrail_image_cache_hits_total",
			Help: "Resolve calls answered from a resolved entry",
		}),
		Coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mindtrail_image_cache_coalesced_total",
			Help: "Resolve calls that joined an in-flight resolution",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Resolutions, m.Hits, m.Coalesced)
	}
	return m
}

func (m *Metrics) hit() {
	if m == nil {
		return
	}
	m.Hits.Inc()
}

func (m *Metrics) coalesce() {
	if m == nil {
		return
	}
	m.Coalesced.Inc()
}

func (m *Metrics) resolved(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}
