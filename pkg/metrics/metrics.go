// Package metrics exposes prometheus collectors for the refresh container:
// target creations and destructions per name, live target count, and refresh
// cycle counts and durations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the container's prometheus collectors. All methods are
// safe on a nil receiver so callers can leave instrumentation unconfigured.
type Metrics struct {
	created   *prometheus.CounterVec
	destroyed *prometheus.CounterVec
	active    prometheus.Gauge
	refreshes prometheus.Counter
	duration  prometheus.Histogram
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refreshscope",
			Name:      "targets_created_total",
			Help:      "Number of scoped targets realized, per target name.",
		}, []string{"target"}),
		destroyed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refreshscope",
			Name:      "targets_destroyed_total",
			Help:      "Number of scoped targets destroyed, per target name.",
		}, []string{"target"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "refreshscope",
			Name:      "targets_active",
			Help:      "Number of currently realized scoped targets.",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refreshscope",
			Name:      "refreshes_total",
			Help:      "Number of completed refresh cycles.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "refreshscope",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refresh cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{
		m.created, m.destroyed, m.active, m.refreshes, m.duration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// TargetCreated records a realization of the named target.
func (m *Metrics) TargetCreated(name string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(name).Inc()
	m.active.Inc()
}

// TargetDestroyed records a destruction of the named target.
func (m *Metrics) TargetDestroyed(name string) {
	if m == nil {
		return
	}
	m.destroyed.WithLabelValues(name).Inc()
	m.active.Dec()
}

// RefreshCompleted records one refresh cycle and its duration.
func (m *Metrics) RefreshCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.Inc()
	m.duration.Observe(d.Seconds())
}
