package registry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics instruments a registry. A nil *metrics records nothing.
type metrics struct {
	entries      prometheus.Gauge
	builds       *prometheus.CounterVec
	buildLatency prometheus.Histogram
	reuses       prometheus.Counter
	releases     prometheus.Counter
	replacements prometheus.Counter
	evictions    prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	m := &metrics{
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "entries",
			Help:      "Number of shared values held by the registry.",
		}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "builds_total",
			Help:      "Number of values built on first acquisition.",
		}, []string{"result"}),
		buildLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "build_duration_seconds",
			Help:      "Time spent building values.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		reuses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "reuses_total",
			Help:      "Number of acquisitions served by an existing value.",
		}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "releases_total",
			Help:      "Number of released references.",
		}),
		replacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "replacements_total",
			Help:      "Number of values replaced in place.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "evictions_total",
			Help:      "Number of entries evicted regardless of their references.",
		}),
	}
	reg.MustRegister(m.entries, m.builds, m.buildLatency, m.reuses,
		m.releases, m.replacements, m.evictions)
	return m
}

func (m *metrics) setEntries(n int) {
	if m != nil {
		m.entries.Set(float64(n))
	}
}

func (m *metrics) built(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.builds.WithLabelValues(result).Inc()
	m.buildLatency.Observe(d.Seconds())
}

func (m *metrics) reused() {
	if m != nil {
		m.reuses.Inc()
	}
}

func (m *metrics) released() {
	if m != nil {
		m.releases.Inc()
	}
}

func (m *metrics) replaced() {
	if m != nil {
		m.replacements.Inc()
	}
}

func (m *metrics) evicted() {
	if m != nil {
		m.evictions.Inc()
	}
}
