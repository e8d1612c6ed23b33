package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus instruments on a private
// registry so tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal     *prometheus.CounterVec
	LookupDuration  prometheus.Histogram
	LookupFailures  prometheus.Counter
	CacheHitRate    prometheus.Gauge
	CacheSize       prometheus.Gauge
	AuditDropsTotal prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fraudguard_checks_total",
			Help: "Classification calls by verdict tier.",
		}, []string{"classification"}),
		LookupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraudguard_ip_lookup_duration_seconds",
			Help:    "Upstream IP reputation lookup latency.",
			Buckets: prometheus.DefBuckets,
		}),
		LookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fraudguard_ip_lookup_failures_total",
			Help: "Upstream IP reputation lookups that degraded to unknown.",
		}),
		CacheHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fraudguard_reputation_cache_hit_rate",
			Help: "Reputation cache hit rate since start.",
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fraudguard_reputation_cache_size",
			Help: "Current reputation cache occupancy.",
		}),
		AuditDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fraudguard_audit_drops_total",
			Help: "Audit events dropped on backpressure.",
		}),
	}

	reg.MustRegister(
		m.ChecksTotal,
		m.LookupDuration,
		m.LookupFailures,
		m.CacheHitRate,
		m.CacheSize,
		m.AuditDropsTotal,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCheck records one finished classification.
func (m *Metrics) ObserveCheck(classification string) {
	m.ChecksTotal.WithLabelValues(classification).Inc()
}

// ObserveLookup records one upstream reputation lookup attempt.
func (m *Metrics) ObserveLookup(d time.Duration) {
	m.LookupDuration.Observe(d.Seconds())
}

// LookupFailure records an upstream lookup that degraded to unknown.
func (m *Metrics) LookupFailure() {
	m.LookupFailures.Inc()
}

// AuditDrop records an audit event dropped on backpressure.
func (m *Metrics) AuditDrop() {
	m.AuditDropsTotal.Inc()
}
