package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the engine. When disabled, every
// method is a no-op so callers never need to branch.
type Metrics struct {
	config MetricsConfig

	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	itemsApplied      *prometheus.CounterVec
	itemApplyDuration *prometheus.HistogramVec

	validations        *prometheus.CounterVec
	validationDuration prometheus.Histogram

	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	cacheEntries prometheus.Gauge

	activeRuns prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of execution runs started",
			},
			[]string{"dry_run"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of execution runs completed",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of execution runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		itemsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_applied_total",
				Help:      "Total number of items processed by the executor",
			},
			[]string{"type", "outcome"},
		),
		itemApplyDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "item_apply_duration_seconds",
				Help:      "Duration of per-item apply operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Total number of validation runs by overall status",
			},
			[]string{"status"},
		),
		validationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Duration of validation runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_cache_hits_total",
				Help:      "Total bridge cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bridge_cache_misses_total",
				Help:      "Total bridge cache misses",
			},
		),
		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bridge_cache_entries",
				Help:      "Current number of bridge cache entries",
			},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Number of execution runs currently in flight",
			},
		),
	}

	registry.MustRegister(
		m.runsStarted, m.runsCompleted, m.runDuration,
		m.itemsApplied, m.itemApplyDuration,
		m.validations, m.validationDuration,
		m.cacheHits, m.cacheMisses, m.cacheEntries,
		m.activeRuns,
	)

	return m
}

// Handler returns the HTTP handler exposing the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted records the start of an execution run.
func (m *Metrics) RunStarted(dryRun bool) {
	if m.registry == nil {
		return
	}
	label := "false"
	if dryRun {
		label = "true"
	}
	m.runsStarted.WithLabelValues(label).Inc()
	m.activeRuns.Inc()
}

// RunCompleted records run completion with its outcome and duration.
func (m *Metrics) RunCompleted(outcome string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.runsCompleted.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.activeRuns.Dec()
}

// ItemApplied records one processed item.
func (m *Metrics) ItemApplied(resourceType, outcome string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.itemsApplied.WithLabelValues(resourceType, outcome).Inc()
	m.itemApplyDuration.WithLabelValues(resourceType).Observe(d.Seconds())
}

// ValidationCompleted records one validation run.
func (m *Metrics) ValidationCompleted(status string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.validations.WithLabelValues(status).Inc()
	m.validationDuration.Observe(d.Seconds())
}

// CacheHit records a bridge cache hit.
func (m *Metrics) CacheHit() {
	if m.registry == nil {
		return
	}
	m.cacheHits.Inc()
}

// CacheMiss records a bridge cache miss.
func (m *Metrics) CacheMiss() {
	if m.registry == nil {
		return
	}
	m.cacheMisses.Inc()
}

// CacheEntries sets the current bridge cache entry count.
func (m *Metrics) CacheEntries(n int) {
	if m.registry == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}
