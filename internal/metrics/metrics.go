// Package metrics exposes pipeline counters on a dedicated Prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/household-docs/internal/entity"
)

const namespace = "docpipe"

// Metrics implements the pipeline, structurer and cache observers.
type Metrics struct {
	registry *prometheus.Registry

	documentsTotal   *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	attemptsTotal    *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_total",
				Help:      "Documents processed, by type, processing method and success.",
			},
			[]string{"doc_type", "method", "success"},
		),
		documentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_duration_seconds",
				Help:      "End-to-end pipeline duration per document.",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"doc_type"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "structuring_attempts_total",
				Help:      "Model structuring attempts, by model and outcome.",
			},
			[]string{"model", "outcome"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "structuring_attempt_duration_seconds",
				Help:      "Duration of one model call.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"model"},
		),
		cacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "text_cache_hits_total",
			Help:      "Extracted-text cache hits.",
		}),
		cacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "text_cache_misses_total",
			Help:      "Extracted-text cache misses.",
		}),
	}
	m.registry.MustRegister(
		m.documentsTotal,
		m.documentDuration,
		m.attemptsTotal,
		m.attemptDuration,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveDocument(docType entity.DocumentType, method string, success bool, elapsed time.Duration) {
	if method == "" {
		method = "none"
	}
	dt := string(docType)
	if dt == "" {
		dt = "unknown"
	}
	m.documentsTotal.WithLabelValues(dt, method, strconv.FormatBool(success)).Inc()
	m.documentDuration.WithLabelValues(dt).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveAttempt(model, outcome string, elapsed time.Duration) {
	m.attemptsTotal.WithLabelValues(model, outcome).Inc()
	m.attemptDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit()  { m.cacheHitsTotal.Inc() }
func (m *Metrics) CacheMiss() { m.cacheMissesTotal.Inc() }
