// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion outcomes
const (
	OutcomeCreated   = "created"
	OutcomeAppended  = "appended"
	OutcomeAutoReply = "auto_reply"
	OutcomeUnrouted  = "unrouted"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	ingested         *prometheus.CounterVec
	ingestDuration   prometheus.Histogram
	classifications  *prometheus.CounterVec
	classifyAttempts prometheus.Counter
	classifyDropped  prometheus.Counter
	queueDepth       prometheus.Gauge
	deliveryUpdates  *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from gatherer
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: gatherer,
		ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_ingested_emails_total",
			Help: "Inbound emails processed, by outcome",
		}, []string{"outcome"}),
		ingestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "inbox_ingest_duration_seconds",
			Help:    "Time spent ingesting a single inbound email",
			Buckets: prometheus.DefBuckets,
		}),
		classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_classifications_total",
			Help: "Thread classification jobs, by result",
		}, []string{"result"}),
		classifyAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox_classification_attempts_total",
			Help: "Calls made to the classification service including retries",
		}),
		classifyDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "inbox_classification_dropped_total",
			Help: "Classification jobs dropped because the queue was full",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "inbox_classification_queue_depth",
			Help: "Classification jobs waiting for a worker",
		}),
		deliveryUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_delivery_updates_total",
			Help: "Delivery status callbacks, by result",
		}, []string{"result"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbox_team_cache_lookups_total",
			Help: "Team cache lookups, by result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIngest records one ingestion outcome and its duration
func (m *Metrics) ObserveIngest(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(outcome).Inc()
	m.ingestDuration.Observe(took.Seconds())
}

// ClassificationAttempt counts one call to the classification service
func (m *Metrics) ClassificationAttempt() {
	if m == nil {
		return
	}
	m.classifyAttempts.Inc()
}

// ClassificationResult counts a finished job as "success", "failed" or "panic"
func (m *Metrics) ClassificationResult(result string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(result).Inc()
}

// ClassificationDropped counts a job rejected by a full queue
func (m *Metrics) ClassificationDropped() {
	if m == nil {
		return
	}
	m.classifyDropped.Inc()
}

// SetQueueDepth reports the number of queued classification jobs
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// DeliveryUpdate counts a delivery callback as "updated", "unknown_message", "unknown_status" or "error"
func (m *Metrics) DeliveryUpdate(result string) {
	if m == nil {
		return
	}
	m.deliveryUpdates.WithLabelValues(result).Inc()
}

// CacheLookup counts a team cache lookup as "hit" or "miss"
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}
