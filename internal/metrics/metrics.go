// Package metrics holds the Prometheus collectors for a pipeline process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op, so
// components can be used without a registry in tests.
type Metrics struct {
	Registry *prometheus.Registry

	events        prometheus.Counter
	documents     prometheus.Counter
	embedRequests *prometheus.CounterVec
	embedDuration prometheus.Histogram
	indexSize     prometheus.Gauge
	scores        *prometheus.CounterVec
	briefings     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRunTS     prometheus.Gauge
	httpRequests  *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.events = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moodmap",
		Name:      "events_ingested_total",
		Help:      "Events read from the feed",
	})
	m.documents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "moodmap",
		Name:      "documents_built_total",
		Help:      "Country-day documents produced by aggregation",
	})
	m.embedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodmap",
		Name:      "embedding_requests_total",
		Help:      "Embedding collaborator calls by outcome",
	}, []string{"outcome"})
	m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "moodmap",
		Name:      "embedding_request_duration_seconds",
		Help:      "Latency of embedding collaborator calls",
		Buckets:   prometheus.DefBuckets,
	})
	m.indexSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moodmap",
		Name:      "index_documents",
		Help:      "Documents in the currently published index generation",
	})
	m.scores = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodmap",
		Name:      "mood_scores_total",
		Help:      "Mood scores by category and degraded flag",
	}, []string{"category", "degraded"})
	m.briefings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodmap",
		Name:      "briefings_total",
		Help:      "Briefing assembly outcomes",
	}, []string{"outcome"})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "moodmap",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full pipeline run",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
	m.lastRunTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "moodmap",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the last finished run",
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moodmap",
		Name:      "http_requests_total",
		Help:      "Read API requests by route and status",
	}, []string{"route", "status"})

	m.Registry.MustRegister(
		m.events, m.documents, m.embedRequests, m.embedDuration, m.indexSize,
		m.scores, m.briefings, m.runDuration, m.lastRunTS, m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AddEvents(n int) {
	if m == nil {
		return
	}
	m.events.Add(float64(n))
}

func (m *Metrics) AddDocuments(n int) {
	if m == nil {
		return
	}
	m.documents.Add(float64(n))
}

func (m *Metrics) ObserveEmbed(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.embedRequests.WithLabelValues(outcome).Inc()
	m.embedDuration.Observe(d.Seconds())
}

func (m *Metrics) SetIndexSize(n int) {
	if m == nil {
		return
	}
	m.indexSize.Set(float64(n))
}

func (m *Metrics) ObserveScore(category string, degraded bool) {
	if m == nil {
		return
	}
	d := "false"
	if degraded {
		d = "true"
	}
	m.scores.WithLabelValues(category, d).Inc()
}

func (m *Metrics) ObserveBriefing(outcome string) {
	if m == nil {
		return
	}
	m.briefings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
	m.lastRunTS.Set(float64(time.Now().Unix()))
}

func (m *Metrics) ObserveHTTP(route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, status).Inc()
}
