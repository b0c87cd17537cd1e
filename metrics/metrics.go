// Package metrics exposes Prometheus collectors for the scrape pipeline,
// the HTTP API and the database pool.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkbender"

// Metrics holds every collector on its own registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scrapes             *prometheus.CounterVec
	stageDuration       *prometheus.HistogramVec
	newTags             prometheus.Counter
	annotationsInFlight prometheus.Gauge
	httpDuration        *prometheus.HistogramVec

	dbOpen    prometheus.Gauge
	dbInUse   prometheus.Gauge
	dbIdle    prometheus.Gauge
	dbWaits   prometheus.Gauge
	dbRecords prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Scrape requests by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		newTags: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_tags_total",
			Help:      "Tags seen for the first time.",
		}),
		annotationsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "annotations_in_flight",
			Help:      "Annotation calls currently holding a concurrency slot.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		dbOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "open_connections",
			Help: "Open database connections.",
		}),
		dbInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "in_use_connections",
			Help: "Database connections in use.",
		}),
		dbIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "idle_connections",
			Help: "Idle database connections.",
		}),
		dbWaits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "wait_count",
			Help: "Total number of connections waited for.",
		}),
		dbRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "db", Name: "records",
			Help: "Stored scrape records.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scrapes,
		m.stageDuration,
		m.newTags,
		m.annotationsInFlight,
		m.httpDuration,
		m.dbOpen,
		m.dbInUse,
		m.dbIdle,
		m.dbWaits,
		m.dbRecords,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ScrapeOutcome counts one finished scrape
func (m *Metrics) ScrapeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.scrapes.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a pipeline stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// NewTags counts first-seen tags
func (m *Metrics) NewTags(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.newTags.Add(float64(n))
}

// AnnotationStarted and AnnotationFinished track semaphore occupancy
func (m *Metrics) AnnotationStarted() {
	if m == nil {
		return
	}
	m.annotationsInFlight.Inc()
}

func (m *Metrics) AnnotationFinished() {
	if m == nil {
		return
	}
	m.annotationsInFlight.Dec()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// UpdateDBStats copies connection pool statistics into gauges
func (m *Metrics) UpdateDBStats(db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	stats := db.Stats()
	m.dbOpen.Set(float64(stats.OpenConnections))
	m.dbInUse.Set(float64(stats.InUse))
	m.dbIdle.Set(float64(stats.Idle))
	m.dbWaits.Set(float64(stats.WaitCount))
}

// SetRecordCount publishes the number of stored records
func (m *Metrics) SetRecordCount(n int) {
	if m == nil {
		return
	}
	m.dbRecords.Set(float64(n))
}
