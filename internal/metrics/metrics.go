// Package metrics exposes the engine's Prometheus instrumentation behind a
// single Metrics value with its own registry.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faqline/faqline/internal/domain"
)

type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	decisionTotal    *prometheus.CounterVec
	decisionLatency  *prometheus.HistogramVec
	decisionDropped  prometheus.Counter
	cacheLookupTotal *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec

	jobTotal    *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqline",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faqline",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "faqline",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	decisionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqline",
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Total answer decisions by branch.",
		},
		[]string{"service", "branch"},
	)
	decisionLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faqline",
			Subsystem: "engine",
			Name:      "decision_latency_seconds",
			Help:      "End-to-end answer latency in seconds by branch.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "branch"},
	)
	decisionDropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "faqline",
			Subsystem: "engine",
			Name:      "decisions_dropped_total",
			Help:      "Decisions dropped because the telemetry buffer was full.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	cacheLookupTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqline",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	providerErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqline",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "External provider failures by provider.",
		},
		[]string{"service", "provider"},
	)
	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faqline",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Background jobs processed by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faqline",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Background job duration in seconds by kind.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "kind"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		decisionTotal,
		decisionLatency,
		decisionDropped,
		cacheLookupTotal,
		providerErrors,
		jobTotal,
		jobDuration,
	)

	return &Metrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		decisionTotal:    decisionTotal,
		decisionLatency:  decisionLatency,
		decisionDropped:  decisionDropped,
		cacheLookupTotal: cacheLookupTotal,
		providerErrors:   providerErrors,
		jobTotal:         jobTotal,
		jobDuration:      jobDuration,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments every request with count, duration and in-flight
// tracking. Path templates keep label cardinality bounded.
func (m *Metrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/tenants/"):
		return "/tenants/{tenant_id}/publish"
	default:
		return path
	}
}

func (m *Metrics) ObserveDecision(decision domain.RetrievalDecision) {
	branch := string(decision.Branch)
	if branch == "" {
		branch = "unknown"
	}
	m.decisionTotal.WithLabelValues("faqline", branch).Inc()
	m.decisionLatency.WithLabelValues("faqline", branch).Observe(float64(decision.LatencyMS) / 1000)
}

func (m *Metrics) DecisionDropped() {
	m.decisionDropped.Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookupTotal.WithLabelValues("faqline", outcome).Inc()
}

func (m *Metrics) ProviderError(provider string) {
	if provider == "" {
		provider = "unknown"
	}
	m.providerErrors.WithLabelValues("faqline", provider).Inc()
}

func (m *Metrics) FinishJob(kind string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.jobTotal.WithLabelValues("faqline", kind, status).Inc()
	m.jobDuration.WithLabelValues("faqline", kind).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
