// Package metrics exports queue, notification and checkpoint measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modq/internal/modq"
)

const namespace = "modq"

// Metrics implements modq.Recorder on its own registry, so several instances
// can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	decisions          *prometheus.CounterVec
	pending            prometheus.Gauge
	secretDiscoveries  prometheus.Counter
	notifications      *prometheus.CounterVec
	checkpointDuration prometheus.Histogram
	checkpointErrors   prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

var _ modq.Recorder = (*Metrics)(nil)

// New creates the collectors on a fresh registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Upload attempts by validation result",
		}, []string{"result"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Reviewer decisions by outcome",
		}, []string{"outcome"}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_submissions",
			Help:      "Submissions waiting for a decision",
		}),
		secretDiscoveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_discoveries_total",
			Help:      "First-time discoveries of the hidden panel",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by event kind and result",
		}, []string{"kind", "result"}),
		checkpointDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_duration_seconds",
			Help:      "Time spent flushing all tables to the store",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		checkpointErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_errors_total",
			Help:      "Flushes that failed for at least one table",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests to the operational HTTP endpoint",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of the operational HTTP endpoint",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SubmissionAttempt(result string) {
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) Decision(outcome modq.Outcome) {
	m.decisions.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) PendingSize(n int) {
	m.pending.Set(float64(n))
}

func (m *Metrics) SecretDiscovery() {
	m.secretDiscoveries.Inc()
}

func (m *Metrics) Notification(kind modq.EventKind, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) Checkpoint(d time.Duration, err error) {
	m.checkpointDuration.Observe(d.Seconds())
	if err != nil {
		m.checkpointErrors.Inc()
	}
}

// Middleware records request counts and latency labelled by chi route pattern,
// which keeps label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
