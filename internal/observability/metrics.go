package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets   = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	remoteDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	bodySizeBuckets       = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the bridge.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Dispatch metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	SessionCache     *prometheus.CounterVec

	// Remote service metrics
	RemoteRequestsTotal   *prometheus.CounterVec
	RemoteRequestDuration *prometheus.HistogramVec
	RemoteRetriesTotal    prometheus.Counter
	CircuitBreakerState   prometheus.Gauge
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outlookbridge_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outlookbridge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outlookbridge_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outlookbridge_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outlookbridge_dispatch_total",
			Help: "Total number of dispatched invocations by outcome.",
		}, []string{"action", "outcome"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outlookbridge_dispatch_duration_seconds",
			Help:    "Time from dispatch to completed reply in seconds.",
			Buckets: remoteDurationBuckets,
		}, []string{"action"}),
		SessionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outlookbridge_session_cache_total",
			Help: "Client session cache lookups by result.",
		}, []string{"result"}),

		RemoteRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outlookbridge_remote_requests_total",
			Help: "Total number of requests sent to the remote OData service.",
		}, []string{"method", "status"}),
		RemoteRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "outlookbridge_remote_request_duration_seconds",
			Help:    "Remote OData request duration in seconds.",
			Buckets: remoteDurationBuckets,
		}, []string{"method"}),
		RemoteRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "outlookbridge_remote_retries_total",
			Help: "Total number of remote request retries.",
		}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outlookbridge_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Dispatch
		m.DispatchTotal,
		m.DispatchDuration,
		m.SessionCache,
		// Remote
		m.RemoteRequestsTotal,
		m.RemoteRequestDuration,
		m.RemoteRetriesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// --- Recording helpers ---
// All helpers are nil-safe so components can run without metrics.

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	if m == nil {
		return
	}
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordDispatch records one dispatched invocation. outcome is "ok",
// "error" or "rejected" (failed before the remote call).
func (m *Metrics) RecordDispatch(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(action, outcome).Inc()
	m.DispatchDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordSessionCacheHit records a reused client session.
func (m *Metrics) RecordSessionCacheHit() {
	if m == nil {
		return
	}
	m.SessionCache.WithLabelValues("hit").Inc()
}

// RecordSessionCacheMiss records a newly built client session.
func (m *Metrics) RecordSessionCacheMiss() {
	if m == nil {
		return
	}
	m.SessionCache.WithLabelValues("miss").Inc()
}

// RecordRemoteRequest records one request to the remote service. A status of
// 0 means no response was received.
func (m *Metrics) RecordRemoteRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RemoteRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RemoteRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRemoteRetry records a remote request retry.
func (m *Metrics) RecordRemoteRetry() {
	if m == nil {
		return
	}
	m.RemoteRetriesTotal.Inc()
}

// SetCircuitBreakerState sets the circuit breaker state.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetCircuitBreakerState(state float64) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Set(state)
}

// --- HTTP Middleware ---

// MetricsMiddleware records request metrics labelled by the chi route
// pattern rather than the raw path.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)

		next.ServeHTTP(rec, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), rec.status, time.Since(start), max(int(r.ContentLength), 0), rec.bytes)
	})
}

// Handler serves the registry for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
