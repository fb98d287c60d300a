package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "notify_dispatch"

// Metrics stores Prometheus collectors used by the HTTP surface and the dispatch pipeline.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	dispatchesTotal         *prometheus.CounterVec
	providerAttemptsTotal   *prometheus.CounterVec
	providerAttemptDuration *prometheus.HistogramVec
	providerUnhealthy       *prometheus.GaugeVec
	failureLogRecordsTotal  *prometheus.CounterVec
	asyncInflight           prometheus.Gauge
	failureLogPending       prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "dispatches_total",
				Help:      "Total number of dispatches by notification kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		providerAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "provider_attempts_total",
				Help:      "Total number of provider attempts by provider and result.",
			},
			[]string{"provider", "result"},
		),
		providerAttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "provider_attempt_duration_seconds",
				Help:      "Provider send duration in seconds grouped by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		providerUnhealthy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "provider_unhealthy",
				Help:      "1 when a provider has been flagged unhealthy after an auth failure.",
			},
			[]string{"provider"},
		),
		failureLogRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "failure_log_records_total",
				Help:      "Total number of failure log writes by result.",
			},
			[]string{"result"},
		),
		asyncInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "async_dispatch_inflight",
				Help:      "Current number of in-flight asynchronous dispatches.",
			},
		),
		failureLogPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "failure_log_pending",
				Help:      "Unacknowledged failure log entries seen by the last report.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchesTotal,
		m.providerAttemptsTotal,
		m.providerAttemptDuration,
		m.providerUnhealthy,
		m.failureLogRecordsTotal,
		m.asyncInflight,
		m.failureLogPending,
	)

	return m
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil || m.registry == nil {
		return prometheus.DefaultGatherer
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatch(kind string, succeeded bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	m.dispatchesTotal.WithLabelValues(normalizeLabel(kind), outcome).Inc()
}

func (m *Metrics) IncProviderAttempt(provider string, result string) {
	if m == nil {
		return
	}
	m.providerAttemptsTotal.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

func (m *Metrics) ObserveProviderAttemptDuration(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerAttemptDuration.WithLabelValues(normalizeLabel(provider)).Observe(seconds)
}

func (m *Metrics) SetProviderUnhealthy(provider string, unhealthy bool) {
	if m == nil {
		return
	}
	value := 0.0
	if unhealthy {
		value = 1
	}
	m.providerUnhealthy.WithLabelValues(normalizeLabel(provider)).Set(value)
}

func (m *Metrics) IncFailureLogRecord(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "recorded"
	}
	m.failureLogRecordsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncAsyncInFlight() {
	if m == nil {
		return
	}
	m.asyncInflight.Inc()
}

func (m *Metrics) DecAsyncInFlight() {
	if m == nil {
		return
	}
	m.asyncInflight.Dec()
}

func (m *Metrics) SetFailureLogPending(n int) {
	if m == nil {
		return
	}
	m.failureLogPending.Set(float64(n))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
