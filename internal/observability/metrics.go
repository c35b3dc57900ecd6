package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
	guardDecisions  *prometheus.CounterVec
	liveConnections prometheus.Gauge
	liveMessages    *prometheus.CounterVec
}

// NewMetrics builds collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses by code",
		}, []string{"method", "path", "code"}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "route_guard_decisions_total",
			Help: "Route guard decisions by action",
		}, []string{"action"}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_connections",
			Help: "Authenticated live-update connections",
		}),
		liveMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "live_messages_sent_total",
			Help: "Live-update messages sent by type",
		}, []string{"type"}),
	}
	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.guardDecisions,
		m.liveConnections,
		m.liveMessages,
		prometheus.NewGoCollector(),
	)
	return m
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(method, path, code).Inc()
}

// RecordGuardDecision counts a route guard outcome.
func (m *Metrics) RecordGuardDecision(action string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(action).Inc()
}

// LiveConnected adjusts the live connection gauge by delta.
func (m *Metrics) LiveConnected(delta int) {
	if m == nil {
		return
	}
	m.liveConnections.Add(float64(delta))
}

// RecordLiveMessage counts an outbound live-update message.
func (m *Metrics) RecordLiveMessage(msgType string) {
	if m == nil {
		return
	}
	m.liveMessages.WithLabelValues(msgType).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
