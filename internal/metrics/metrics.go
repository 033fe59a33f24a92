package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultRegistry = prometheus.DefaultRegisterer

// Metrics holds all application metrics.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	cryptoOperations *prometheus.CounterVec
	cryptoDuration   *prometheus.HistogramVec
	cryptoErrors     *prometheus.CounterVec

	rotationsTotal    *prometheus.CounterVec
	rotationFailures  prometheus.Counter
	currentKeyVersion prometheus.Gauge
	rotationActive    prometheus.Gauge
}

// NewMetrics creates a metrics instance on the default registry.
func NewMetrics() *Metrics {
	return newMetricsWithRegistry(defaultRegistry)
}

// newMetricsWithRegistry exists for tests, which need isolated registries.
func newMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		cryptoOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crypto_operations_total",
				Help: "Total number of encryption and decryption operations",
			},
			[]string{"operation", "preset"},
		),
		cryptoDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crypto_operation_duration_seconds",
				Help:    "Encryption and decryption duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "preset"},
		),
		cryptoErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crypto_operation_errors_total",
				Help: "Total number of failed encryption and decryption operations",
			},
			[]string{"operation", "preset", "kind"},
		),
		rotationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "key_rotations_total",
				Help: "Total number of completed key rotations",
			},
			[]string{"reason"},
		),
		rotationFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "key_rotation_failures_total",
				Help: "Total number of failed key rotation attempts",
			},
		),
		currentKeyVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "current_key_version",
				Help: "Version number of the active key pair",
			},
		),
		rotationActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "key_rotation_active",
				Help: "1 while a rotation grace window is open, 0 otherwise",
			},
		),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordCryptoOperation records an encryption or decryption attempt.
// errKind is empty on success.
func (m *Metrics) RecordCryptoOperation(operation, preset string, duration time.Duration, errKind string) {
	m.cryptoOperations.WithLabelValues(operation, preset).Inc()
	m.cryptoDuration.WithLabelValues(operation, preset).Observe(duration.Seconds())
	if errKind != "" {
		m.cryptoErrors.WithLabelValues(operation, preset, errKind).Inc()
	}
}

// RecordRotation records a completed rotation and the new key version.
func (m *Metrics) RecordRotation(reason string, version int) {
	m.rotationsTotal.WithLabelValues(reason).Inc()
	m.currentKeyVersion.Set(float64(version))
}

// RecordRotationFailure records a failed rotation attempt.
func (m *Metrics) RecordRotationFailure() {
	m.rotationFailures.Inc()
}

// SetKeyVersion publishes the active key version.
func (m *Metrics) SetKeyVersion(version int) {
	m.currentKeyVersion.Set(float64(version))
}

// SetRotationActive publishes whether a grace window is open.
func (m *Metrics) SetRotationActive(active bool) {
	if active {
		m.rotationActive.Set(1)
	} else {
		m.rotationActive.Set(0)
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
