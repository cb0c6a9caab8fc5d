package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

const namespace = "eteeap"

// PortalClientMetrics records outbound calls to the admissions backend.
type PortalClientMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	contractDrift   *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

func NewPortalClientMetrics(service string) *PortalClientMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "portal",
			Name:        "requests_total",
			Help:        "Total admissions backend calls by operation and outcome.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "portal",
			Name:        "request_duration_seconds",
			Help:        "Admissions backend call duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)
	contractDrift := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "portal",
			Name:        "contract_drift_total",
			Help:        "Responses that did not match the documented schema.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "portal",
			Name:        "circuit_state",
			Help:        "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"operation"},
	)

	registry.MustRegister(requestTotal, requestDuration, contractDrift, breakerState)

	return &PortalClientMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		contractDrift:   contractDrift,
		breakerState:    breakerState,
	}
}

func (m *PortalClientMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PortalClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall records one backend call. statusCode is 0 for transport failures.
func (m *PortalClientMetrics) ObserveCall(operation string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.requestTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PortalClientMetrics) RecordContractDrift(operation string) {
	m.contractDrift.WithLabelValues(operation).Inc()
}

func (m *PortalClientMetrics) SetBreakerState(operation string, state gobreaker.State) {
	m.breakerState.WithLabelValues(operation).Set(float64(state))
}
