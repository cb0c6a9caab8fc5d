package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	journalTotal    *prometheus.CounterVec
	journalDuration *prometheus.HistogramVec
	journalInFlight prometheus.Gauge
	eventLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	journalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "events_journaled_total",
			Help:      "Total workflow events journaled by type and status.",
		},
		[]string{"service", "event_type", "status"},
	)
	journalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "journal_duration_seconds",
			Help:      "Time spent appending a workflow event to the journal.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	journalInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "journal_in_flight",
			Help:      "Number of workflow events being journaled.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between an event occurring and being journaled.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(journalTotal, journalDuration, journalInFlight, eventLag)

	return &WorkerMetrics{
		registry:        registry,
		journalTotal:    journalTotal,
		journalDuration: journalDuration,
		journalInFlight: journalInFlight,
		eventLag:        eventLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.journalInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(service, eventType string, duration time.Duration, err error) {
	m.journalInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.journalTotal.WithLabelValues(service, eventType, status).Inc()
	m.journalDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.eventLag.WithLabelValues(service).Observe(lag.Seconds())
}
