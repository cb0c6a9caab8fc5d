package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry  *prometheus.Registry
	gatherers prometheus.Gatherers

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	workflowActionsTotal *prometheus.CounterVec
	uploadBytes          *prometheus.HistogramVec
}

// NewHTTPServerMetrics builds the gateway registry. Extra gatherers, such as
// the portal client registry, are exposed on the same handler.
func NewHTTPServerMetrics(service string, extra ...prometheus.Gatherer) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	workflowActionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "actions_total",
			Help:      "Applicant workflow actions by outcome.",
		},
		[]string{"service", "action", "outcome"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "upload_bytes",
			Help:      "Size of accepted document uploads.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 7),
		},
		[]string{"service", "document_type"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		workflowActionsTotal,
		uploadBytes,
	)

	gatherers := prometheus.Gatherers{registry}
	for _, g := range extra {
		if g != nil {
			gatherers = append(gatherers, g)
		}
	}

	return &HTTPServerMetrics{
		registry:             registry,
		gatherers:            gatherers,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		workflowActionsTotal: workflowActionsTotal,
		uploadBytes:          uploadBytes,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherers, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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

// normalizePath folds applicant ids and slot/type segments into templates.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/applicants/") {
		return path
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 4 {
		return "/v1/applicants/{id}"
	}
	switch parts[3] {
	case "preferences":
		return "/v1/applicants/{id}/preferences/{slot}"
	case "documents":
		return "/v1/applicants/{id}/documents/{type}"
	default:
		return "/v1/applicants/{id}/" + parts[3]
	}
}

func (m *HTTPServerMetrics) RecordWorkflowAction(service, action, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.workflowActionsTotal.WithLabelValues(service, action, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordUpload(service, documentType string, bytes int64) {
	if bytes <= 0 {
		return
	}
	m.uploadBytes.WithLabelValues(service, documentType).Observe(float64(bytes))
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

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
