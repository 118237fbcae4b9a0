package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the API.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	registrations   *prometheus.CounterVec
	reviews         *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bid2build_http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bid2build_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bid2build_http_errors_total",
			Help: "Error responses by route, method and error code",
		}, []string{"route", "method", "code"}),
		registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bid2build_registrations_total",
			Help: "Registration attempts by role and outcome",
		}, []string{"role", "outcome"}),
		reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bid2build_document_reviews_total",
			Help: "Identity document review decisions",
		}, []string{"decision"}),
	}
}

// Registry exposes the gatherer for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordRegistration counts a registration attempt; outcome is created, replayed, rejected or failed.
func (m *Metrics) RecordRegistration(role, outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(role, outcome).Inc()
}

// RecordReview counts an admin document decision.
func (m *Metrics) RecordReview(decision string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(decision).Inc()
}
