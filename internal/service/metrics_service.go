package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/bto-allocation-api/internal/models"
)

// allocationRecorder is the slice of MetricsService the lifecycle services
// depend on. Nil receivers are tolerated so metrics stay optional in tests.
type allocationRecorder interface {
	ApplicationSubmitted(projectID string)
	BookingCreated(projectID string, unitType models.UnitType)
	WithdrawalApproved(projectID string)
}

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the allocation workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	applicationsTotal *prometheus.CounterVec
	bookingsTotal     *prometheus.CounterVec
	withdrawalsTotal  *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	applicationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_applications_submitted_total",
		Help: "Applications submitted per project",
	}, []string{"project"})

	bookingsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_bookings_total",
		Help: "Units booked per project and unit type",
	}, []string{"project", "unit_type"})

	withdrawalsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_withdrawals_approved_total",
		Help: "Approved withdrawals per project",
	}, []string{"project"})

	registry.MustRegister(requestDuration, requestTotal, applicationsTotal, bookingsTotal, withdrawalsTotal)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		applicationsTotal: applicationsTotal,
		bookingsTotal:     bookingsTotal,
		withdrawalsTotal:  withdrawalsTotal,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records latency and volume for a handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ApplicationSubmitted counts a new application.
func (s *MetricsService) ApplicationSubmitted(projectID string) {
	if s == nil {
		return
	}
	s.applicationsTotal.WithLabelValues(projectID).Inc()
}

// BookingCreated counts a booked unit.
func (s *MetricsService) BookingCreated(projectID string, unitType models.UnitType) {
	if s == nil {
		return
	}
	s.bookingsTotal.WithLabelValues(projectID, string(unitType)).Inc()
}

// WithdrawalApproved counts an approved withdrawal.
func (s *MetricsService) WithdrawalApproved(projectID string) {
	if s == nil {
		return
	}
	s.withdrawalsTotal.WithLabelValues(projectID).Inc()
}
