package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	uploadsIssued   prometheus.Counter
	uploadsSettled  *prometheus.CounterVec
	downloadsIssued prometheus.Counter
	sharesCreated   prometheus.Counter
	sharesRevoked   prometheus.Counter
	submissions     *prometheus.CounterVec
	gradesApplied   prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers the platform's Prometheus collectors.
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

	uploadsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "upload_urls_issued_total",
		Help: "Total delegated upload credentials issued",
	})

	uploadsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uploads_settled_total",
		Help: "Total uploads reconciled, by outcome",
	}, []string{"outcome"})

	downloadsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "download_urls_issued_total",
		Help: "Total delegated download credentials issued",
	})

	sharesCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shares_created_total",
		Help: "Total share grants created",
	})

	sharesRevoked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shares_revoked_total",
		Help: "Total share grants revoked",
	})

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_recorded_total",
		Help: "Total assignment submissions recorded, by lateness",
	}, []string{"late"})

	gradesApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grades_applied_total",
		Help: "Total grades written onto submissions",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, uploadsIssued, uploadsSettled,
		downloadsIssued, sharesCreated, sharesRevoked, submissions, gradesApplied,
		dbQueryDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		uploadsIssued:   uploadsIssued,
		uploadsSettled:  uploadsSettled,
		downloadsIssued: downloadsIssued,
		sharesCreated:   sharesCreated,
		sharesRevoked:   sharesRevoked,
		submissions:     submissions,
		gradesApplied:   gradesApplied,
		dbQueryDuration: dbQueryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request latency and volume.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordUploadIssued counts one issued upload credential.
func (m *MetricsService) RecordUploadIssued() {
	if m == nil {
		return
	}
	m.uploadsIssued.Inc()
}

// RecordUploadSettled counts one reconciled upload. Outcome is "active" or
// "failed".
func (m *MetricsService) RecordUploadSettled(outcome string) {
	if m == nil {
		return
	}
	m.uploadsSettled.WithLabelValues(outcome).Inc()
}

// RecordDownloadIssued counts one issued download credential.
func (m *MetricsService) RecordDownloadIssued() {
	if m == nil {
		return
	}
	m.downloadsIssued.Inc()
}

// RecordSharesCreated counts n newly created share grants.
func (m *MetricsService) RecordSharesCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sharesCreated.Add(float64(n))
}

// RecordShareRevoked counts one revoked share grant.
func (m *MetricsService) RecordShareRevoked() {
	if m == nil {
		return
	}
	m.sharesRevoked.Inc()
}

// RecordSubmission counts one recorded submission.
func (m *MetricsService) RecordSubmission(late bool) {
	if m == nil {
		return
	}
	label := "no"
	if late {
		label = "yes"
	}
	m.submissions.WithLabelValues(label).Inc()
}

// RecordGradeApplied counts one grade write.
func (m *MetricsService) RecordGradeApplied() {
	if m == nil {
		return
	}
	m.gradesApplied.Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}
