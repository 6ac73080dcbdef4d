package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
)

// Reconcile outcome labels.
const (
	ReconcileResultSuccess    = "success"
	ReconcileResultFailure    = "failure"
	ReconcileResultContention = "lock_contention"
	ReconcileResultDryRun     = "dry_run"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	reconcileRuns     *prometheus.CounterVec
	reconcileModified *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	driftRecords      prometheus.Gauge
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

	reconcileRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_reconcile_runs_total",
		Help: "Approval reconciliation passes by mode and outcome",
	}, []string{"mode", "result"})

	reconcileModified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_reconcile_modified_total",
		Help: "Approval records changed by reconciliation",
	}, []string{"mode"})

	reconcileDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "approval_reconcile_duration_seconds",
		Help:    "Duration of approval reconciliation passes",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	driftRecords := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "approval_drift_records",
		Help: "Approvals under frozen timesheets that are not yet approved, as of the last check",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, reconcileRuns, reconcileModified, reconcileDuration, driftRecords, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		reconcileRuns:     reconcileRuns,
		reconcileModified: reconcileModified,
		reconcileDuration: reconcileDuration,
		driftRecords:      driftRecords,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveReconcile records the outcome of one reconciliation pass.
func (m *MetricsService) ObserveReconcile(mode models.ReconcileMode, result string, modified int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(string(mode), result).Inc()
	if modified > 0 {
		m.reconcileModified.WithLabelValues(string(mode)).Add(float64(modified))
	}
	m.reconcileDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())
}

// SetDriftRecords publishes the most recent drift count.
func (m *MetricsService) SetDriftRecords(count int) {
	if m == nil {
		return
	}
	m.driftRecords.Set(float64(count))
}
