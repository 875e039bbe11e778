package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

// Dispatch outcomes used as the outcome label.
const (
	OutcomeOK = "ok"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry             *prometheus.Registry
	handler              http.Handler
	requestDuration      *prometheus.HistogramVec
	requestTotal         *prometheus.CounterVec
	cacheLatency         prometheus.Observer
	cacheWrite           prometheus.Observer
	cacheHits            prometheus.Counter
	cacheMisses          prometheus.Counter
	dbQueryDuration      *prometheus.HistogramVec
	dispatchTotal        *prometheus.CounterVec
	dispatchDuration     *prometheus.HistogramVec
	notificationsCreated prometheus.Counter
	notificationFailures *prometheus.CounterVec

	actionsTotal         uint64
	actionsFailed        uint64
	dispatchDurationSum  uint64
	notificationCount    uint64
	notificationFailureN uint64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	dispatchTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_actions_total",
		Help: "Dispatched actions by service, action and outcome",
	}, []string{"service", "action", "outcome"})

	dispatchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_duration_seconds",
		Help:    "Time from receipt to response for dispatched actions",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "action"})

	notificationsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_created_total",
		Help: "Notification rows written by fan-out",
	})

	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Fan-out deliveries that failed, by delivery mode",
	}, []string{"mode"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		dbQueryDuration, dispatchTotal, dispatchDuration, notificationsCreated, notificationFailures, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		dbQueryDuration:      dbQueryDuration,
		dispatchTotal:        dispatchTotal,
		dispatchDuration:     dispatchDuration,
		notificationsCreated: notificationsCreated,
		notificationFailures: notificationFailures,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveDispatch records one terminal dispatch state. outcome is OutcomeOK or an error code.
func (m *MetricsService) ObserveDispatch(service, action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(service, action, outcome).Inc()
	m.dispatchDuration.WithLabelValues(service, action).Observe(duration.Seconds())
	atomic.AddUint64(&m.actionsTotal, 1)
	atomic.AddUint64(&m.dispatchDurationSum, uint64(duration.Nanoseconds()))
	if outcome != OutcomeOK {
		atomic.AddUint64(&m.actionsFailed, 1)
	}
}

// RecordNotifications counts rows written by fan-out.
func (m *MetricsService) RecordNotifications(created int) {
	if m == nil || created <= 0 {
		return
	}
	m.notificationsCreated.Add(float64(created))
	atomic.AddUint64(&m.notificationCount, uint64(created))
}

// RecordNotificationFailure counts a failed fan-out delivery.
func (m *MetricsService) RecordNotificationFailure(mode string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(mode).Inc()
	atomic.AddUint64(&m.notificationFailureN, 1)
}

// Snapshot returns aggregated dispatcher metrics.
func (m *MetricsService) Snapshot() models.DispatchMetrics {
	if m == nil {
		return models.DispatchMetrics{}
	}
	total := atomic.LoadUint64(&m.actionsTotal)
	durationSum := atomic.LoadUint64(&m.dispatchDurationSum)

	var avgMs float64
	if total > 0 {
		avgMs = float64(durationSum) / float64(total) / float64(time.Millisecond)
	}

	return models.DispatchMetrics{
		ActionsTotal:         total,
		ActionsFailed:        atomic.LoadUint64(&m.actionsFailed),
		NotificationsCreated: atomic.LoadUint64(&m.notificationCount),
		NotificationFailures: atomic.LoadUint64(&m.notificationFailureN),
		AverageDispatchMs:    avgMs,
		Goroutines:           runtime.NumGoroutine(),
		GeneratedAt:          time.Now().UTC(),
	}
}
