package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/attendance-ledger/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for migration runs
// and report queries. All methods are nil-safe so callers can pass nil when
// metrics are disabled.
type MetricsService struct {
	registry      *prometheus.Registry
	handler       http.Handler
	rowOutcomes   *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	queryDuration *prometheus.HistogramVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	rowOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "migration_rows_total",
		Help: "Legacy rows processed by outcome",
	}, []string{"source", "outcome"})

	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "migration_batch_duration_seconds",
		Help:    "Duration of one legacy source batch",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_query_duration_seconds",
		Help:    "Duration of bulletin and consolidated queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(rowOutcomes, batchDuration, queryDuration, goroutines)

	return &MetricsService{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		rowOutcomes:   rowOutcomes,
		batchDuration: batchDuration,
		queryDuration: queryDuration,
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

// RowOutcome counts one processed legacy row.
func (m *MetricsService) RowOutcome(source models.SourceType, outcome string) {
	if m == nil {
		return
	}
	m.rowOutcomes.WithLabelValues(string(source), outcome).Inc()
}

// ObserveMigrationBatch records the duration of one source batch.
func (m *MetricsService) ObserveMigrationBatch(source models.SourceType, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(string(source)).Observe(duration.Seconds())
}

// ObserveReportQuery records the duration of one aggregation query.
func (m *MetricsService) ObserveReportQuery(report string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(report).Observe(duration.Seconds())
}
