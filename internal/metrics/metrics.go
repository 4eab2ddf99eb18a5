// Package metrics registers Prometheus instrumentation for the dashboard.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "wms_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	rowsProcessed *prometheus.CounterVec
	runTotal      *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	mappingMutations *prometheus.CounterVec
	exportTotal      *prometheus.CounterVec
)

// Init registers the collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		rowsProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_processed_total",
				Help: "Total processed sales rows by marketplace and status",
			},
			[]string{"marketplace", "status"},
		)
		runTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Total processing runs by marketplace and result",
			},
			[]string{"marketplace", "result"},
		)
		runDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "run_duration_seconds",
				Help:    "Processing run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"marketplace"},
		)
		mappingMutations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mapping_mutations_total",
				Help: "Total mapping adds and removes by operation and result",
			},
			[]string{"op", "result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			rowsProcessed,
			runTotal,
			runDuration,
			mappingMutations,
			exportTotal,
		)
	})
}

// IncRowProcessed increments the per-row counter.
func IncRowProcessed(marketplace, status string) {
	if rowsProcessed != nil {
		rowsProcessed.WithLabelValues(marketplace, status).Inc()
	}
}

// AddRowsProcessed increments the per-row counter by count.
func AddRowsProcessed(marketplace, status string, count int) {
	if count <= 0 {
		return
	}
	if rowsProcessed != nil {
		rowsProcessed.WithLabelValues(marketplace, status).Add(float64(count))
	}
}

// ObserveRun records a finished run's duration and result.
func ObserveRun(marketplace, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runTotal != nil {
		runTotal.WithLabelValues(marketplace, result).Inc()
	}
	if runDuration != nil {
		runDuration.WithLabelValues(marketplace).Observe(duration.Seconds())
	}
}

// IncMappingMutation increments the mapping add/remove counter.
func IncMappingMutation(op, result string) {
	if result == "" {
		result = resultSuccess
	}
	if mappingMutations != nil {
		mappingMutations.WithLabelValues(op, result).Inc()
	}
}

// IncExport increments the export counter.
func IncExport(format, result string) {
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
