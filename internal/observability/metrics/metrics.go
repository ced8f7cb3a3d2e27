package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "sitewatch_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	scanTotal   *prometheus.CounterVec
	scanLatency *prometheus.HistogramVec

	scanAlertsCreated  prometheus.Counter
	scanAlertsUpdated  prometheus.Counter
	scanAlertsResolved prometheus.Counter
	scanSensorsFailed  prometheus.Counter

	alertEventsTotal *prometheus.CounterVec

	healthScore prometheus.Histogram

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		scanTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_total",
				Help: "Total health scans by result",
			},
			[]string{"result"},
		)
		scanLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "scan_latency_seconds",
				Help:    "Health scan latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		scanAlertsCreated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_alerts_created_total",
				Help: "Total alerts opened by scans",
			},
		)
		scanAlertsUpdated = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_alerts_updated_total",
				Help: "Total alerts refreshed by scans",
			},
		)
		scanAlertsResolved = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_alerts_resolved_total",
				Help: "Total alerts auto-resolved by scans",
			},
		)
		scanSensorsFailed = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "scan_sensors_failed_total",
				Help: "Total sensors skipped by scans due to persistence errors",
			},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)

		healthScore = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sensor_health_score",
				Help:    "Sensor health score distribution",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_export_total",
				Help: "Total alert export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "alert_export_latency_seconds",
				Help:    "Alert export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			scanTotal,
			scanLatency,
			scanAlertsCreated,
			scanAlertsUpdated,
			scanAlertsResolved,
			scanSensorsFailed,
			alertEventsTotal,
			healthScore,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveScan records scan duration and result.
func ObserveScan(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if scanTotal != nil {
		scanTotal.WithLabelValues(result).Inc()
	}
	if scanLatency != nil {
		scanLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddScanOutcome adds the per-scan lifecycle counters.
func AddScanOutcome(created, updated, resolved, failed int) {
	if scanAlertsCreated != nil && created > 0 {
		scanAlertsCreated.Add(float64(created))
	}
	if scanAlertsUpdated != nil && updated > 0 {
		scanAlertsUpdated.Add(float64(updated))
	}
	if scanAlertsResolved != nil && resolved > 0 {
		scanAlertsResolved.Add(float64(resolved))
	}
	if scanSensorsFailed != nil && failed > 0 {
		scanSensorsFailed.Add(float64(failed))
	}
}

// IncAlertEvent increments alert lifecycle counters.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
}

// ObserveHealthScore records one computed sensor health score.
func ObserveHealthScore(score int) {
	if healthScore != nil {
		healthScore.Observe(float64(score))
	}
}

// ObserveAlertExport records export latency and result.
func ObserveAlertExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
