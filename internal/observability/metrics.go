// Package observability holds the Prometheus collectors for social engine operations.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitsocial",
		Subsystem: "engine",
		Name:      "operations_total",
		Help:      "Engine operations grouped by operation and outcome.",
	}, []string{"operation", "outcome"})

	feedSizeHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fitsocial",
		Subsystem: "feed",
		Name:      "entries",
		Help:      "Number of entries returned per feed request.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	activityLoggedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitsocial",
		Subsystem: "ledger",
		Name:      "last_activity_logged_timestamp_seconds",
		Help:      "Unix timestamp of the most recently logged activity.",
	})

	matchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitsocial",
		Subsystem: "matching",
		Name:      "recommendations_total",
		Help:      "Compatibility recommendations grouped by the scorer that produced them.",
	}, []string{"source"})

	persistFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitsocial",
		Subsystem: "persistence",
		Name:      "failures_total",
		Help:      "Store writes that failed after the engine applied a mutation.",
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(operationCounter, feedSizeHistogram, activityLoggedGauge, matchCounter, persistFailureCounter)
}

// RecordOperation counts an engine call by outcome ("ok", "not_found", "invalid", "error").
func RecordOperation(operation, outcome string) {
	operationCounter.WithLabelValues(operation, outcome).Inc()
}

// RecordFeedSize observes the number of entries served in a feed page.
func RecordFeedSize(n int) {
	feedSizeHistogram.Observe(float64(n))
}

// RecordActivityLogged updates the ledger watermark gauge.
func RecordActivityLogged(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityLoggedGauge.Set(float64(ts.Unix()))
}

// RecordRecommendation counts a recommendation by provenance.
func RecordRecommendation(source string) {
	matchCounter.WithLabelValues(source).Inc()
}

// RecordPersistFailure counts a failed write-behind to the store.
func RecordPersistFailure(operation string) {
	persistFailureCounter.WithLabelValues(operation).Inc()
}
