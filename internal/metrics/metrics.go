package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// dataset parse duration (seconds)
	DatasetLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lca_dataset_load_duration_seconds",
			Help:    "Time spent parsing the LCA data file",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"status"},
	)

	DatasetRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lca_dataset_records",
		Help: "Number of records currently cached",
	})

	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lca_query_duration_seconds",
		Help:    "Filter and paginate duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lca_emails_total",
			Help: "Outbound emails by outcome",
		},
		[]string{"kind", "status"}, // kind: bulk, single, test; status: sent, failed, skipped
	)

	TrackingEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lca_tracking_events_total",
			Help: "Tracking events by outcome",
		},
		[]string{"status"}, // stored, dropped, error
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func RecordDatasetLoad(status string, d time.Duration) {
	DatasetLoadDuration.WithLabelValues(status).Observe(d.Seconds())
}

func RecordQuery(d time.Duration) {
	QueryDuration.Observe(d.Seconds())
}

func IncrementEmail(kind, status string) {
	EmailsSent.WithLabelValues(kind, status).Inc()
}

func IncrementTracking(status string) {
	TrackingEvents.WithLabelValues(status).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
