package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound API calls to PowerTrack.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powertrack_api_requests_total",
			Help: "Total number of PowerTrack API requests made (by endpoint class, method and status).",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Measures duration of API requests to PowerTrack.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powertrack_api_request_duration_seconds",
			Help:    "Duration of PowerTrack API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint", "method"},
	)

	// Tracks credential refreshes triggered by auth rejections.
	AuthRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powertrack_auth_refreshes_total",
			Help: "Number of credential refreshes by outcome.",
		},
		[]string{"result"}, // ok | error
	)

	// Tracks store write failures by operation.
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerset_store_errors_total",
			Help: "Count of persistence failures by operation.",
		},
		[]string{"op"},
	)

	// Gauges the last successful site fetch time (seconds since epoch).
	LastFetchTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "powerset_last_fetch_timestamp",
			Help: "Timestamp (unix seconds) of the last successfully fetched site.",
		},
		[]string{"site"},
	)
)

func IncAPIRequest(endpoint, method, status string) {
	APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func ObserveAPIRequest(endpoint, method string, start time.Time) {
	APIRequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
}

func IncAuthRefresh(result string) {
	AuthRefreshesTotal.WithLabelValues(result).Inc()
}

func IncStoreError(op string) {
	StoreErrorsTotal.WithLabelValues(op).Inc()
}

func SetLastFetch(site string, t time.Time) {
	LastFetchTimestamp.WithLabelValues(site).Set(float64(t.Unix()))
}
