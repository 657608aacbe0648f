// Package metrics provides Prometheus metrics for the file manager client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// API request metrics
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_api_requests_total",
			Help: "Total number of API requests issued",
		},
		[]string{"method", "route", "status"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "madar_fm_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	apiRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_api_retries_total",
			Help: "Total query retries after a transient failure",
		},
		[]string{"route"},
	)

	// Browse cache metrics
	browseCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_browse_cache_lookups_total",
			Help: "Browse cache lookups by result",
		},
		[]string{"result"},
	)

	browseInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "madar_fm_browse_invalidated_entries_total",
			Help: "Browse cache entries dropped by mutations",
		},
	)

	browsePagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "madar_fm_browse_pages_fetched_total",
			Help: "Browse pages fetched from the API",
		},
	)

	// Access control metrics
	passwordChallenges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_password_challenges_total",
			Help: "Password challenges opened",
		},
		[]string{"kind"},
	)

	// Mutation metrics
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_mutations_total",
			Help: "Mutations by operation and result",
		},
		[]string{"op", "status"},
	)

	bulkItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_bulk_items_total",
			Help: "Items processed by bulk operations",
		},
		[]string{"op", "status"},
	)

	// Toasts
	toastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_toasts_total",
			Help: "Toasts published to the user",
		},
		[]string{"level"},
	)

	toastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "madar_fm_toast_subscribers",
			Help: "Number of active toast subscribers",
		},
	)

	// Downloads
	downloadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_download_bytes_total",
			Help: "Bytes saved by downloads",
		},
		[]string{"sink"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "madar_fm_downloads_total",
			Help: "Downloads by sink and result",
		},
		[]string{"sink", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordAPIRequest records one API round-trip. Status 0 means a transport error.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	apiRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	apiRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAPIRetry records a query retry.
func RecordAPIRetry(route string) {
	apiRetriesTotal.WithLabelValues(route).Inc()
}

// RecordBrowseLookup records a browse cache hit or miss.
func RecordBrowseLookup(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}
	browseCacheLookups.WithLabelValues(result).Inc()
}

// RecordBrowseInvalidation records dropped browse cache entries.
func RecordBrowseInvalidation(entries int) {
	browseInvalidations.Add(float64(entries))
}

// RecordBrowsePage records a fetched browse page.
func RecordBrowsePage() {
	browsePagesFetched.Inc()
}

// RecordPasswordChallenge records an opened password challenge.
func RecordPasswordChallenge(retry bool) {
	kind := "initial"
	if retry {
		kind = "retry"
	}
	passwordChallenges.WithLabelValues(kind).Inc()
}

// RecordMutation records a single mutation result.
func RecordMutation(op string, success bool) {
	mutationsTotal.WithLabelValues(op, status(success)).Inc()
}

// RecordBulkItem records one constituent call of a bulk operation.
func RecordBulkItem(op string, success bool) {
	bulkItemsTotal.WithLabelValues(op, status(success)).Inc()
}

// RecordToast records a published toast.
func RecordToast(level string) {
	toastsTotal.WithLabelValues(level).Inc()
}

// SetToastSubscribers sets the number of toast subscribers.
func SetToastSubscribers(count int) {
	toastSubscribers.Set(float64(count))
}

// RecordDownload records a saved download.
func RecordDownload(sink string, bytes int64, success bool) {
	if success {
		downloadBytes.WithLabelValues(sink).Add(float64(bytes))
	}
	downloadsTotal.WithLabelValues(sink, status(success)).Inc()
}
