// Package metrics exposes Prometheus instrumentation for decode attempts,
// video scanning and the camera bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Decode attempts
	decodeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_decode_attempts_total",
			Help: "Total number of decode attempts",
		},
		[]string{"stage", "outcome"}, // outcome: success, not_found, checksum, format, unknown
	)

	decodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrscan_decode_duration_seconds",
			Help:    "Decode attempt duration in seconds",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"stage"},
	)

	fastPathTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_fastpath_detections_total",
			Help: "Fast-path detector calls by result",
		},
		[]string{"result"}, // result: value, region, none, error
	)

	// Video scanning
	modeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_scan_mode_transitions_total",
			Help: "Video scan mode transitions",
		},
		[]string{"from", "to"},
	)

	scanResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_scan_results_total",
			Help: "Video scan results by delivery status",
		},
		[]string{"status"}, // status: emitted, deduped
	)

	activeScans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qrscan_active_scans",
			Help: "Number of running video scans",
		},
	)

	// Buffer pools
	poolGrowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_pool_grow_total",
			Help: "Luminance buffer reallocations by usage class",
		},
		[]string{"class"},
	)

	poolBypassTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_pool_bypass_total",
			Help: "Luminance requests above the pool ceiling",
		},
		[]string{"class"},
	)

	// Camera bridge
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qrscan_websocket_active_connections",
			Help: "Number of active camera bridge connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_websocket_messages_total",
			Help: "Total number of camera bridge messages",
		},
		[]string{"direction"}, // direction: sent, received
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_rate_limit_hits_total",
			Help: "Requests rejected by the upload limiter",
		},
		[]string{"type"}, // type: minute, data
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qrscan_upload_size_bytes",
			Help:    "Size of uploaded files and frames in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrscan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrscan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// ObserveAttempt records one decode attempt.
func ObserveAttempt(stage, outcome string, d time.Duration) {
	decodeAttemptsTotal.WithLabelValues(stage, outcome).Inc()
	decodeDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// FastPath records the result of a fast-path detector call.
func FastPath(result string) {
	fastPathTotal.WithLabelValues(result).Inc()
}

// ModeTransition records a scan mode change.
func ModeTransition(from, to string) {
	modeTransitionsTotal.WithLabelValues(from, to).Inc()
}

// ScanResult records an emitted or suppressed scan result.
func ScanResult(deduped bool) {
	status := "emitted"
	if deduped {
		status = "deduped"
	}
	scanResultsTotal.WithLabelValues(status).Inc()
}

// ScanStarted and ScanStopped track running scans.
func ScanStarted() { activeScans.Inc() }

func ScanStopped() { activeScans.Dec() }

// PoolGrow records a luminance buffer reallocation.
func PoolGrow(class string) {
	poolGrowTotal.WithLabelValues(class).Inc()
}

// PoolBypass records an allocation that skipped the pool.
func PoolBypass(class string) {
	poolBypassTotal.WithLabelValues(class).Inc()
}

// WebsocketConnected and WebsocketDisconnected track bridge connections.
func WebsocketConnected() { websocketConnections.Inc() }

func WebsocketDisconnected() { websocketConnections.Dec() }

// WebsocketMessage counts one bridge message.
func WebsocketMessage(direction string) {
	websocketMessagesTotal.WithLabelValues(direction).Inc()
}

// HTTPRequest counts one served request.
func HTTPRequest(method, endpoint string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// RateLimitHit counts one rejected request.
func RateLimitHit(kind string) {
	rateLimitHits.WithLabelValues(kind).Inc()
}

// UploadSize observes one upload.
func UploadSize(n int64) {
	uploadSizeBytes.Observe(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
