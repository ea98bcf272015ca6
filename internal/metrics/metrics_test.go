package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	tests := []struct {
		name    string
		record  func()
		counter func() float64
	}{
		{
			name:    "attempt",
			record:  func() { ObserveAttempt("roi", "success", time.Millisecond) },
			counter: func() float64 { return testutil.ToFloat64(decodeAttemptsTotal.WithLabelValues("roi", "success")) },
		},
		{
			name:    "fast path",
			record:  func() { FastPath("value") },
			counter: func() float64 { return testutil.ToFloat64(fastPathTotal.WithLabelValues("value")) },
		},
		{
			name:    "mode transition",
			record:  func() { ModeTransition("search", "track") },
			counter: func() float64 { return testutil.ToFloat64(modeTransitionsTotal.WithLabelValues("search", "track")) },
		},
		{
			name:    "deduped result",
			record:  func() { ScanResult(true) },
			counter: func() float64 { return testutil.ToFloat64(scanResultsTotal.WithLabelValues("deduped")) },
		},
		{
			name:    "emitted result",
			record:  func() { ScanResult(false) },
			counter: func() float64 { return testutil.ToFloat64(scanResultsTotal.WithLabelValues("emitted")) },
		},
		{
			name:    "pool grow",
			record:  func() { PoolGrow("video") },
			counter: func() float64 { return testutil.ToFloat64(poolGrowTotal.WithLabelValues("video")) },
		},
		{
			name:    "pool bypass",
			record:  func() { PoolBypass("file") },
			counter: func() float64 { return testutil.ToFloat64(poolBypassTotal.WithLabelValues("file")) },
		},
		{
			name:    "websocket message",
			record:  func() { WebsocketMessage("sent") },
			counter: func() float64 { return testutil.ToFloat64(websocketMessagesTotal.WithLabelValues("sent")) },
		},
		{
			name:    "http request",
			record:  func() { HTTPRequest(http.MethodPost, "/decode", http.StatusOK, time.Millisecond) },
			counter: func() float64 { return testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/decode", "OK")) },
		},
		{
			name:    "rate limit",
			record:  func() { RateLimitHit("minute") },
			counter: func() float64 { return testutil.ToFloat64(rateLimitHits.WithLabelValues("minute")) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.counter()
			tt.record()
			assert.InDelta(t, before+1, tt.counter(), 1e-9)
		})
	}
}

func TestGauges(t *testing.T) {
	scans := testutil.ToFloat64(activeScans)
	ScanStarted()
	assert.InDelta(t, scans+1, testutil.ToFloat64(activeScans), 1e-9)
	ScanStopped()
	assert.InDelta(t, scans, testutil.ToFloat64(activeScans), 1e-9)

	conns := testutil.ToFloat64(websocketConnections)
	WebsocketConnected()
	assert.InDelta(t, conns+1, testutil.ToFloat64(websocketConnections), 1e-9)
	WebsocketDisconnected()
	assert.InDelta(t, conns, testutil.ToFloat64(websocketConnections), 1e-9)
}

func TestHandler(t *testing.T) {
	UploadSize(2048)
	ObserveAttempt("full", "not_found", 5*time.Millisecond)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "qrscan_upload_size_bytes_count")
	assert.Contains(t, body, `qrscan_decode_duration_seconds_bucket{stage="full"`)
	assert.Contains(t, body, `qrscan_decode_attempts_total{outcome="not_found",stage="full"}`)
}
