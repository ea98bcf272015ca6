package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Default(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, int64(50), cfg.MaxUploadMB)
	assert.Equal(t, 8, cfg.MaxConnections)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	require.NoError(t, cfg.Decoder.Validate())
}

func TestNewServer_ErrorCases(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "zero upload", mutate: func(c *Config) { c.MaxUploadMB = 0 }, errMsg: "max upload"},
		{name: "zero connections", mutate: func(c *Config) { c.MaxConnections = 0 }, errMsg: "max connections"},
		{name: "bad decoder", mutate: func(c *Config) { c.Decoder.FullEdge = -1 }, errMsg: "build decoder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewServer(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewServer_RateLimiterOptional(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Nil(t, s.rateLimiter)

	s = newTestServer(t, func(c *Config) { c.RequestsPerMinute = 5; c.MaxDataPerDayMB = 2 })
	require.NotNil(t, s.rateLimiter)
	assert.Equal(t, 5, s.rateLimiter.requestsPerMinute)
	assert.Equal(t, int64(2*1024*1024), s.rateLimiter.maxDataPerDay)
}

func TestServer_SetupRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{method: http.MethodGet, path: "/health", status: http.StatusOK},
		{method: http.MethodGet, path: "/decode", status: http.StatusMethodNotAllowed},
		{method: http.MethodGet, path: "/pdf", status: http.StatusMethodNotAllowed},
		{method: http.MethodOptions, path: "/decode", status: http.StatusOK},
		{method: http.MethodGet, path: "/metrics", status: http.StatusOK},
		{method: http.MethodGet, path: "/scan", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.MetricsEnabled = false })
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ListenAndServe_Shutdown(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.Port = 0; c.ShutdownTimeout = 1 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_ListenAndServe_BadAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	s := newTestServer(t, func(c *Config) { c.Host = "127.0.0.1"; c.Port = port })
	err = s.ListenAndServe(context.Background())
	assert.Error(t, err)
}

func TestHealthResponse_Serialization(t *testing.T) {
	data, err := json.Marshal(HealthResponse{Status: "healthy", Time: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"healthy","time":"2026-01-01T00:00:00Z"}`, string(data))
}

func TestServer_EndToEndDecode(t *testing.T) {
	s := newTestServer(t, nil)
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/decode", "image/png", bytes.NewReader(qrPNG(t, "E2E")))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out DecodeResponse
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	require.NoError(t, json.Unmarshal(raw["success"], &out.Success))
	assert.True(t, out.Success)
	assert.Contains(t, string(raw["outcome"]), `"text":"E2E"`)
}
