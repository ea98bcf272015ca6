// Package server exposes the decoder over HTTP: one-shot uploads on
// /decode and /pdf, and a websocket camera bridge on /scan where a browser
// pushes camera frames and receives results as they are found.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/metrics"
	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	config      Config
	decoder     *pipeline.Decoder
	pdf         *pdf.Processor
	rateLimiter *RateLimiter
	scanSlots   chan struct{}
	logger      *slog.Logger

	// closing is closed on shutdown so hijacked websocket connections end.
	closing   chan struct{}
	closeOnce sync.Once
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	TimeoutSec      int
	ShutdownTimeout int
	MaxConnections  int

	MetricsEnabled bool
	MetricsPath    string

	// Per-client upload limits; 0 disables.
	RequestsPerMinute int
	MaxDataPerDayMB   int

	Decoder pipeline.Config
	Scan    pipeline.ScanOptions
}

// DefaultConfig returns a local-only configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8080,
		CORSOrigin:      "*",
		MaxUploadMB:     50,
		TimeoutSec:      30,
		ShutdownTimeout: 10,
		MaxConnections:  8,
		MetricsEnabled:  true,
		MetricsPath:     "/metrics",
		Decoder:         pipeline.DefaultConfig(),
		Scan:            pipeline.DefaultScanOptions(),
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type DecodeResponse struct {
	Success bool             `json:"success"`
	Outcome pipeline.Outcome `json:"outcome"`
	TimeMs  int64            `json:"time_ms"`
}

// NewServer creates a server with a shared one-shot decoder.
func NewServer(config Config) (*Server, error) {
	if config.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("max upload must be positive, got %d", config.MaxUploadMB)
	}
	if config.MaxConnections <= 0 {
		return nil, fmt.Errorf("max connections must be positive, got %d", config.MaxConnections)
	}

	dec, err := pipeline.NewBuilder().WithConfig(config.Decoder).Build()
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}

	pcfg := pdf.DefaultProcessorConfig()
	pcfg.Decoder = config.Decoder

	s := &Server{
		config:    config,
		decoder:   dec,
		pdf:       pdf.NewProcessorWithConfig(pcfg),
		scanSlots: make(chan struct{}, config.MaxConnections),
		logger:    slog.Default().With("component", "server"),
		closing:   make(chan struct{}),
	}
	if config.RequestsPerMinute > 0 || config.MaxDataPerDayMB > 0 {
		s.rateLimiter = NewRateLimiter(config.RequestsPerMinute, int64(config.MaxDataPerDayMB)*1024*1024)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	s.beginClose()
	if s.decoder != nil {
		s.decoder.Dispose()
	}
	return nil
}

func (s *Server) beginClose() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/decode", s.corsMiddleware(s.rateLimitMiddleware(s.decodeHandler)))
	mux.HandleFunc("/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.pdfHandler)))
	mux.HandleFunc("/scan", s.scanWebSocketHandler)
	if s.config.MetricsEnabled {
		mux.Handle(s.config.MetricsPath, metrics.Handler())
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.beginClose)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", srv.Addr, "version", version.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := time.Duration(s.config.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("Shutting down server", "timeout", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.config.TimeoutSec) * time.Second
}
