package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/detector"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/roi"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	dec := pipeline.DefaultConfig()
	scan := pipeline.DefaultScanOptions()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Decoder: DecoderConfig{
			FastEdge:         dec.FastEdge,
			FullEdge:         dec.FullEdge,
			PoolCeiling:      dec.PoolCeiling,
			SurfaceCapacity:  dec.SurfaceCapacity,
			MaxInMemoryBytes: dec.File.MaxInMemoryBytes,
			Detector:         dec.Detector,
			PadRatio:         dec.Pad.Ratio,
			PadMin:           dec.Pad.Min,
			PadMax:           dec.Pad.Max,
			CropScale:        dec.CropScale,
		},
		Scan: ScanConfig{
			FPSSearch:          scan.FPSSearch,
			FPSTrack:           scan.FPSTrack,
			MaxEdgeSearch:      scan.MaxEdgeSearch,
			MaxEdgeFull:        scan.MaxEdgeFull,
			TrackFailThreshold: scan.TrackFailThreshold,
			RescueEveryMs:      int(scan.RescueEvery / time.Millisecond),
			DedupeMs:           int(scan.Dedupe / time.Millisecond),
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			MaxConnections:  8,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "yaml"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := detector.NewBackend(c.Decoder.Detector); err != nil {
		return fmt.Errorf("invalid decoder.detector: %w", err)
	}
	if c.Decoder.MaxInMemoryBytes <= 0 {
		return fmt.Errorf("invalid decoder.max_in_memory_bytes: %d (must be positive)", c.Decoder.MaxInMemoryBytes)
	}
	if err := c.ToPipelineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid decoder settings: %w", err)
	}

	if c.Scan.FPSSearch <= 0 || c.Scan.FPSTrack <= 0 {
		return fmt.Errorf("invalid scan rates: search %.1f, track %.1f (must be positive)", c.Scan.FPSSearch, c.Scan.FPSTrack)
	}
	if c.Scan.MaxEdgeSearch <= 0 || c.Scan.MaxEdgeFull <= 0 {
		return fmt.Errorf("invalid scan edges: search %d, full %d (must be positive)", c.Scan.MaxEdgeSearch, c.Scan.MaxEdgeFull)
	}
	if c.Scan.TrackFailThreshold <= 0 {
		return fmt.Errorf("invalid scan.track_fail_threshold: %d (must be positive)", c.Scan.TrackFailThreshold)
	}
	if c.Scan.RescueEveryMs <= 0 || c.Scan.DedupeMs <= 0 {
		return fmt.Errorf("invalid scan timings: rescue %dms, dedupe %dms (must be positive)", c.Scan.RescueEveryMs, c.Scan.DedupeMs)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxConnections <= 0 {
		return fmt.Errorf("invalid max connections: %d (must be positive)", c.Server.MaxConnections)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.MaxDataPerDayMB < 0 {
		return fmt.Errorf("invalid upload limits: %d/min, %dMB/day (must not be negative)", c.Server.RequestsPerMinute, c.Server.MaxDataPerDayMB)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q (must start with /)", c.Metrics.Path)
	}

	return nil
}

// ToPipelineConfig converts the config to the decoder configuration.
func (c Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.FastEdge = c.Decoder.FastEdge
	cfg.FullEdge = c.Decoder.FullEdge
	cfg.PoolCeiling = c.Decoder.PoolCeiling
	cfg.SurfaceCapacity = c.Decoder.SurfaceCapacity
	cfg.Detector = c.Decoder.Detector
	cfg.TryHarder = c.Decoder.TryHarder
	cfg.CharacterSet = c.Decoder.CharacterSet
	cfg.Pad = roi.PadOptions{Ratio: c.Decoder.PadRatio, Min: c.Decoder.PadMin, Max: c.Decoder.PadMax}
	cfg.CropScale = c.Decoder.CropScale
	cfg.File = source.FileOptions{MaxInMemoryBytes: c.Decoder.MaxInMemoryBytes, TempDir: c.Decoder.TempDir}
	return cfg
}

// ToScanOptions converts the scan section to scan options without callbacks.
func (c Config) ToScanOptions() pipeline.ScanOptions {
	return pipeline.ScanOptions{
		FPSSearch:          c.Scan.FPSSearch,
		FPSTrack:           c.Scan.FPSTrack,
		MaxEdgeSearch:      c.Scan.MaxEdgeSearch,
		MaxEdgeFull:        c.Scan.MaxEdgeFull,
		TrackFailThreshold: c.Scan.TrackFailThreshold,
		RescueEvery:        time.Duration(c.Scan.RescueEveryMs) * time.Millisecond,
		Dedupe:             time.Duration(c.Scan.DedupeMs) * time.Millisecond,
		Decode: pipeline.DecodeTuning{
			PadRatio:  c.Decoder.PadRatio,
			CropScale: c.Decoder.CropScale,
			PadMin:    c.Decoder.PadMin,
			PadMax:    c.Decoder.PadMax,
		},
	}
}

// ServerAddr returns host:port for the serve command.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
