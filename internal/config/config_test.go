package config

import (
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

const (
	infoLevel  = "info"
	debugLevel = "debug"
)

// TestDefaultConfig tests that defaults mirror the pipeline defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Decoder.FastEdge != pipeline.DefaultFastEdge {
		t.Errorf("Expected fast edge %d, got %d", pipeline.DefaultFastEdge, cfg.Decoder.FastEdge)
	}
	if cfg.Decoder.FullEdge != pipeline.DefaultFullEdge {
		t.Errorf("Expected full edge %d, got %d", pipeline.DefaultFullEdge, cfg.Decoder.FullEdge)
	}
	if cfg.Scan.FPSSearch != 12 || cfg.Scan.FPSTrack != 24 {
		t.Errorf("Unexpected scan rates %.0f/%.0f", cfg.Scan.FPSSearch, cfg.Scan.FPSTrack)
	}
	if cfg.Scan.RescueEveryMs != 1200 || cfg.Scan.DedupeMs != 800 {
		t.Errorf("Unexpected scan timings %d/%d", cfg.Scan.RescueEveryMs, cfg.Scan.DedupeMs)
	}
	if cfg.Scan.TrackFailThreshold != 8 {
		t.Errorf("Expected track fail threshold 8, got %d", cfg.Scan.TrackFailThreshold)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Expected output format 'text', got %s", cfg.Output.Format)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Unexpected metrics config %+v", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestValidate tests each validation rule in isolation.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"bad output format", func(c *Config) { c.Output.Format = "csv" }, "invalid output format"},
		{"empty output format is allowed", func(c *Config) { c.Output.Format = "" }, ""},
		{"unknown detector", func(c *Config) { c.Decoder.Detector = "opencv" }, "decoder.detector"},
		{"quirc detector", func(c *Config) { c.Decoder.Detector = "quirc" }, ""},
		{"full below fast", func(c *Config) { c.Decoder.FullEdge = 100 }, "decoder settings"},
		{"zero crop scale", func(c *Config) { c.Decoder.CropScale = 0 }, "decoder settings"},
		{"zero in-memory limit", func(c *Config) { c.Decoder.MaxInMemoryBytes = 0 }, "max_in_memory_bytes"},
		{"zero search rate", func(c *Config) { c.Scan.FPSSearch = 0 }, "scan rates"},
		{"negative edge", func(c *Config) { c.Scan.MaxEdgeFull = -1 }, "scan edges"},
		{"zero threshold", func(c *Config) { c.Scan.TrackFailThreshold = 0 }, "track_fail_threshold"},
		{"zero dedupe", func(c *Config) { c.Scan.DedupeMs = 0 }, "scan timings"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"zero upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"zero timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"zero connections", func(c *Config) { c.Server.MaxConnections = 0 }, "max connections"},
		{"relative metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics path"},
		{"metrics path ignored when disabled", func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.Path = ""
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

// TestToPipelineConfig tests conversion to the decoder configuration.
func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Decoder.FastEdge = 480
	cfg.Decoder.FullEdge = 960
	cfg.Decoder.Detector = "zxing"
	cfg.Decoder.TryHarder = true
	cfg.Decoder.PadRatio = 0.2
	cfg.Decoder.PadMin = 8
	cfg.Decoder.PadMax = 64
	cfg.Decoder.MaxInMemoryBytes = 1024
	cfg.Decoder.TempDir = "/tmp/spool"

	pc := cfg.ToPipelineConfig()
	if pc.FastEdge != 480 || pc.FullEdge != 960 {
		t.Errorf("Unexpected edges %d/%d", pc.FastEdge, pc.FullEdge)
	}
	if pc.Detector != "zxing" || !pc.TryHarder {
		t.Errorf("Unexpected detector settings %q/%v", pc.Detector, pc.TryHarder)
	}
	if pc.Pad.Ratio != 0.2 || pc.Pad.Min != 8 || pc.Pad.Max != 64 {
		t.Errorf("Unexpected pad %+v", pc.Pad)
	}
	if pc.File.MaxInMemoryBytes != 1024 || pc.File.TempDir != "/tmp/spool" {
		t.Errorf("Unexpected file options %+v", pc.File)
	}
	if err := pc.Validate(); err != nil {
		t.Errorf("Converted config should be valid: %v", err)
	}
}

// TestToScanOptions tests conversion to scan options.
func TestToScanOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.RescueEveryMs = 500
	cfg.Scan.DedupeMs = 250
	cfg.Decoder.PadRatio = 0.3

	opts := cfg.ToScanOptions()
	if opts.RescueEvery != 500*time.Millisecond {
		t.Errorf("Expected rescue 500ms, got %v", opts.RescueEvery)
	}
	if opts.Dedupe != 250*time.Millisecond {
		t.Errorf("Expected dedupe 250ms, got %v", opts.Dedupe)
	}
	if opts.Decode.PadRatio != 0.3 {
		t.Errorf("Expected pad ratio 0.3, got %v", opts.Decode.PadRatio)
	}
	if opts.OnResult != nil {
		t.Error("Converted options must not carry callbacks")
	}

	def := DefaultConfig().ToScanOptions()
	want := pipeline.DefaultScanOptions()
	if def.FPSSearch != want.FPSSearch || def.MaxEdgeFull != want.MaxEdgeFull || def.Decode != want.Decode {
		t.Errorf("Default conversion %+v differs from %+v", def, want)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9000
	if got := cfg.ServerAddr(); got != "0.0.0.0:9000" {
		t.Errorf("ServerAddr() = %s", got)
	}
}
