//nolint:lll
package config

// Config represents the complete configuration for the qrscan application.
// It covers every command (decode, pdf, scan, serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// One-shot decoder configuration
	Decoder DecoderConfig `mapstructure:"decoder" yaml:"decoder" json:"decoder"`

	// Video scan configuration
	Scan ScanConfig `mapstructure:"scan" yaml:"scan" json:"scan"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// DecoderConfig contains pipeline and buffer settings.
type DecoderConfig struct {
	FastEdge         int    `mapstructure:"fast_edge" yaml:"fast_edge" json:"fast_edge"`
	FullEdge         int    `mapstructure:"full_edge" yaml:"full_edge" json:"full_edge"`
	PoolCeiling      int    `mapstructure:"pool_ceiling" yaml:"pool_ceiling" json:"pool_ceiling"`
	SurfaceCapacity  int    `mapstructure:"surface_capacity" yaml:"surface_capacity" json:"surface_capacity"`
	MaxInMemoryBytes int64  `mapstructure:"max_in_memory_bytes" yaml:"max_in_memory_bytes" json:"max_in_memory_bytes"`
	TempDir          string `mapstructure:"temp_dir" yaml:"temp_dir" json:"temp_dir"`
	Detector         string `mapstructure:"detector" yaml:"detector" json:"detector"`
	TryHarder        bool   `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	CharacterSet     string `mapstructure:"character_set" yaml:"character_set" json:"character_set"`

	// ROI geometry
	PadRatio  float64 `mapstructure:"pad_ratio" yaml:"pad_ratio" json:"pad_ratio"`
	PadMin    int     `mapstructure:"pad_min" yaml:"pad_min" json:"pad_min"`
	PadMax    int     `mapstructure:"pad_max" yaml:"pad_max" json:"pad_max"`
	CropScale float64 `mapstructure:"crop_scale" yaml:"crop_scale" json:"crop_scale"`
}

// ScanConfig contains video scan settings.
type ScanConfig struct {
	FPSSearch          float64 `mapstructure:"fps_search" yaml:"fps_search" json:"fps_search"`
	FPSTrack           float64 `mapstructure:"fps_track" yaml:"fps_track" json:"fps_track"`
	MaxEdgeSearch      int     `mapstructure:"max_edge_search" yaml:"max_edge_search" json:"max_edge_search"`
	MaxEdgeFull        int     `mapstructure:"max_edge_full" yaml:"max_edge_full" json:"max_edge_full"`
	TrackFailThreshold int     `mapstructure:"track_fail_threshold" yaml:"track_fail_threshold" json:"track_fail_threshold"`
	RescueEveryMs      int     `mapstructure:"rescue_every_ms" yaml:"rescue_every_ms" json:"rescue_every_ms"`
	DedupeMs           int     `mapstructure:"dedupe_ms" yaml:"dedupe_ms" json:"dedupe_ms"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxConnections  int    `mapstructure:"max_connections" yaml:"max_connections" json:"max_connections"`

	// Upload limits per client; 0 disables
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxDataPerDayMB   int `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}
