package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "qrscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "QRSCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the root command take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on a private viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from files, environment variables and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the validation step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation loads a specific file without validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file: defaults and env vars apply.
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// QRSCAN_DECODER_FULL_EDGE maps to decoder.full_edge.
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so env vars resolve even without a file.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("decoder.fast_edge", d.Decoder.FastEdge)
	l.v.SetDefault("decoder.full_edge", d.Decoder.FullEdge)
	l.v.SetDefault("decoder.pool_ceiling", d.Decoder.PoolCeiling)
	l.v.SetDefault("decoder.surface_capacity", d.Decoder.SurfaceCapacity)
	l.v.SetDefault("decoder.max_in_memory_bytes", d.Decoder.MaxInMemoryBytes)
	l.v.SetDefault("decoder.temp_dir", d.Decoder.TempDir)
	l.v.SetDefault("decoder.detector", d.Decoder.Detector)
	l.v.SetDefault("decoder.try_harder", d.Decoder.TryHarder)
	l.v.SetDefault("decoder.character_set", d.Decoder.CharacterSet)
	l.v.SetDefault("decoder.pad_ratio", d.Decoder.PadRatio)
	l.v.SetDefault("decoder.pad_min", d.Decoder.PadMin)
	l.v.SetDefault("decoder.pad_max", d.Decoder.PadMax)
	l.v.SetDefault("decoder.crop_scale", d.Decoder.CropScale)

	l.v.SetDefault("scan.fps_search", d.Scan.FPSSearch)
	l.v.SetDefault("scan.fps_track", d.Scan.FPSTrack)
	l.v.SetDefault("scan.max_edge_search", d.Scan.MaxEdgeSearch)
	l.v.SetDefault("scan.max_edge_full", d.Scan.MaxEdgeFull)
	l.v.SetDefault("scan.track_fail_threshold", d.Scan.TrackFailThreshold)
	l.v.SetDefault("scan.rescue_every_ms", d.Scan.RescueEveryMs)
	l.v.SetDefault("scan.dedupe_ms", d.Scan.DedupeMs)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.max_connections", d.Server.MaxConnections)
	l.v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
	l.v.SetDefault("server.max_data_per_day_mb", d.Server.MaxDataPerDayMB)

	l.v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	l.v.SetDefault("metrics.path", d.Metrics.Path)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes a configuration file holding every default.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/qrscan")
}

// PrintConfigInfo writes where the configuration was loaded from, one
// "# "-prefixed line per item so the block stays valid YAML.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	used := l.GetConfigFileUsed()
	if used == "" {
		used = "(none)"
	}
	_, _ = fmt.Fprintf(w, "# Configuration file used: %s\n", used)
	_, _ = fmt.Fprintf(w, "# Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "# Environment prefix: %s\n", EnvPrefix)
}
