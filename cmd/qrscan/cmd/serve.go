package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the decode API",
		Long: `Start an HTTP server exposing the decoder.

The server provides the following endpoints:
  POST /decode  - Decode an uploaded image (multipart "file" or raw body)
  POST /pdf     - Decode the images of an uploaded PDF
  GET  /scan    - WebSocket camera bridge: binary frames in, JSON results out
  GET  /health  - Health check endpoint
  GET  /metrics - Prometheus metrics

Examples:
  qrscan serve
  qrscan serve --port 8080
  qrscan serve --host 0.0.0.0 --port 3000 --cors-origin https://app.example`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.serverConfig(cmd)
			if err != nil {
				return err
			}
			srv, err := server.NewServer(cfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			defer func() { _ = srv.Close() }()

			slog.Info("Starting qrscan server", "addr", cfg.Addr())
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().String("host", "localhost", "server host")
	cmd.Flags().IntP("port", "p", 8080, "server port")
	cmd.Flags().String("cors-origin", "*", "allowed CORS origin")
	cmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	cmd.Flags().Int("timeout", 30, "request timeout in seconds")
	cmd.Flags().Int("shutdown-timeout", 10, "graceful shutdown timeout in seconds")
	cmd.Flags().Int("max-connections", 8, "maximum concurrent scan websockets")
	cmd.Flags().Int("requests-per-minute", 0, "uploads per client per minute (0 = unlimited)")
	cmd.Flags().Int("max-data-per-day", 0, "upload megabytes per client per day (0 = unlimited)")
	cmd.Flags().Bool("no-metrics", false, "disable the metrics endpoint")
	return cmd
}

// serverConfig maps the loaded configuration onto the server, with flags the
// user set taking precedence.
func (a *app) serverConfig(cmd *cobra.Command) (server.Config, error) {
	sc := a.cfg.Server
	f := cmd.Flags()

	if f.Changed("host") {
		sc.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		sc.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		sc.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		sc.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		sc.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		sc.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("max-connections") {
		sc.MaxConnections, _ = f.GetInt("max-connections")
	}
	if f.Changed("requests-per-minute") {
		sc.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("max-data-per-day") {
		sc.MaxDataPerDayMB, _ = f.GetInt("max-data-per-day")
	}

	metricsEnabled := a.cfg.Metrics.Enabled
	if off, _ := f.GetBool("no-metrics"); off {
		metricsEnabled = false
	}

	if sc.Port < 0 || sc.Port > 65535 {
		return server.Config{}, fmt.Errorf("invalid port: %d", sc.Port)
	}

	return server.Config{
		Host:              sc.Host,
		Port:              sc.Port,
		CORSOrigin:        sc.CORSOrigin,
		MaxUploadMB:       int64(sc.MaxUploadMB),
		TimeoutSec:        sc.TimeoutSec,
		ShutdownTimeout:   sc.ShutdownTimeout,
		MaxConnections:    sc.MaxConnections,
		MetricsEnabled:    metricsEnabled,
		MetricsPath:       a.cfg.Metrics.Path,
		RequestsPerMinute: sc.RequestsPerMinute,
		MaxDataPerDayMB:   sc.MaxDataPerDayMB,
		Decoder:           a.cfg.ToPipelineConfig(),
		Scan:              a.cfg.ToScanOptions(),
	}, nil
}
