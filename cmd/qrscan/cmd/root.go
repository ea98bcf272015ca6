package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

// app is the state shared by one command tree: its configuration loader and
// the configuration resolved before a subcommand runs.
type app struct {
	loader  *config.Loader
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds the qrscan command tree on a private viper
// instance, so separate trees never share flag bindings.
func NewRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoaderWithViper(viper.New())}

	root := &cobra.Command{
		Use:   "qrscan",
		Short: "QR code decoding for images, PDFs and video",
		Long: `qrscan finds and decodes QR codes in still images, PDF documents and
animated frame sources, and serves the same pipeline over HTTP.

Decoding tries a native fast-path detector first, then a region of interest
around the detected code, then full-frame passes at increasing resolution.
Video scans alternate between a cheap search mode and a tracking mode that
follows a found code.

Examples:
  qrscan decode ticket.png
  qrscan decode *.jpg --format json
  qrscan pdf invoice.pdf --pages 1-2
  qrscan scan capture.gif
  qrscan serve --port 8080`,
		Version:           version.String(),
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/qrscan, /etc/qrscan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.StringP("format", "f", "text", "output format (text, json, yaml)")
	pf.StringP("output", "o", "", "output file (default: stdout)")

	v := a.loader.GetViper()
	_ = v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("output.format", pf.Lookup("format"))
	_ = v.BindPFlag("output.file", pf.Lookup("output"))

	root.AddCommand(
		newDecodeCommand(a),
		newPDFCommand(a),
		newScanCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
	)
	return root
}

// Execute runs the command tree and exits non-zero on error. It is called
// by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns a fresh root command for tests, which execute it
// without os.Exit.
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// setup loads the configuration and installs the structured logger. Logs go
// to stderr so that stdout carries only command output.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.cfgFile != "" {
		a.cfg, err = a.loader.LoadWithFile(a.cfgFile)
	} else {
		a.cfg, err = a.loader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel(a.cfg),
	}))
	slog.SetDefault(logger)
	return nil
}

func logLevel(cfg *config.Config) slog.Level {
	// --verbose wins over log_level
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// addDecoderFlags registers the decoder overrides shared by decode, pdf and
// scan.
func addDecoderFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("try-harder", false, "start every engine attempt in TRY_HARDER mode")
	cmd.Flags().String("detector", "", "fast-path detector backend (none, zxing, zxing-locate, quirc)")
}

// decoderConfig applies the decoder flags the user set on top of the
// loaded configuration.
func (a *app) decoderConfig(cmd *cobra.Command) pipeline.Config {
	cfg := a.cfg.ToPipelineConfig()
	if cmd.Flags().Changed("try-harder") {
		cfg.TryHarder, _ = cmd.Flags().GetBool("try-harder")
	}
	if cmd.Flags().Changed("detector") {
		cfg.Detector, _ = cmd.Flags().GetString("detector")
	}
	return cfg
}

func (a *app) newDecoder(cmd *cobra.Command) (*pipeline.Decoder, error) {
	return pipeline.NewBuilder().
		WithConfig(a.decoderConfig(cmd)).
		WithLogger(slog.Default()).
		Build()
}
