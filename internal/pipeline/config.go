package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/detector"
	"github.com/MeKo-Tech/qrscan/internal/mempool"
	"github.com/MeKo-Tech/qrscan/internal/roi"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// Default full-frame edge budgets.
const (
	DefaultFastEdge = 640
	DefaultFullEdge = 1280
)

// Config holds configuration for a Decoder.
type Config struct {
	// FastEdge is the longest edge of the cheap full-frame pass. It only runs
	// for sources larger than this.
	FastEdge int
	// FullEdge is the longest edge of the expensive full-frame pass.
	FullEdge int

	PoolCeiling     int // luminance pool ceiling in pixels
	SurfaceCapacity int // raster surfaces kept per pool

	Detector     string // fast-path backend name, see detector.NewBackend
	TryHarder    bool
	CharacterSet string

	Pad       roi.PadOptions
	CropScale float64

	File source.FileOptions
}

// DefaultConfig returns the defaults used by the CLI and server.
func DefaultConfig() Config {
	return Config{
		FastEdge:        DefaultFastEdge,
		FullEdge:        DefaultFullEdge,
		PoolCeiling:     mempool.DefaultCeiling,
		SurfaceCapacity: mempool.DefaultSurfaceCapacity,
		Detector:        detector.BackendNone,
		Pad:             roi.DefaultPadOptions(),
		CropScale:       1,
		File:            source.FileOptions{MaxInMemoryBytes: source.DefaultMaxInMemoryBytes},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.FastEdge <= 0 {
		errs = append(errs, fmt.Errorf("fast edge must be positive, got %d", c.FastEdge))
	}
	if c.FullEdge < c.FastEdge {
		errs = append(errs, fmt.Errorf("full edge %d must not be smaller than fast edge %d", c.FullEdge, c.FastEdge))
	}
	if c.PoolCeiling <= 0 {
		errs = append(errs, fmt.Errorf("pool ceiling must be positive, got %d", c.PoolCeiling))
	}
	if c.SurfaceCapacity <= 0 {
		errs = append(errs, fmt.Errorf("surface capacity must be positive, got %d", c.SurfaceCapacity))
	}
	if c.Pad.Ratio < 0 || c.Pad.Min < 0 || (c.Pad.Max > 0 && c.Pad.Max < c.Pad.Min) {
		errs = append(errs, fmt.Errorf("invalid pad options %+v", c.Pad))
	}
	if c.CropScale <= 0 {
		errs = append(errs, fmt.Errorf("crop scale must be positive, got %g", c.CropScale))
	}
	return errors.Join(errs...)
}

func (c Config) hints(tryHarder bool) barcode.Hints {
	return barcode.Hints{
		Formats:      []barcode.Format{barcode.FormatQR},
		TryHarder:    c.TryHarder || tryHarder,
		CharacterSet: c.CharacterSet,
	}
}

// Builder constructs a Decoder with fluent configuration.
type Builder struct {
	cfg        Config
	backend    detector.Backend
	hasBackend bool
	engine     *barcode.Engine
	logger     *slog.Logger
}

// NewBuilder creates a new builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithEdges sets the fast and full edge budgets.
func (b *Builder) WithEdges(fast, full int) *Builder {
	if fast > 0 {
		b.cfg.FastEdge = fast
	}
	if full > 0 {
		b.cfg.FullEdge = full
	}
	return b
}

// WithDetector selects a fast-path backend by name.
func (b *Builder) WithDetector(name string) *Builder {
	b.cfg.Detector = name
	return b
}

// WithDetectorBackend installs a backend directly, overriding the name.
func (b *Builder) WithDetectorBackend(be detector.Backend) *Builder {
	b.backend = be
	b.hasBackend = true
	return b
}

// WithEngine overrides the decode engine.
func (b *Builder) WithEngine(e *barcode.Engine) *Builder {
	b.engine = e
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithTryHarder makes every attempt start in TRY_HARDER mode.
func (b *Builder) WithTryHarder(v bool) *Builder {
	b.cfg.TryHarder = v
	return b
}

// WithPad sets ROI padding and crop scale.
func (b *Builder) WithPad(p roi.PadOptions, cropScale float64) *Builder {
	b.cfg.Pad = p
	if cropScale > 0 {
		b.cfg.CropScale = cropScale
	}
	return b
}

// Build validates the configuration and returns the Decoder.
func (b *Builder) Build() (*Decoder, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}

	backend := b.backend
	if !b.hasBackend {
		be, err := detector.NewBackend(b.cfg.Detector)
		if err != nil {
			return nil, err
		}
		backend = be
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := b.engine
	if engine == nil {
		engine = barcode.NewEngine(barcode.WithLogger(logger))
	}
	return newDecoder(b.cfg, engine, detector.NewFastPath(backend, logger), logger), nil
}
