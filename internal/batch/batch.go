// Package batch decodes many image files in parallel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// ErrNoFiles is returned when discovery finds nothing to decode.
var ErrNoFiles = errors.New("no image files found")

// Config holds all configuration for batch decoding.
type Config struct {
	// Decoder configures the decoder each worker owns.
	Decoder pipeline.Config
	// Options apply to every file.
	Options *pipeline.DecodeOptions
	// Workers bounds concurrency; 0 = NumCPU.
	Workers int

	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	Logger *slog.Logger
}

// DefaultConfig returns a single-worker configuration.
func DefaultConfig() Config {
	return Config{Decoder: pipeline.DefaultConfig(), Workers: 1}
}

// Result holds the outcome of a batch run, in discovery order.
type Result struct {
	Files       []pipeline.FileOutcome
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes a batch run.
type Stats struct {
	Total            int     `json:"total" yaml:"total"`
	Decoded          int     `json:"decoded" yaml:"decoded"`
	NotFound         int     `json:"not_found" yaml:"not_found"`
	Failed           int     `json:"failed" yaml:"failed"`
	Workers          int     `json:"workers" yaml:"workers"`
	DurationMs       int64   `json:"duration_ms" yaml:"duration_ms"`
	ThroughputPerSec float64 `json:"throughput_per_sec" yaml:"throughput_per_sec"`
}

// Stats counts decoded, missed and failed files.
func (r *Result) Stats() Stats {
	s := Stats{Total: len(r.Files), Workers: r.WorkerCount, DurationMs: r.Duration.Milliseconds()}
	for _, f := range r.Files {
		switch {
		case f.Err != nil:
			s.Failed++
		case f.Outcome.OK():
			s.Decoded++
		default:
			s.NotFound++
		}
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		s.ThroughputPerSec = float64(s.Total) / secs
	}
	return s
}

// Process discovers the images named by args and decodes them.
func Process(ctx context.Context, args []string, cfg Config) (*Result, error) {
	files, err := Discover(args, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return DecodeAll(ctx, files, cfg)
}

// DecodeAll decodes files with cfg.Workers workers. Decoders are not safe
// for concurrent use, so each worker builds its own. Per-file errors are
// kept in the result; only decoder construction fails the batch.
func DecodeAll(ctx context.Context, files []string, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(files)))

	jobs := make(chan int, len(files))
	for i := range files {
		jobs <- i
	}
	close(jobs)

	start := time.Now()
	out := make([]pipeline.FileOutcome, len(files))
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			dec, err := pipeline.NewBuilder().WithConfig(cfg.Decoder).WithLogger(logger).Build()
			if err != nil {
				return fmt.Errorf("failed to build decoder: %w", err)
			}
			defer dec.Dispose()

			for i := range jobs {
				path := files[i]
				if ctx.Err() != nil {
					out[i] = pipeline.FileOutcome{Path: path, Err: ctx.Err()}
					continue
				}
				o, err := dec.DecodePath(ctx, path, cfg.Options)
				out[i] = pipeline.FileOutcome{Path: path, Outcome: o, Err: err}
				logger.Debug("Decoded file", "file", path, "ok", o.OK(), "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{Files: out, Duration: time.Since(start), WorkerCount: workers}, nil
}
