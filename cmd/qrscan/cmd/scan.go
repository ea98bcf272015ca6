package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// ScanReport is one result emitted by a video scan.
type ScanReport struct {
	AtMs    int64            `json:"at_ms" yaml:"at_ms"`
	Mode    string           `json:"mode" yaml:"mode"`
	Outcome pipeline.Outcome `json:"outcome" yaml:"outcome"`
}

// ScanSummary is the structured output of the scan command.
type ScanSummary struct {
	File    string       `json:"file" yaml:"file"`
	ScanID  string       `json:"scan_id" yaml:"scan_id"`
	Frames  int          `json:"frames" yaml:"frames"`
	Results []ScanReport `json:"results" yaml:"results"`
}

func newScanCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <animation>",
		Short: "Run a continuous scan over an animated PNG or GIF",
		Long: `Play an animated PNG or GIF as a video source and run the continuous
scan over it, in real time. Each distinct code is reported once; a code that
stays in view is not repeated. The scan ends with the animation.

Examples:
  qrscan scan capture.gif
  qrscan scan capture.png --max-results 1
  qrscan scan capture.gif --fps-search 30 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args[0])
		},
	}

	addDecoderFlags(cmd)
	cmd.Flags().Int("max-results", 0, "stop after this many results (0 = play to the end)")
	cmd.Flags().Float64("fps-search", 0, "attempt rate while searching (default from config)")
	cmd.Flags().Float64("fps-track", 0, "attempt rate while tracking (default from config)")
	cmd.Flags().Duration("timeout", 0, "stop the scan after this long (0 = no limit)")
	return cmd
}

func (a *app) runScan(cmd *cobra.Command, path string) error {
	anim, err := source.OpenAnimation(path)
	if err != nil {
		return err
	}
	dec, err := a.newDecoder(cmd)
	if err != nil {
		return err
	}
	defer dec.Dispose()

	maxResults, _ := cmd.Flags().GetInt("max-results")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	opts := a.cfg.ToScanOptions()
	if cmd.Flags().Changed("fps-search") {
		opts.FPSSearch, _ = cmd.Flags().GetFloat64("fps-search")
	}
	if cmd.Flags().Changed("fps-track") {
		opts.FPSTrack, _ = cmd.Flags().GetFloat64("fps-track")
	}

	// Text output to stdout streams; structured output is written at the end.
	stream := a.cfg.Output.Format == FormatText && a.cfg.Output.File == ""
	start := time.Now()

	var (
		mu      sync.Mutex
		results []ScanReport
		handle  *pipeline.ScanHandle
		ready   = make(chan struct{})
	)
	opts.OnResult = func(r pipeline.Result) {
		<-ready
		rep := ScanReport{
			AtMs:    time.Since(start).Milliseconds(),
			Mode:    handle.Mode().String(),
			Outcome: pipeline.Outcome{Result: &r},
		}
		mu.Lock()
		results = append(results, rep)
		n := len(results)
		mu.Unlock()

		if stream {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%6dms %s\n", rep.AtMs, describeOutcome(rep.Outcome))
		}
		if maxResults > 0 && n >= maxResults {
			handle.Stop()
		}
	}
	opts.OnError = func(err error) {
		slog.Debug("Scan error", "error", err)
	}

	handle, err = dec.StartVideoScan(ctx, anim, opts)
	if err != nil {
		return err
	}
	close(ready)

	go func() {
		if err := anim.Play(ctx); err != nil {
			slog.Debug("Playback stopped", "error", err)
		}
	}()

	<-handle.Done()
	cancel()

	mu.Lock()
	summary := ScanSummary{File: path, ScanID: handle.ID(), Frames: anim.Len(), Results: results}
	mu.Unlock()

	if stream {
		if len(summary.Results) == 0 {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no code found")
		}
		return nil
	}
	return writeReport(cmd, a.cfg.Output, summary, func(w io.Writer) error {
		for _, r := range summary.Results {
			if _, err := fmt.Fprintf(w, "%6dms %s\n", r.AtMs, describeOutcome(r.Outcome)); err != nil {
				return err
			}
		}
		if len(summary.Results) == 0 {
			_, err := fmt.Fprintln(w, "no code found")
			return err
		}
		return nil
	})
}
