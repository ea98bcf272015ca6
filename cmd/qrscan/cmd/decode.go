package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/roi"
)

// stdinArg selects standard input as the image source.
const stdinArg = "-"

// DecodeReport is the output record for one decoded file.
type DecodeReport struct {
	File    string            `json:"file" yaml:"file"`
	Outcome *pipeline.Outcome `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Error   string            `json:"error,omitempty" yaml:"error,omitempty"`
}

func newDecodeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode [file...]",
		Short: "Decode QR codes in image files",
		Long: `Decode one QR code from each image file. PNG, JPEG, GIF, BMP, TIFF and
WebP are supported; JPEG orientation from EXIF is applied. Use - to read a
single image from standard input. Directories are scanned for image files,
and --workers decodes several files at once.

Files without a code are reported with a reason and do not fail the command.
Unreadable files are reported and make the command exit non-zero.

Examples:
  qrscan decode ticket.png
  qrscan decode a.png b.jpg --format json
  qrscan decode photo.jpg --roi 0.5,0,0.5,0.5
  qrscan decode ./scans --recursive --workers 4 --exclude '*_thumb.*'
  cat code.png | qrscan decode -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDecode(cmd, args)
		},
	}

	addDecoderFlags(cmd)
	cmd.Flags().String("roi", "", "region to try first as x,y,w,h (pixels, or fractions when all values are <= 1)")
	cmd.Flags().Bool("skip-fast-path", false, "bypass the native detector")
	cmd.Flags().IntP("workers", "w", 1, "number of files decoded in parallel (0 = number of CPUs)")
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().StringSlice("include", nil, "only decode files whose name matches one of these patterns")
	cmd.Flags().StringSlice("exclude", nil, "skip files whose name matches one of these patterns")
	cmd.Flags().Bool("stats", false, "print a processing summary to stderr")
	return cmd
}

func (a *app) runDecode(cmd *cobra.Command, args []string) error {
	opts := &pipeline.DecodeOptions{}
	if s, _ := cmd.Flags().GetString("roi"); s != "" {
		rect, err := roi.ParseRect(s)
		if err != nil {
			return err
		}
		opts.ROI = rect
	}
	opts.TryHarder, _ = cmd.Flags().GetBool("try-harder")
	opts.SkipFastPath, _ = cmd.Flags().GetBool("skip-fast-path")

	ctx := cmd.Context()
	var files []pipeline.FileOutcome
	if len(args) == 1 && args[0] == stdinArg {
		dec, err := a.newDecoder(cmd)
		if err != nil {
			return err
		}
		defer dec.Dispose()
		o, err := dec.DecodeFile(ctx, cmd.InOrStdin(), "", opts)
		files = []pipeline.FileOutcome{{Path: "stdin", Outcome: o, Err: err}}
	} else {
		cfg := batch.Config{
			Decoder: a.decoderConfig(cmd),
			Options: opts,
			Logger:  slog.Default(),
		}
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
		cfg.Recursive, _ = cmd.Flags().GetBool("recursive")
		cfg.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
		cfg.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")

		res, err := batch.Process(ctx, args, cfg)
		if err != nil {
			return err
		}
		files = res.Files
		if stats, _ := cmd.Flags().GetBool("stats"); stats {
			writeStats(cmd.ErrOrStderr(), res.Stats())
		}
	}

	reports := make([]DecodeReport, 0, len(files))
	failed := 0
	for _, f := range files {
		rep := DecodeReport{File: f.Path}
		if f.Err != nil {
			rep.Error = f.Err.Error()
			failed++
		} else {
			rep.Outcome = &f.Outcome
		}
		reports = append(reports, rep)
	}

	if err := writeReport(cmd, a.cfg.Output, reports, func(w io.Writer) error {
		for _, r := range reports {
			var line string
			if r.Outcome != nil {
				line = describeOutcome(*r.Outcome)
			} else {
				line = "error: " + r.Error
			}
			if _, err := fmt.Fprintf(w, "%s: %s\n", r.File, line); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be decoded", failed, len(files))
	}
	return nil
}

func writeStats(w io.Writer, st batch.Stats) {
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", st.Total)
	_, _ = fmt.Fprintf(w, "  Decoded: %d\n", st.Decoded)
	_, _ = fmt.Fprintf(w, "  No code: %d\n", st.NotFound)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", st.Failed)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", st.Workers)
	_, _ = fmt.Fprintf(w, "  Duration: %dms\n", st.DurationMs)
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", st.ThroughputPerSec)
}
