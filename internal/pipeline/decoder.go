// Package pipeline turns frame sources into decoded QR results.
//
// A Decoder runs the one-shot pipeline (fast path, ROI attempts, two
// full-frame passes) and drives continuous video scans. It owns its raster
// surfaces and luminance buffers; nothing is shared between decoders. Calls
// on one Decoder are serialized internally, so at most one decode attempt is
// in flight per instance.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/detector"
	"github.com/MeKo-Tech/qrscan/internal/mempool"
	"github.com/MeKo-Tech/qrscan/internal/roi"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// Decoder is the QR recognition entry point.
type Decoder struct {
	cfg    Config
	engine *barcode.Engine
	fast   *detector.FastPath
	logger *slog.Logger

	luma   *mempool.LumaPool
	shared *mempool.SurfacePool
	crop   *mempool.SurfacePool

	// attemptMu serializes pool access between one-shot calls and the scan
	// goroutine.
	attemptMu sync.Mutex

	mu       sync.Mutex
	scan     *ScanHandle
	disposed bool
}

func newDecoder(cfg Config, engine *barcode.Engine, fast *detector.FastPath, logger *slog.Logger) *Decoder {
	return &Decoder{
		cfg:    cfg,
		engine: engine,
		fast:   fast,
		logger: logger,
		luma:   mempool.NewLumaPool(cfg.PoolCeiling),
		shared: mempool.NewSurfacePool(cfg.SurfaceCapacity),
		crop:   mempool.NewSurfacePool(cfg.SurfaceCapacity),
	}
}

// New builds a Decoder from cfg.
func New(cfg Config) (*Decoder, error) {
	return NewBuilder().WithConfig(cfg).Build()
}

// Config returns the decoder configuration.
func (d *Decoder) Config() Config { return d.cfg }

func (d *Decoder) isDisposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// DecodeImage decodes an in-memory bitmap.
func (d *Decoder) DecodeImage(ctx context.Context, img image.Image, opts *DecodeOptions) (Outcome, error) {
	return d.decodeSource(ctx, source.Still{Image: img}, opts)
}

// DecodeCanvas decodes whatever is drawn on c.
func (d *Decoder) DecodeCanvas(ctx context.Context, c *source.Canvas, opts *DecodeOptions) (Outcome, error) {
	if c == nil {
		return Outcome{}, source.ErrNilSource
	}
	return d.decodeSource(ctx, c, opts)
}

// DecodeElement decodes a loaded page element.
func (d *Decoder) DecodeElement(ctx context.Context, el source.Element, opts *DecodeOptions) (Outcome, error) {
	src, err := source.FromElement(el)
	if err != nil {
		return Outcome{}, err
	}
	return d.decodeSource(ctx, src, opts)
}

// DecodeVideo decodes the frame v currently displays.
func (d *Decoder) DecodeVideo(ctx context.Context, v source.Video, opts *DecodeOptions) (Outcome, error) {
	f, err := source.VideoFrame(v)
	if err != nil {
		return Outcome{}, err
	}
	return d.decodeFrame(ctx, f, opts)
}

// DecodeFile decodes an image blob. mimeType may be empty, in which case the
// type is sniffed; non-image blobs fail with source.ErrNotImage.
func (d *Decoder) DecodeFile(ctx context.Context, r io.Reader, mimeType string, opts *DecodeOptions) (Outcome, error) {
	if d.isDisposed() {
		return Outcome{}, ErrDisposed
	}
	still, err := source.LoadFile(r, mimeType, d.cfg.File)
	if err != nil {
		return Outcome{}, err
	}
	return d.decodeSource(ctx, still, opts)
}

// DecodePath decodes the image file at path.
func (d *Decoder) DecodePath(ctx context.Context, path string, opts *DecodeOptions) (Outcome, error) {
	if d.isDisposed() {
		return Outcome{}, ErrDisposed
	}
	still, err := source.LoadPath(path, d.cfg.File)
	if err != nil {
		return Outcome{}, err
	}
	return d.decodeSource(ctx, still, opts)
}

// DecodeFileInput decodes the first file of a selection, like a file
// picker's primary choice.
func (d *Decoder) DecodeFileInput(ctx context.Context, paths []string, opts *DecodeOptions) (Outcome, error) {
	if len(paths) == 0 {
		return Outcome{}, ErrNoFiles
	}
	return d.DecodePath(ctx, paths[0], opts)
}

// DecodeFiles decodes every path in order. Per-file structural errors are
// recorded in the FileOutcome; the batch stops early only on cancellation
// or disposal.
func (d *Decoder) DecodeFiles(ctx context.Context, paths []string, opts *DecodeOptions) []FileOutcome {
	out := make([]FileOutcome, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			out = append(out, FileOutcome{Path: p, Err: ctx.Err()})
			continue
		}
		o, err := d.DecodePath(ctx, p, opts)
		out = append(out, FileOutcome{Path: p, Outcome: o, Err: err})
		if errors.Is(err, ErrDisposed) {
			break
		}
	}
	return out
}

func (d *Decoder) decodeSource(ctx context.Context, src source.Source, opts *DecodeOptions) (Outcome, error) {
	f, err := src.Frame()
	if err != nil {
		return Outcome{}, err
	}
	return d.decodeFrame(ctx, f, opts)
}

func (d *Decoder) decodeFrame(ctx context.Context, f source.Frame, opts *DecodeOptions) (Outcome, error) {
	if opts == nil {
		opts = &DecodeOptions{}
	}
	d.attemptMu.Lock()
	defer d.attemptMu.Unlock()
	if d.isDisposed() {
		return Outcome{}, ErrDisposed
	}
	return d.run(ctx, f, opts, mempool.ClassNormal)
}

// run executes the one-shot pipeline. Callers hold attemptMu.
func (d *Decoder) run(ctx context.Context, f source.Frame, opts *DecodeOptions, class mempool.Class) (Outcome, error) {
	hints := d.cfg.hints(opts.TryHarder)
	frameRect := image.Rect(0, 0, f.Width, f.Height)
	var best *barcode.DecodeError

	record := func(err error) error {
		de, ok := barcode.AsDecodeError(err)
		if !ok {
			return err
		}
		best = moreSpecific(best, de)
		return nil
	}

	if opts.ROI != nil {
		region := roi.Normalize(*opts.ROI, f.Width, f.Height)
		res, err := d.decodeRegion(f, region, d.cfg.FullEdge, class, hints)
		if err == nil {
			return success(res), nil
		}
		if err := record(err); err != nil {
			return Outcome{}, err
		}
	}

	if !opts.SkipFastPath {
		det := d.detect(ctx, f)
		if v, ok := det.FirstValue(); ok {
			return success(fastPathResult(v)), nil
		}
		for _, reg := range det.Regions {
			if !reg.HasBox() {
				continue
			}
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}
			region := roi.Pad(reg.BoundingBox, f.Width, f.Height, d.cfg.Pad)
			res, err := d.decodeRegion(f, region, d.cfg.FullEdge, class, hints)
			if err == nil {
				return success(res), nil
			}
			if err := record(err); err != nil {
				return Outcome{}, err
			}
		}
	}

	if max(f.Width, f.Height) > d.cfg.FastEdge {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		res, err := d.decodeFull(f, d.cfg.FastEdge, class, hints, StageFast)
		if err == nil {
			return success(res), nil
		}
		if err := record(err); err != nil {
			return Outcome{}, err
		}
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	res, err := d.decodeFull(f, d.cfg.FullEdge, class, hints, StageFull)
	if err == nil {
		return success(res), nil
	}
	if err := record(err); err != nil {
		return Outcome{}, err
	}

	d.logger.Debug("No code decoded", "frame", frameRect.String(), "reason", best.Reason)
	return failure(best), nil
}

// decodeRegion decodes a region of the frame at an adaptive scale through the
// crop surfaces.
func (d *Decoder) decodeRegion(f source.Frame, region image.Rectangle, maxEdge int, class mempool.Class, hints barcode.Hints) (*Result, error) {
	if region.Empty() {
		return nil, barcode.NewDecodeError(barcode.ReasonNotFound, fmt.Errorf("empty region"))
	}
	scale := roi.AdaptiveScale(region, f.Width, f.Height, d.cfg.CropScale)
	w, h := roi.TargetSize(region, scale, maxEdge)
	return d.attempt(f, region, w, h, d.crop, class, hints, StageROI)
}

// decodeFull decodes the whole frame downscaled to maxEdge through the shared
// surfaces.
func (d *Decoder) decodeFull(f source.Frame, maxEdge int, class mempool.Class, hints barcode.Hints, stage Stage) (*Result, error) {
	w, h := roi.FitEdge(f.Width, f.Height, maxEdge)
	return d.attempt(f, image.Rect(0, 0, f.Width, f.Height), w, h, d.shared, class, hints, stage)
}

// detect runs the fast path and converts regions to frame coordinates.
func (d *Decoder) detect(ctx context.Context, f source.Frame) detector.Detection {
	det := d.fast.Detect(ctx, f.Image)
	origin := f.Image.Bounds().Min
	if origin == (image.Point{}) {
		return det
	}
	for i := range det.Regions {
		r := &det.Regions[i]
		r.BoundingBox = r.BoundingBox.Sub(origin)
		for j := range r.CornerPoints {
			r.CornerPoints[j] = r.CornerPoints[j].Sub(origin)
		}
	}
	return det
}

func fastPathResult(r detector.Region) *Result {
	return &Result{
		Text:     r.RawValue,
		RawBytes: []byte(r.RawValue),
		Format:   barcode.FormatQR,
		Points:   r.CornerPoints,
		Box:      r.BoundingBox,
		Stage:    StageFastPath,
	}
}

// moreSpecific keeps the failure that says more: checksum/format over
// not_found over unknown. Ties keep the earlier failure.
func moreSpecific(a, b *barcode.DecodeError) *barcode.DecodeError {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Reason.Rank() > a.Reason.Rank():
		return b
	default:
		return a
	}
}

// Dispose stops any running scan, then releases pools, buffers and the
// cached detector probe. Further calls fail with ErrDisposed.
func (d *Decoder) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	scan := d.scan
	d.scan = nil
	d.mu.Unlock()

	if scan != nil {
		scan.Stop()
		<-scan.Done()
	}

	d.attemptMu.Lock()
	defer d.attemptMu.Unlock()
	d.luma.Reset()
	d.shared.Clear()
	d.crop.Clear()
	d.fast.Reset()
	d.logger.Debug("Decoder disposed")
}
