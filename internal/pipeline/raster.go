package pipeline

import (
	"image"
	"image/draw"
	"math"
	"time"

	xdraw "golang.org/x/image/draw"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/luma"
	"github.com/MeKo-Tech/qrscan/internal/mempool"
	"github.com/MeKo-Tech/qrscan/internal/metrics"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// rasterize draws region (frame coordinates) of f into a pooled w x h
// surface. Every pixel of the surface is overwritten.
func rasterize(f source.Frame, region image.Rectangle, dst *image.NRGBA) {
	src := region.Add(f.Image.Bounds().Min)
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	switch {
	case src.Dx() == w && src.Dy() == h:
		draw.Draw(dst, dst.Bounds(), f.Image, src.Min, draw.Src)
	case w < src.Dx() || h < src.Dy():
		xdraw.BiLinear.Scale(dst, dst.Bounds(), f.Image, src, draw.Src, nil)
	default:
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.Image, src, draw.Src, nil)
	}
}

// attempt rasterizes region at w x h, converts it to luminance and runs the
// engine. Points in the result are mapped back to frame coordinates.
func (d *Decoder) attempt(
	f source.Frame,
	region image.Rectangle,
	w, h int,
	surfaces *mempool.SurfacePool,
	class mempool.Class,
	hints barcode.Hints,
	stage Stage,
) (*Result, error) {
	start := time.Now()

	surf := surfaces.Get(w, h)
	rasterize(f, region, surf)

	lum := d.luma.Ensure(class, w*h)
	if err := luma.FromNRGBA(lum, surf); err != nil {
		return nil, err
	}

	res, err := d.engine.Attempt(lum, w, h, hints)
	outcome := "success"
	if err != nil {
		outcome = string(barcode.Classify(err))
	}
	metrics.ObserveAttempt(string(stage), outcome, time.Since(start))
	d.logger.Debug("Decode attempt",
		"stage", stage,
		"region", region.String(),
		"size", [2]int{w, h},
		"outcome", outcome,
		"duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		return nil, err
	}

	sx := float64(region.Dx()) / float64(w)
	sy := float64(region.Dy()) / float64(h)
	out := &Result{
		Text:     res.Text,
		RawBytes: res.RawBytes,
		Format:   res.Format,
		Metadata: res.Metadata,
		Stage:    stage,
	}
	for _, p := range res.Points {
		out.Points = append(out.Points, image.Pt(
			region.Min.X+int(math.Round(float64(p.X)*sx)),
			region.Min.Y+int(math.Round(float64(p.Y)*sy)),
		))
	}
	out.Box = barcode.SymbolBounds(out.Points).Intersect(image.Rect(0, 0, f.Width, f.Height))
	return out, nil
}
