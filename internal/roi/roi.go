// Package roi computes regions of interest for tracked codes: padding a
// detected box, clamping it into the frame and choosing a decode scale.
package roi

import (
	"image"
	"math"
)

// MinEdge is the smallest ROI edge, in pixels, produced when the source is
// large enough to allow it.
const MinEdge = 32

// Rect is a caller-supplied region. With Fractional set, the fields are
// fractions of the source size.
type Rect struct {
	X, Y          float64
	Width, Height float64
	Fractional    bool
}

// PadOptions controls how much context surrounds a detected box.
type PadOptions struct {
	Ratio float64 // fraction of the longer box edge
	Min   int     // pixels
	Max   int     // pixels
}

// DefaultPadOptions pads by 10% of the longer edge, between 4 and 40 px.
func DefaultPadOptions() PadOptions {
	return PadOptions{Ratio: 0.1, Min: 4, Max: 40}
}

// Normalize converts r to an absolute rectangle clamped into a
// srcW x srcH frame.
func Normalize(r Rect, srcW, srcH int) image.Rectangle {
	x, y, w, h := r.X, r.Y, r.Width, r.Height
	if r.Fractional {
		x *= float64(srcW)
		w *= float64(srcW)
		y *= float64(srcH)
		h *= float64(srcH)
	}
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := int(math.Ceil(x + w))
	y1 := int(math.Ceil(y + h))
	return Clamp(image.Rect(x0, y0, x1, y1), srcW, srcH)
}

// Pad grows box on every side and clamps the result into the frame.
func Pad(box image.Rectangle, srcW, srcH int, opts PadOptions) image.Rectangle {
	box = box.Canon()
	longest := max(box.Dx(), box.Dy())
	pad := int(math.Round(float64(longest) * opts.Ratio))
	if opts.Max > 0 && opts.Max >= opts.Min {
		pad = min(pad, opts.Max)
	}
	pad = max(pad, opts.Min, 0)
	return Clamp(box.Inset(-pad), srcW, srcH)
}

// Clamp intersects r with the frame and then enforces MinEdge, growing
// symmetrically and shifting back inside the frame. An r entirely outside
// the frame collapses onto the nearest frame point first.
func Clamp(r image.Rectangle, srcW, srcH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}
	}
	r = r.Canon()
	bounds := image.Rect(0, 0, srcW, srcH)
	in := r.Intersect(bounds)
	if in.Empty() {
		c := image.Pt(
			clampInt((r.Min.X+r.Max.X)/2, 0, srcW-1),
			clampInt((r.Min.Y+r.Max.Y)/2, 0, srcH-1),
		)
		in = image.Rectangle{Min: c, Max: c.Add(image.Pt(1, 1))}
	}
	x0, x1 := expandAxis(in.Min.X, in.Max.X, srcW)
	y0, y1 := expandAxis(in.Min.Y, in.Max.Y, srcH)
	return image.Rect(x0, y0, x1, y1)
}

// expandAxis grows [lo, hi) to at least min(MinEdge, limit) around its
// center and shifts it back into [0, limit).
func expandAxis(lo, hi, limit int) (int, int) {
	want := min(MinEdge, limit)
	if hi-lo >= want {
		return lo, hi
	}
	grow := want - (hi - lo)
	lo -= grow / 2
	hi += grow - grow/2
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > limit {
		lo -= hi - limit
		hi = limit
	}
	return max(lo, 0), hi
}

// AdaptiveScale picks a decode scale for an ROI: small regions are upscaled
// so modules stay resolvable and large ones are downscaled to save work.
func AdaptiveScale(r image.Rectangle, srcW, srcH int, base float64) float64 {
	scale := clampFloat(base, 0.25, 2)
	if srcW <= 0 || srcH <= 0 || r.Empty() {
		return scale
	}
	frac := float64(r.Dx()*r.Dy()) / float64(srcW*srcH)
	switch {
	case frac < 0.10:
		scale = math.Min(scale*1.5, 2)
	case frac > 0.60:
		scale = math.Max(scale*0.8, 0.5)
	}
	return scale
}

// TargetSize is the raster size for decoding r at scale, fit within maxEdge.
func TargetSize(r image.Rectangle, scale float64, maxEdge int) (int, int) {
	w := max(int(math.Round(float64(r.Dx())*scale)), 1)
	h := max(int(math.Round(float64(r.Dy())*scale)), 1)
	return FitEdge(w, h, maxEdge)
}

// FitEdge downscales w x h, preserving aspect ratio, so the longer edge is at
// most maxEdge. Sizes never upscale and never drop below 1.
func FitEdge(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return max(w, 1), max(h, 1)
	}
	s := float64(maxEdge) / float64(max(w, h))
	return max(int(math.Round(float64(w)*s)), 1), max(int(math.Round(float64(h)*s)), 1)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(lo, math.Min(v, hi))
}
