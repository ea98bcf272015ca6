package roi

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestClampProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("clamped rect stays inside the frame with min edge", prop.ForAll(
		func(x, y, w, h, srcW, srcH int) bool {
			r := Clamp(image.Rect(x, y, x+w, y+h), srcW, srcH)
			if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > srcW || r.Max.Y > srcH {
				return false
			}
			return r.Dx() >= min(MinEdge, srcW) && r.Dy() >= min(MinEdge, srcH)
		},
		gen.IntRange(-2000, 2000),
		gen.IntRange(-2000, 2000),
		gen.IntRange(-500, 2000),
		gen.IntRange(-500, 2000),
		gen.IntRange(1, 1920),
		gen.IntRange(1, 1080),
	))

	properties.Property("padded rect contains the in-frame box", prop.ForAll(
		func(x, y, w, h int) bool {
			const srcW, srcH = 1280, 720
			box := image.Rect(x, y, x+w, y+h)
			padded := Pad(box, srcW, srcH, DefaultPadOptions())
			return box.Intersect(image.Rect(0, 0, srcW, srcH)).In(padded)
		},
		gen.IntRange(0, 1200),
		gen.IntRange(0, 700),
		gen.IntRange(1, 400),
		gen.IntRange(1, 400),
	))

	properties.Property("fit edge bounds the longer side", prop.ForAll(
		func(w, h, edge int) bool {
			fw, fh := FitEdge(w, h, edge)
			return fw >= 1 && fh >= 1 && fw <= max(edge, 1) && fh <= max(edge, 1) && fw <= w && fh <= h
		},
		gen.IntRange(1, 8000),
		gen.IntRange(1, 8000),
		gen.IntRange(1, 2000),
	))

	properties.TestingRun(t)
}
