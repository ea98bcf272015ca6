package roi

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPad(t *testing.T) {
	tests := []struct {
		name string
		box  image.Rectangle
		w, h int
		opts PadOptions
		want image.Rectangle
	}{
		{
			name: "ratio padding",
			box:  image.Rect(100, 100, 300, 200),
			w:    640, h: 480,
			opts: DefaultPadOptions(),
			want: image.Rect(80, 80, 320, 220),
		},
		{
			name: "padding capped at max",
			box:  image.Rect(100, 100, 600, 400),
			w:    1280, h: 720,
			opts: DefaultPadOptions(),
			want: image.Rect(60, 60, 640, 440),
		},
		{
			name: "padding floored at min",
			box:  image.Rect(100, 100, 140, 140),
			w:    640, h: 480,
			opts: DefaultPadOptions(),
			want: image.Rect(96, 96, 144, 144),
		},
		{
			name: "clamped at frame edge",
			box:  image.Rect(0, 0, 100, 100),
			w:    640, h: 480,
			opts: DefaultPadOptions(),
			want: image.Rect(0, 0, 110, 110),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pad(tt.box, tt.w, tt.h, tt.opts))
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		r    image.Rectangle
		w, h int
		want image.Rectangle
	}{
		{"inside untouched", image.Rect(10, 10, 100, 100), 640, 480, image.Rect(10, 10, 100, 100)},
		{"overhang trimmed", image.Rect(-20, 400, 100, 600), 640, 480, image.Rect(0, 400, 100, 480)},
		{"tiny grown to min edge", image.Rect(50, 50, 52, 52), 640, 480, image.Rect(35, 35, 67, 67)},
		{"grown box shifted back inside", image.Rect(0, 0, 4, 4), 640, 480, image.Rect(0, 0, 32, 32)},
		{"far corner shifted back", image.Rect(636, 476, 640, 480), 640, 480, image.Rect(608, 448, 640, 480)},
		{"source smaller than min edge", image.Rect(2, 2, 4, 4), 20, 10, image.Rect(0, 0, 20, 10)},
		{"entirely outside", image.Rect(1000, 1000, 1100, 1100), 640, 480, image.Rect(608, 448, 640, 480)},
		{"empty source", image.Rect(0, 0, 10, 10), 0, 0, image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.r, tt.w, tt.h))
		})
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(Rect{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.25, Fractional: true}, 400, 200)
	assert.Equal(t, image.Rect(100, 100, 300, 150), got)

	got = Normalize(Rect{X: 10.4, Y: 10.6, Width: 50, Height: 50}, 400, 200)
	assert.Equal(t, image.Rect(10, 10, 61, 61), got)
}

func TestAdaptiveScale(t *testing.T) {
	const w, h = 1000, 1000
	small := image.Rect(0, 0, 100, 100) // 1%
	mid := image.Rect(0, 0, 500, 500)   // 25%
	large := image.Rect(0, 0, 900, 900) // 81%

	assert.InDelta(t, 1.5, AdaptiveScale(small, w, h, 1), 1e-9)
	assert.InDelta(t, 2.0, AdaptiveScale(small, w, h, 1.8), 1e-9)
	assert.InDelta(t, 1.0, AdaptiveScale(mid, w, h, 1), 1e-9)
	assert.InDelta(t, 0.8, AdaptiveScale(large, w, h, 1), 1e-9)
	assert.InDelta(t, 0.5, AdaptiveScale(large, w, h, 0.25), 1e-9)
	assert.InDelta(t, 2.0, AdaptiveScale(mid, w, h, 5), 1e-9)
	assert.InDelta(t, 0.25, AdaptiveScale(mid, w, h, 0.1), 1e-9)
}

func TestTargetSize(t *testing.T) {
	w, h := TargetSize(image.Rect(0, 0, 100, 50), 1.5, 1280)
	assert.Equal(t, 150, w)
	assert.Equal(t, 75, h)

	w, h = TargetSize(image.Rect(0, 0, 1000, 500), 2, 1280)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 640, h)
}

func TestFitEdge(t *testing.T) {
	tests := []struct {
		w, h, edge int
		ww, wh     int
	}{
		{1920, 1080, 640, 640, 360},
		{1080, 1920, 1280, 720, 1280},
		{300, 200, 640, 300, 200},
		{5000, 1, 100, 100, 1},
		{0, 0, 640, 1, 1},
	}
	for _, tt := range tests {
		w, h := FitEdge(tt.w, tt.h, tt.edge)
		assert.Equal(t, tt.ww, w, "%dx%d@%d", tt.w, tt.h, tt.edge)
		assert.Equal(t, tt.wh, h, "%dx%d@%d", tt.w, tt.h, tt.edge)
	}
}
