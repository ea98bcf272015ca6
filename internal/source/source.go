// Package source adapts the things a QR code can be read from (in-memory
// bitmaps, drawn canvases, page elements, uploaded files and video streams)
// to a single rasterizable Frame.
package source

import (
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrNilSource is returned for a nil image, canvas, element or video.
	ErrNilSource = errors.New("source: nil source")
	// ErrEmptyFrame is returned when a source has no pixels.
	ErrEmptyFrame = errors.New("source: empty frame")
	// ErrUnsupportedElement is returned for elements that expose no raster.
	ErrUnsupportedElement = errors.New("source: element has no readable raster")
	// ErrNotReady is returned by videos that have not produced a frame yet.
	ErrNotReady = errors.New("source: no frame available yet")
)

// Frame is a rasterizable image and its intrinsic size.
type Frame struct {
	Image  image.Image
	Width  int
	Height int
}

// Source yields the frame to decode.
type Source interface {
	Frame() (Frame, error)
}

func frameOf(img image.Image) (Frame, error) {
	if img == nil {
		return Frame{}, ErrNilSource
	}
	b := img.Bounds()
	if b.Empty() {
		return Frame{}, fmt.Errorf("%w: %dx%d", ErrEmptyFrame, b.Dx(), b.Dy())
	}
	return Frame{Image: img, Width: b.Dx(), Height: b.Dy()}, nil
}

// Still is an in-memory bitmap.
type Still struct {
	Image image.Image
}

// Frame implements Source.
func (s Still) Frame() (Frame, error) { return frameOf(s.Image) }

// Canvas is a surface something was drawn onto.
type Canvas struct {
	Surface image.Image
}

// NewCanvas returns a transparent w x h canvas.
func NewCanvas(w, h int) *Canvas {
	return &Canvas{Surface: image.NewNRGBA(image.Rect(0, 0, w, h))}
}

// Frame implements Source.
func (c *Canvas) Frame() (Frame, error) {
	if c == nil {
		return Frame{}, ErrNilSource
	}
	return frameOf(c.Surface)
}

// Element is a page element such as an <img>. Bounds reports its intrinsic
// size, empty until loaded; Image returns nil when the element holds no
// readable raster.
type Element interface {
	Bounds() image.Rectangle
	Image() image.Image
}

type elementSource struct{ el Element }

// FromElement adapts an Element.
func FromElement(el Element) (Source, error) {
	if el == nil {
		return nil, ErrNilSource
	}
	return elementSource{el: el}, nil
}

func (e elementSource) Frame() (Frame, error) {
	if b := e.el.Bounds(); b.Empty() {
		return Frame{}, fmt.Errorf("%w: element not loaded", ErrEmptyFrame)
	}
	img := e.el.Image()
	if img == nil {
		return Frame{}, ErrUnsupportedElement
	}
	return frameOf(img)
}

// Video is a live or replayed frame stream.
type Video interface {
	// Size is the current frame size; zero before the first frame.
	Size() (int, int)
	// CurrentFrame returns the frame on display.
	CurrentFrame() (image.Image, error)
}

// FrameNotifier is implemented by videos that announce each new frame, the
// equivalent of a per-frame callback. The channel closes when the stream ends.
type FrameNotifier interface {
	Frames() <-chan time.Time
}

// VideoFrame snapshots the current frame of v.
func VideoFrame(v Video) (Frame, error) {
	if v == nil {
		return Frame{}, ErrNilSource
	}
	if w, h := v.Size(); w <= 0 || h <= 0 {
		return Frame{}, ErrNotReady
	}
	img, err := v.CurrentFrame()
	if err != nil {
		return Frame{}, err
	}
	return frameOf(img)
}
