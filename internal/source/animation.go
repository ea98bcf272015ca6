package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kettek/apng"
)

// DefaultFrameDelay is used for frames that declare no delay.
const DefaultFrameDelay = 100 * time.Millisecond

// Animation replays decoded APNG or GIF frames as a Video. Frames are fully
// composited, so CurrentFrame always returns a complete picture.
type Animation struct {
	frames []*image.NRGBA
	delays []time.Duration

	mu     sync.RWMutex
	index  int
	ticks  chan time.Time
	closed bool
}

// NewAnimation builds an animation from composited frames. delays may be
// shorter than frames; missing entries use DefaultFrameDelay.
func NewAnimation(frames []*image.NRGBA, delays []time.Duration) (*Animation, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: animation has no frames", ErrEmptyFrame)
	}
	d := make([]time.Duration, len(frames))
	for i := range d {
		d[i] = DefaultFrameDelay
		if i < len(delays) && delays[i] > 0 {
			d[i] = delays[i]
		}
	}
	return &Animation{frames: frames, delays: d, ticks: make(chan time.Time, 1)}, nil
}

// DecodeAnimation decodes an APNG, GIF or any still image (as a single frame).
func DecodeAnimation(r io.Reader, mimeType string) (*Animation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read animation: %w", err)
	}
	switch MediaType(mimeType, data) {
	case "image/gif":
		return decodeGIF(data)
	case "image/png", "image/apng", "image/vnd.mozilla.apng":
		return decodeAPNG(data)
	default:
		still, err := LoadFile(bytes.NewReader(data), mimeType, FileOptions{})
		if err != nil {
			return nil, err
		}
		return NewAnimation([]*image.NRGBA{toNRGBA(still.Image)}, nil)
	}
}

// OpenAnimation decodes the animation stored at path.
func OpenAnimation(path string) (*Animation, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Opening user-provided animation file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open animation %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	mt := ""
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		mt = "image/gif"
	case ".png", ".apng":
		mt = "image/png"
	}
	return DecodeAnimation(f, mt)
}

func decodeAPNG(data []byte) (*Animation, error) {
	a, err := apng.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode apng: %w", err)
	}
	if len(a.Frames) == 0 {
		return nil, fmt.Errorf("%w: apng has no frames", ErrEmptyFrame)
	}

	canvasRect := a.Frames[0].Image.Bounds()
	for _, fr := range a.Frames[1:] {
		r := fr.Image.Bounds().Add(image.Pt(fr.XOffset, fr.YOffset))
		canvasRect = canvasRect.Union(r)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, canvasRect.Dx(), canvasRect.Dy()))
	frames := make([]*image.NRGBA, 0, len(a.Frames))
	delays := make([]time.Duration, 0, len(a.Frames))
	for _, fr := range a.Frames {
		b := fr.Image.Bounds()
		dst := image.Rect(fr.XOffset, fr.YOffset, fr.XOffset+b.Dx(), fr.YOffset+b.Dy())
		draw.Draw(canvas, dst, fr.Image, b.Min, draw.Over)
		frames = append(frames, cloneNRGBA(canvas))
		delays = append(delays, apngDelay(fr.DelayNumerator, fr.DelayDenominator))
	}
	return NewAnimation(frames, delays)
}

func apngDelay(num, den uint16) time.Duration {
	if num == 0 {
		return 0
	}
	if den == 0 {
		den = 100
	}
	return time.Duration(num) * time.Second / time.Duration(den)
}

func decodeGIF(data []byte) (*Animation, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: gif has no frames", ErrEmptyFrame)
	}

	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	frames := make([]*image.NRGBA, 0, len(g.Image))
	delays := make([]time.Duration, 0, len(g.Image))
	for i, p := range g.Image {
		var previous *image.NRGBA
		if i < len(g.Disposal) && g.Disposal[i] == gif.DisposalPrevious {
			previous = cloneNRGBA(canvas)
		}
		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		frames = append(frames, cloneNRGBA(canvas))
		if i < len(g.Delay) {
			delays = append(delays, time.Duration(g.Delay[i])*10*time.Millisecond)
		}

		if i < len(g.Disposal) {
			switch g.Disposal[i] {
			case gif.DisposalBackground:
				draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
			case gif.DisposalPrevious:
				canvas = previous
			}
		}
	}
	return NewAnimation(frames, delays)
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Len is the number of frames.
func (a *Animation) Len() int { return len(a.frames) }

// Delay returns how long frame i stays on display.
func (a *Animation) Delay(i int) time.Duration { return a.delays[i] }

// Seek displays frame i.
func (a *Animation) Seek(i int) {
	a.mu.Lock()
	a.index = max(0, min(i, len(a.frames)-1))
	a.mu.Unlock()
}

// Size implements Video.
func (a *Animation) Size() (int, int) {
	b := a.frames[0].Bounds()
	return b.Dx(), b.Dy()
}

// CurrentFrame implements Video.
func (a *Animation) CurrentFrame() (image.Image, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frames[a.index], nil
}

// Frames implements FrameNotifier.
func (a *Animation) Frames() <-chan time.Time { return a.ticks }

// Play presents every frame for its delay, announcing each on Frames, then
// closes the channel. It returns early with ctx's error when cancelled.
// Announcements are dropped while the consumer is busy, like a display that
// keeps running while the reader catches up.
func (a *Animation) Play(ctx context.Context) error {
	defer a.close()

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for i := range a.frames {
		a.Seek(i)
		select {
		case a.ticks <- time.Now():
		default:
		}

		timer.Reset(a.delays[i])
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

func (a *Animation) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.ticks)
	}
}
