package source

import (
	"bytes"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// Feed is a push-based Video: a producer (such as a remote camera) pushes
// frames and a scan consumes whichever frame is current.
type Feed struct {
	mu      sync.RWMutex
	current image.Image
	ticks   chan time.Time
	closed  bool
	pushed  uint64
	dropped uint64
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{ticks: make(chan time.Time, 1)}
}

// Push makes img the current frame and announces it. If the previous
// announcement has not been consumed yet it is coalesced with this one.
func (f *Feed) Push(img image.Image) error {
	if _, err := frameOf(img); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return fmt.Errorf("source: push to closed feed")
	}
	f.current = img
	f.pushed++
	select {
	case f.ticks <- time.Now():
	default:
		f.dropped++
	}
	return nil
}

// PushEncoded decodes a JPEG/PNG/GIF/WebP frame and pushes it.
func (f *Feed) PushEncoded(data []byte) error {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return f.Push(img)
}

// Close ends the stream; Frames is closed and further pushes fail.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ticks)
	}
}

// Stats returns the number of pushed and coalesced frames.
func (f *Feed) Stats() (pushed, coalesced uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pushed, f.dropped
}

// Size implements Video.
func (f *Feed) Size() (int, int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return 0, 0
	}
	b := f.current.Bounds()
	return b.Dx(), b.Dy()
}

// CurrentFrame implements Video.
func (f *Feed) CurrentFrame() (image.Image, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return nil, ErrNotReady
	}
	return f.current, nil
}

// Frames implements FrameNotifier.
func (f *Feed) Frames() <-chan time.Time { return f.ticks }
