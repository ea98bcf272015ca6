// Package mempool holds the reusable buffers owned by a single decoder: one
// growable luminance plane per usage class and small caches of raster
// surfaces keyed by their pixel dimensions.
//
// Nothing in this package is safe for concurrent use. A decoder performs at
// most one attempt at a time, so the pools are never shared between
// goroutines.
package mempool

import (
	"github.com/MeKo-Tech/qrscan/internal/metrics"
)

// Class identifies an independently managed luminance buffer.
type Class int

const (
	// ClassNormal backs one-shot decodes.
	ClassNormal Class = iota
	// ClassVideo backs high-frequency video frames.
	ClassVideo

	classCount
)

func (c Class) String() string {
	switch c {
	case ClassNormal:
		return "normal"
	case ClassVideo:
		return "video"
	default:
		return "unknown"
	}
}

// DefaultCeiling is the largest request, in pixels, that is served from the
// pool. Larger requests get a throwaway slice.
const DefaultCeiling = 4 << 20

// growthFactor keeps repeated small increases from reallocating every time.
const growthFactor = 1.25

// LumaPool keeps one growable byte slice per Class. Backing arrays only
// grow; Release drops them.
type LumaPool struct {
	ceiling int
	bufs    [classCount][]byte
}

// NewLumaPool returns an empty pool. A non-positive ceiling selects
// DefaultCeiling.
func NewLumaPool(ceiling int) *LumaPool {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &LumaPool{ceiling: ceiling}
}

// Ceiling reports the pooling limit in pixels.
func (p *LumaPool) Ceiling() int { return p.ceiling }

// Ensure returns a slice of exactly n bytes. Below the ceiling the slice
// aliases the class's backing array and is only valid until the next Ensure
// or Release for that class.
func (p *LumaPool) Ensure(c Class, n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	if n > p.ceiling {
		metrics.PoolBypass(c.String())
		return make([]byte, n)
	}
	buf := p.bufs[c]
	if cap(buf) < n {
		size := int(float64(cap(buf)) * growthFactor)
		if size < n {
			size = n
		}
		if size > p.ceiling {
			size = p.ceiling
		}
		buf = make([]byte, size)
		p.bufs[c] = buf
		metrics.PoolGrow(c.String())
	}
	return buf[:n]
}

// Cap reports the backing capacity currently held for c.
func (p *LumaPool) Cap(c Class) int { return cap(p.bufs[c]) }

// Release drops the backing array for c.
func (p *LumaPool) Release(c Class) { p.bufs[c] = nil }

// Reset drops every class.
func (p *LumaPool) Reset() {
	for i := range p.bufs {
		p.bufs[i] = nil
	}
}
