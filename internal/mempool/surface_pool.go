package mempool

import (
	"image"
	"strconv"
)

// DefaultSurfaceCapacity is the number of distinct surface sizes kept.
const DefaultSurfaceCapacity = 12

// SurfacePool caches one NRGBA raster per "{w}x{h}" key. When full, the
// oldest inserted key is evicted.
type SurfacePool struct {
	capacity int
	entries  map[string]*image.NRGBA
	order    []string
}

// NewSurfacePool returns an empty pool. A non-positive capacity selects
// DefaultSurfaceCapacity.
func NewSurfacePool(capacity int) *SurfacePool {
	if capacity <= 0 {
		capacity = DefaultSurfaceCapacity
	}
	return &SurfacePool{capacity: capacity}
}

// Key formats the cache key for a surface size.
func Key(w, h int) string {
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}

// Get returns the cached surface for w×h, allocating it on first use.
// Callers overwrite the whole surface before reading it.
func (p *SurfacePool) Get(w, h int) *image.NRGBA {
	key := Key(w, h)
	if s, ok := p.entries[key]; ok {
		return s
	}
	if p.entries == nil {
		p.entries = make(map[string]*image.NRGBA, p.capacity)
	}
	for len(p.order) >= p.capacity {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.entries, oldest)
	}
	s := image.NewNRGBA(image.Rect(0, 0, w, h))
	p.entries[key] = s
	p.order = append(p.order, key)
	return s
}

// Contains reports whether a w×h surface is cached.
func (p *SurfacePool) Contains(w, h int) bool {
	_, ok := p.entries[Key(w, h)]
	return ok
}

// Len reports the number of cached surfaces.
func (p *SurfacePool) Len() int { return len(p.entries) }

// Capacity reports the configured maximum.
func (p *SurfacePool) Capacity() int { return p.capacity }

// Clear drops every cached surface.
func (p *SurfacePool) Clear() {
	p.entries = nil
	p.order = nil
}
