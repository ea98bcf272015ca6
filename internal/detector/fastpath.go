package detector

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MeKo-Tech/qrscan/internal/metrics"
)

// Backend is a native detector capability.
type Backend interface {
	// Formats lists the symbologies the backend recognizes.
	Formats(ctx context.Context) ([]string, error)
	// Detect locates (and possibly decodes) codes in img.
	Detect(ctx context.Context, img image.Image) ([]Region, error)
}

// Capability is the cached probe outcome.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilityUnsupported
	CapabilitySupported
)

func (c Capability) String() string {
	switch c {
	case CapabilityUnsupported:
		return "unsupported"
	case CapabilitySupported:
		return "supported"
	default:
		return "unknown"
	}
}

// FastPath wraps an optional Backend.
type FastPath struct {
	backend Backend
	logger  *slog.Logger

	mu    sync.Mutex
	state Capability
	gen   uint64
	group singleflight.Group
}

// NewFastPath creates a FastPath. A nil backend is permanently unsupported.
func NewFastPath(backend Backend, logger *slog.Logger) *FastPath {
	if logger == nil {
		logger = slog.Default()
	}
	return &FastPath{backend: backend, logger: logger}
}

// Capability returns the cached probe state without probing.
func (f *FastPath) Capability() Capability {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Supported probes the backend on first use and caches the answer.
func (f *FastPath) Supported(ctx context.Context) bool {
	f.mu.Lock()
	state, gen := f.state, f.gen
	f.mu.Unlock()
	if state != CapabilityUnknown {
		return state == CapabilitySupported
	}

	v, _, _ := f.group.Do(fmt.Sprintf("probe-%d", gen), func() (any, error) {
		f.mu.Lock()
		if f.gen == gen && f.state != CapabilityUnknown {
			s := f.state
			f.mu.Unlock()
			return s, nil
		}
		f.mu.Unlock()

		s := f.probe(ctx)

		f.mu.Lock()
		if f.gen == gen {
			f.state = s
		}
		f.mu.Unlock()
		return s, nil
	})
	return v.(Capability) == CapabilitySupported
}

func (f *FastPath) probe(ctx context.Context) (c Capability) {
	if f.backend == nil {
		return CapabilityUnsupported
	}
	defer func() {
		if r := recover(); r != nil {
			f.logger.Debug("Fast path probe panicked", "panic", r)
			c = CapabilityUnsupported
		}
	}()

	formats, err := f.backend.Formats(ctx)
	if err != nil {
		f.logger.Debug("Fast path probe failed", "error", err)
		return CapabilityUnsupported
	}
	if !slices.Contains(formats, FormatQRCode) {
		f.logger.Debug("Fast path backend lacks QR support", "formats", formats)
		return CapabilityUnsupported
	}
	return CapabilitySupported
}

// Detect runs the backend on img. Regions are sorted by descending box area.
func (f *FastPath) Detect(ctx context.Context, img image.Image) Detection {
	if img == nil || !f.Supported(ctx) {
		return Detection{}
	}

	regions, err := f.detect(ctx, img)
	if err != nil {
		metrics.FastPath("error")
		f.logger.Debug("Fast path detection failed", "error", err)
		return Detection{Supported: true}
	}

	SortByArea(regions)
	d := Detection{Supported: true, Regions: regions}
	switch {
	case len(regions) == 0:
		metrics.FastPath("none")
	case hasValue(regions):
		metrics.FastPath("value")
	default:
		metrics.FastPath("region")
	}
	return d
}

func (f *FastPath) detect(ctx context.Context, img image.Image) (regions []Region, err error) {
	defer func() {
		if r := recover(); r != nil {
			regions, err = nil, fmt.Errorf("detector panic: %v", r)
		}
	}()
	return f.backend.Detect(ctx, img)
}

// Reset forgets the probe result.
func (f *FastPath) Reset() {
	f.mu.Lock()
	f.state = CapabilityUnknown
	f.gen++
	f.mu.Unlock()
}

func hasValue(regions []Region) bool {
	for _, r := range regions {
		if r.HasValue() {
			return true
		}
	}
	return false
}
