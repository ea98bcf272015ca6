package barcode

import (
	"errors"
	"fmt"
	"image"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatAztec
	FormatPDF417
	FormatCode128
	FormatCode39
	FormatEAN8
	FormatEAN13
	FormatUPCA
	FormatUPCE
	FormatITF
	FormatCodabar
)

// Hints controls engine behavior for one attempt.
type Hints struct {
	// Formats constrains the symbologies the reader looks for.
	Formats []Format

	// TryHarder enables the slower, more exhaustive search from the start.
	TryHarder bool

	// CharacterSet overrides the payload character set (e.g. "UTF-8").
	CharacterSet string
}

// Result is a successful decode in luminance-plane coordinates.
type Result struct {
	Text     string
	RawBytes []byte
	Format   Format
	Points   []image.Point
	Metadata map[string]any
}

// Reason classifies a failed decode.
type Reason string

const (
	// ReasonNotFound means no code pattern was located.
	ReasonNotFound Reason = "not_found"
	// ReasonChecksum means a pattern was found but error correction failed.
	ReasonChecksum Reason = "checksum"
	// ReasonFormat means a pattern was found but is structurally invalid.
	ReasonFormat Reason = "format"
	// ReasonUnknown covers everything else.
	ReasonUnknown Reason = "unknown"
)

// Benign reports whether a failure is an ordinary miss that a more
// expensive strategy may recover from.
func (r Reason) Benign() bool {
	switch r {
	case ReasonNotFound, ReasonChecksum, ReasonFormat:
		return true
	default:
		return false
	}
}

// Rank orders reasons by how much they tell the caller: a located but
// unreadable pattern beats "nothing found", which beats "unknown".
func (r Reason) Rank() int {
	switch r {
	case ReasonChecksum, ReasonFormat:
		return 3
	case ReasonNotFound:
		return 2
	case ReasonUnknown:
		return 1
	default:
		return 0
	}
}

var (
	// ErrInvalidDimensions is returned for non-positive plane sizes.
	ErrInvalidDimensions = errors.New("barcode: invalid dimensions")
	// ErrShortLuminance is returned when the plane is smaller than width*height.
	ErrShortLuminance = errors.New("barcode: luminance buffer too short")
)

// DecodeError is the expected, recoverable failure of a decode attempt.
type DecodeError struct {
	Reason Reason
	Cause  error
}

// NewDecodeError builds a DecodeError.
func NewDecodeError(reason Reason, cause error) *DecodeError {
	return &DecodeError{Reason: reason, Cause: cause}
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("barcode: %s: %v", e.Reason, e.Cause)
	}
	return "barcode: " + string(e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// AsDecodeError extracts a *DecodeError from err.
func AsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// SymbolBounds estimates the symbol rectangle from QR finder-pattern
// centers. Finder centers sit 3.5 modules inside the symbol edge, at most a
// quarter of the center span, so the span is grown by 30% on every side.
func SymbolBounds(points []image.Point) image.Rectangle {
	r := rectFromPoints(points)
	if r.Empty() {
		return r
	}
	mx := (r.Dx()*3 + 9) / 10
	my := (r.Dy()*3 + 9) / 10
	m := max(mx, my)
	return image.Rect(r.Min.X-m, r.Min.Y-m, r.Max.X+m, r.Max.Y+m)
}

func rectFromPoints(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
