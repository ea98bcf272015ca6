package barcode

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/MeKo-Tech/qrscan/internal/metrics"
)

// ReaderFactory returns a fresh reader for one decode attempt. gozxing readers
// keep per-decode state, so instances are never reused.
type ReaderFactory func() gozxing.Reader

// DefaultReaderFactory builds the gozxing QR reader.
func DefaultReaderFactory() gozxing.Reader { return qrcode.NewQRCodeReader() }

// Engine decodes luminance planes.
type Engine struct {
	newReader ReaderFactory
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithReaderFactory overrides the reader constructor.
func WithReaderFactory(f ReaderFactory) EngineOption {
	return func(e *Engine) {
		if f != nil {
			e.newReader = f
		}
	}
}

// WithLogger sets the logger used for attempt tracing.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		newReader: DefaultReaderFactory,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type binarizerStep struct {
	name string
	make func(gozxing.LuminanceSource) gozxing.Binarizer
}

var binarizers = []binarizerStep{
	{"global", gozxing.NewGlobalHistgramBinarizer},
	{"hybrid", gozxing.NewHybridBinarizer},
}

// Attempt decodes the width*height luminance plane lum. Decode failures are
// returned as *DecodeError; malformed input returns ErrInvalidDimensions or
// ErrShortLuminance.
func (e *Engine) Attempt(lum []byte, width, height int, hints Hints) (*Result, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if len(lum) < width*height {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortLuminance, len(lum), width*height)
	}

	src, err := gozxing.NewPlanarYUVLuminanceSource(lum[:width*height], width, height, 0, 0, width, height, false)
	if err != nil {
		return nil, NewDecodeError(ReasonUnknown, err)
	}

	res, derr := e.pass(src, hints, hints.TryHarder)
	if res != nil {
		return res, nil
	}
	if !hints.TryHarder && derr.Reason.Benign() {
		res, harder := e.pass(src, hints, true)
		if res != nil {
			return res, nil
		}
		derr = moreSpecific(derr, harder)
	}
	return nil, derr
}

// pass runs both binarizers with one hint set. The hybrid binarizer only
// runs when the global one fails benignly.
func (e *Engine) pass(src gozxing.LuminanceSource, h Hints, tryHarder bool) (*Result, *DecodeError) {
	hints := zxingHints(h, tryHarder)
	var last *DecodeError
	for _, b := range binarizers {
		start := time.Now()
		res, err := e.decodeWith(b, src, hints)
		stage := "engine_" + b.name
		if err == nil {
			metrics.ObserveAttempt(stage, "success", time.Since(start))
			return res, nil
		}
		de, _ := AsDecodeError(err)
		metrics.ObserveAttempt(stage, string(de.Reason), time.Since(start))
		e.logger.Debug("Engine attempt failed",
			"binarizer", b.name,
			"try_harder", tryHarder,
			"reason", de.Reason)
		last = moreSpecific(last, de)
		if !de.Reason.Benign() {
			return nil, de
		}
	}
	return nil, last
}

func (e *Engine) decodeWith(b binarizerStep, src gozxing.LuminanceSource, hints map[gozxing.DecodeHintType]interface{}) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = NewDecodeError(ReasonUnknown, fmt.Errorf("reader panic: %v", r))
		}
	}()

	bmp, err := gozxing.NewBinaryBitmap(b.make(src))
	if err != nil {
		return nil, NewDecodeError(Classify(err), err)
	}
	raw, err := e.newReader().Decode(bmp, hints)
	if err != nil {
		return nil, NewDecodeError(Classify(err), err)
	}
	if raw == nil {
		return nil, NewDecodeError(ReasonNotFound, nil)
	}
	return convertResult(raw), nil
}

// Classify maps a gozxing error to a Reason.
func Classify(err error) Reason {
	if err == nil {
		return ""
	}
	if de, ok := AsDecodeError(err); ok {
		return de.Reason
	}
	var nf gozxing.NotFoundException
	if errors.As(err, &nf) {
		return ReasonNotFound
	}
	var ce gozxing.ChecksumException
	if errors.As(err, &ce) {
		return ReasonChecksum
	}
	var fe gozxing.FormatException
	if errors.As(err, &fe) {
		return ReasonFormat
	}
	return ReasonUnknown
}

func moreSpecific(a, b *DecodeError) *DecodeError {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Reason.Rank() > a.Reason.Rank():
		return b
	default:
		return a
	}
}

func convertResult(r *gozxing.Result) *Result {
	out := &Result{
		Text:     r.GetText(),
		RawBytes: r.GetRawBytes(),
		Format:   FormatFromZXing(r.GetBarcodeFormat()),
	}
	for _, p := range r.GetResultPoints() {
		if p == nil {
			continue
		}
		out.Points = append(out.Points, image.Pt(int(math.Round(p.GetX())), int(math.Round(p.GetY()))))
	}
	if md := r.GetResultMetadata(); len(md) > 0 {
		out.Metadata = make(map[string]any, len(md))
		for k, v := range md {
			out.Metadata[fmt.Sprint(k)] = v
		}
	}
	return out
}
