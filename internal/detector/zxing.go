package detector

import (
	"context"
	"errors"
	"image"
	"math"

	gozxing "github.com/makiuchi-d/gozxing"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
)

// ZXingBackend detects codes with gozxing's multi-symbol QR reader.
type ZXingBackend struct {
	// LocateOnly drops decoded values and reports boxes only, mimicking
	// detectors that locate codes they cannot read.
	LocateOnly bool
}

// Formats implements Backend.
func (b *ZXingBackend) Formats(context.Context) ([]string, error) {
	return []string{FormatQRCode}, nil
}

// Detect implements Backend.
func (b *ZXingBackend) Detect(ctx context.Context, img image.Image) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}
	results, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bmp, nil)
	if err != nil {
		var nf gozxing.NotFoundException
		if errors.As(err, &nf) {
			return nil, nil
		}
		return nil, err
	}

	origin := img.Bounds().Min
	regions := make([]Region, 0, len(results))
	for _, r := range results {
		var corners []image.Point
		for _, p := range r.GetResultPoints() {
			if p == nil {
				continue
			}
			corners = append(corners, image.Pt(
				origin.X+int(math.Round(p.GetX())),
				origin.Y+int(math.Round(p.GetY())),
			))
		}
		reg := Region{
			RawValue:     r.GetText(),
			CornerPoints: corners,
			BoundingBox:  barcode.SymbolBounds(corners).Intersect(img.Bounds()),
		}
		if b.LocateOnly {
			reg.RawValue = ""
		}
		regions = append(regions, reg)
	}
	return regions, nil
}
