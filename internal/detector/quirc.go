package detector

import (
	"context"
	"image"

	"github.com/liyue201/goqr"
)

// QuircBackend detects codes with goqr, a pure Go port of quirc. It reports
// decoded values without locations.
type QuircBackend struct{}

// Formats implements Backend.
func (QuircBackend) Formats(context.Context) ([]string, error) {
	return []string{FormatQRCode}, nil
}

// Detect implements Backend.
func (QuircBackend) Detect(ctx context.Context, img image.Image) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	codes, err := goqr.Recognize(img)
	if err != nil {
		// goqr reports "no code" as an error as well.
		if len(codes) == 0 {
			return nil, nil
		}
		return nil, err
	}
	regions := make([]Region, 0, len(codes))
	for _, c := range codes {
		if c == nil || len(c.Payload) == 0 {
			continue
		}
		regions = append(regions, Region{RawValue: string(c.Payload)})
	}
	return regions, nil
}
