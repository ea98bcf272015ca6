package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/decoder"
	"github.com/stretchr/testify/require"
)

// QRConfig holds configuration for generating QR rasters.
type QRConfig struct {
	Text       string
	Size       int    // output edge in pixels
	Level      string // L, M, Q or H
	Margin     int    // quiet zone in modules
	Background color.Color
	Foreground color.Color
	Rotation   float64 // degrees, counter-clockwise
}

// DefaultQRConfig returns a 256px level-M symbol with a 4 module quiet zone.
func DefaultQRConfig(text string) QRConfig {
	return QRConfig{
		Text:       text,
		Size:       256,
		Level:      "M",
		Margin:     4,
		Background: color.White,
		Foreground: color.Black,
	}
}

func errorCorrection(level string) (decoder.ErrorCorrectionLevel, error) {
	switch level {
	case "L":
		return decoder.ErrorCorrectionLevel_L, nil
	case "", "M":
		return decoder.ErrorCorrectionLevel_M, nil
	case "Q":
		return decoder.ErrorCorrectionLevel_Q, nil
	case "H":
		return decoder.ErrorCorrectionLevel_H, nil
	default:
		return 0, fmt.Errorf("unknown error correction level %q", level)
	}
}

// GenerateQR renders a QR symbol as an opaque NRGBA raster.
func GenerateQR(cfg QRConfig) (*image.NRGBA, error) {
	ec, err := errorCorrection(cfg.Level)
	if err != nil {
		return nil, err
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("invalid size %d", cfg.Size)
	}

	hints := map[gozxing.EncodeHintType]interface{}{
		gozxing.EncodeHintType_ERROR_CORRECTION: ec,
		gozxing.EncodeHintType_MARGIN:           cfg.Margin,
	}
	bm, err := qrcode.NewQRCodeWriter().Encode(cfg.Text, gozxing.BarcodeFormat_QR_CODE, cfg.Size, cfg.Size, hints)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", cfg.Text, err)
	}

	bg, fg := cfg.Background, cfg.Foreground
	if bg == nil {
		bg = color.White
	}
	if fg == nil {
		fg = color.Black
	}

	w, h := bm.GetWidth(), bm.GetHeight()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if bm.Get(x, y) {
				img.Set(x, y, fg)
			}
		}
	}

	if cfg.Rotation != 0 {
		return imaging.Rotate(img, cfg.Rotation, bg), nil
	}
	return img, nil
}

// MustQR is GenerateQR for tests.
func MustQR(t testing.TB, cfg QRConfig) *image.NRGBA {
	t.Helper()
	img, err := GenerateQR(cfg)
	require.NoError(t, err)
	return img
}

// Blank returns a uniformly filled raster.
func Blank(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// Embed places sym at (x, y) on a white frame of the given size, the way a
// code appears somewhere inside a camera frame.
func Embed(sym image.Image, width, height, x, y int) *image.NRGBA {
	frame := Blank(width, height, color.White)
	r := sym.Bounds()
	draw.Draw(frame, image.Rect(x, y, x+r.Dx(), y+r.Dy()), sym, r.Min, draw.Src)
	return frame
}

// SaveImage saves an image as PNG at path.
func SaveImage(t testing.TB, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// WriteQRFile generates a QR PNG inside dir and returns its path.
func WriteQRFile(t testing.TB, dir, name string, cfg QRConfig) string {
	t.Helper()
	path := filepath.Join(dir, name)
	SaveImage(t, MustQR(t, cfg), path)
	return path
}
