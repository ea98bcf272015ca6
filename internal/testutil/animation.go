package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var bilevel = color.Palette{color.White, color.Black}

// EncodeQRGIF writes an animated GIF with one frame per entry of texts. An
// empty entry produces a blank frame.
func EncodeQRGIF(w io.Writer, texts []string, delay time.Duration) error {
	anim := &gif.GIF{}
	for _, text := range texts {
		var src image.Image = Blank(256, 256, color.White)
		if text != "" {
			sym, err := GenerateQR(DefaultQRConfig(text))
			if err != nil {
				return err
			}
			src = sym
		}
		frame := image.NewPaletted(src.Bounds(), bilevel)
		draw.Draw(frame, frame.Bounds(), src, src.Bounds().Min, draw.Src)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, int(delay/(10*time.Millisecond)))
	}
	return gif.EncodeAll(w, anim)
}

// WriteQRGIF is EncodeQRGIF into dir/name for tests. It returns the path.
func WriteQRGIF(t testing.TB, dir, name string, texts []string, delay time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	require.NoError(t, EncodeQRGIF(f, texts, delay))
	return path
}
