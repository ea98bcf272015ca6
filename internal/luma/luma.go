// Package luma converts RGBA rasters into single-channel luminance planes
// suitable for the barcode engine. Transparent pixels are composited over a
// white background so that codes printed on transparent images stay readable.
package luma

import (
	"errors"
	"fmt"
	"image"
)

// ErrShortBuffer is returned when a source or destination buffer cannot hold
// the requested number of pixels.
var ErrShortBuffer = errors.New("luma: buffer too short")

// Pixel returns the luminance of a single non-premultiplied RGBA pixel,
// composited over white.
func Pixel(r, g, b, a uint8) uint8 {
	y := (54*uint32(r) + 183*uint32(g) + 19*uint32(b) + 128) >> 8
	switch a {
	case 255:
		return uint8(y)
	case 0:
		return 255
	}
	alpha := uint32(a)
	return uint8((y*alpha + 255*(255-alpha) + 128) >> 8)
}

// FromRGBA writes one luminance byte per pixel into dst. src holds tightly
// packed, non-premultiplied RGBA samples. Buffer sizing is the caller's
// responsibility; use Convert for a checked variant.
func FromRGBA(dst, src []byte, pixels int) {
	for i, j := 0, 0; i < pixels; i, j = i+1, j+4 {
		dst[i] = Pixel(src[j], src[j+1], src[j+2], src[j+3])
	}
}

// Convert is FromRGBA with length checks.
func Convert(dst, src []byte, pixels int) error {
	if pixels < 0 {
		return fmt.Errorf("%w: negative pixel count %d", ErrShortBuffer, pixels)
	}
	if len(dst) < pixels {
		return fmt.Errorf("%w: destination has %d bytes, need %d", ErrShortBuffer, len(dst), pixels)
	}
	if len(src) < pixels*4 {
		return fmt.Errorf("%w: source has %d bytes, need %d", ErrShortBuffer, len(src), pixels*4)
	}
	FromRGBA(dst, src, pixels)
	return nil
}

// FromNRGBA converts img row by row, honouring its stride so sub-images work.
// dst must hold at least Dx*Dy bytes.
func FromNRGBA(dst []byte, img *image.NRGBA) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if len(dst) < w*h {
		return fmt.Errorf("%w: destination has %d bytes, need %d", ErrShortBuffer, len(dst), w*h)
	}
	if img.Stride == 4*w {
		start := img.PixOffset(b.Min.X, b.Min.Y)
		FromRGBA(dst, img.Pix[start:], w*h)
		return nil
	}
	for y := 0; y < h; y++ {
		row := img.PixOffset(b.Min.X, b.Min.Y+y)
		FromRGBA(dst[y*w:], img.Pix[row:row+4*w], w)
	}
	return nil
}
