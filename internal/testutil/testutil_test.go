package testutil

import (
	"bytes"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, FileExists(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing.png")))
}

func TestPNGBytes(t *testing.T) {
	data := PNGBytes(t, Blank(12, 7, color.White))
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 7, img.Bounds().Dy())
}
