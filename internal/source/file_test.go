package source

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
)

func qrPNG(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.MustQR(t, testutil.DefaultQRConfig(text))))
	return buf.Bytes()
}

func TestMediaType(t *testing.T) {
	pngData := qrPNG(t, "X")

	assert.Equal(t, "image/png", MediaType("", pngData))
	assert.Equal(t, "image/png", MediaType("application/octet-stream", pngData))
	assert.Equal(t, "image/jpeg", MediaType("image/jpeg; q=0.9", pngData))
	assert.Equal(t, "text/plain", MediaType("", []byte("hello world")))
}

func TestLoadFile_InMemory(t *testing.T) {
	dir := t.TempDir()
	still, err := LoadFile(bytes.NewReader(qrPNG(t, "MEM")), "image/png", FileOptions{TempDir: dir})
	require.NoError(t, err)

	f, err := still.Frame()
	require.NoError(t, err)
	assert.Equal(t, 256, f.Width)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadFile_SpoolsLargeBlobsAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	still, err := LoadFile(bytes.NewReader(qrPNG(t, "DISK")), "", FileOptions{MaxInMemoryBytes: 64, TempDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 256, still.Image.Bounds().Dx())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "spool file must be removed")
}

func TestLoadFile_SpoolCleanupOnDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 256)...)

	_, err := LoadFile(bytes.NewReader(data), "image/png", FileOptions{MaxInMemoryBytes: 16, TempDir: dir})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadFile_RejectsNonImages(t *testing.T) {
	_, err := LoadFile(strings.NewReader("just text"), "text/plain", FileOptions{})
	assert.True(t, errors.Is(err, ErrNotImage))

	_, err = LoadFile(strings.NewReader("just text"), "", FileOptions{})
	assert.True(t, errors.Is(err, ErrNotImage))

	_, err = LoadFile(nil, "image/png", FileOptions{})
	assert.True(t, errors.Is(err, ErrNilSource))
}

func TestLoadFile_CorruptImage(t *testing.T) {
	_, err := LoadFile(strings.NewReader("not really a png"), "image/png", FileOptions{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotImage))
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteQRFile(t, dir, "code.png", testutil.DefaultQRConfig("PATH"))

	still, err := LoadPath(path, FileOptions{})
	require.NoError(t, err)
	assert.NotNil(t, still.Image)

	_, err = LoadPath(filepath.Join(dir, "missing.png"), FileOptions{})
	assert.Error(t, err)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o600))
	_, err = LoadPath(txt, FileOptions{})
	assert.True(t, errors.Is(err, ErrNotImage))
}
