// Package testutil generates QR fixtures and temp files for tests.
package testutil

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// EnsureDir creates path and any missing parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether something exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// PNGBytes encodes img as PNG in memory.
func PNGBytes(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
