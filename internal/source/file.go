package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register BMP
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP
)

// DefaultMaxInMemoryBytes is the largest blob decoded straight from memory.
const DefaultMaxInMemoryBytes = 32 << 20

// ErrNotImage is returned for blobs whose MIME type is not image/*.
var ErrNotImage = errors.New("source: not an image")

// FileOptions controls blob loading.
type FileOptions struct {
	// MaxInMemoryBytes caps in-memory decoding; larger blobs are spooled to a
	// temporary file first. Zero means DefaultMaxInMemoryBytes.
	MaxInMemoryBytes int64
	// TempDir is where spool files go; empty means os.TempDir.
	TempDir string
}

// MediaType returns the effective MIME type of a blob: the declared one when
// it is specific, otherwise sniffed from head.
func MediaType(declared string, head []byte) string {
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	return mt
}

// LoadFile decodes an image blob, honouring EXIF orientation.
func LoadFile(r io.Reader, declaredType string, opts FileOptions) (Still, error) {
	if r == nil {
		return Still{}, ErrNilSource
	}
	limit := opts.MaxInMemoryBytes
	if limit <= 0 {
		limit = DefaultMaxInMemoryBytes
	}

	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, limit+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return Still{}, fmt.Errorf("read blob: %w", err)
	}

	head := buf.Bytes()
	if len(head) > 512 {
		head = head[:512]
	}
	mt := MediaType(declaredType, head)
	if !strings.HasPrefix(mt, "image/") {
		return Still{}, fmt.Errorf("%w: %s", ErrNotImage, mt)
	}

	if n <= limit {
		img, err := imaging.Decode(&buf, imaging.AutoOrientation(true))
		if err != nil {
			return Still{}, fmt.Errorf("decode %s: %w", mt, err)
		}
		return Still{Image: img}, nil
	}

	img, err := decodeSpooled(io.MultiReader(&buf, r), opts.TempDir)
	if err != nil {
		return Still{}, fmt.Errorf("decode %s: %w", mt, err)
	}
	return Still{Image: img}, nil
}

// decodeSpooled writes the blob to a temporary file and decodes it from
// disk. The file is removed whatever the outcome.
func decodeSpooled(r io.Reader, dir string) (image.Image, error) {
	f, err := os.CreateTemp(dir, "qrscan-*.img")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("Failed to remove spool file", "path", path, "error", rmErr)
		}
	}()

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("spool blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close spool file: %w", err)
	}

	slog.Debug("Decoding spooled blob", "path", path)
	return imaging.Open(path, imaging.AutoOrientation(true))
}

// LoadPath loads an image file from disk, using the extension for the MIME
// type when it is known.
func LoadPath(path string, opts FileOptions) (Still, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Opening user-provided image file is expected
	if err != nil {
		return Still{}, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return LoadFile(f, mime.TypeByExtension(strings.ToLower(filepath.Ext(path))), opts)
}
