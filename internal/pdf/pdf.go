// Package pdf finds QR codes in the raster images embedded in PDF files.
package pdf

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/tiff" // pdfcpu extracts CCITT and some flate images as TIFF
)

// ExtractImages extracts all images from a PDF file using pdfcpu, grouped by
// page number. conf may be nil; it carries passwords for encrypted files.
func ExtractImages(filename string, pageRange string, conf *model.Configuration) (map[int][]image.Image, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "qrscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, pageNum := range pageNumbers {
			pageStrings[i] = strconv.Itoa(pageNum)
		}
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	result, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return result, nil
}

// SortedPages returns the page numbers of an extraction in ascending order.
func SortedPages(pages map[int][]image.Image) []int {
	out := make([]int, 0, len(pages))
	for n := range pages {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func loadImageFile(path string) (image.Image, error) {
	return imaging.Open(path) //nolint:gosec // G304: files come from our own extraction dir
}

// collectExtractedImages groups the files pdfcpu wrote into dir by page.
// Images of one page keep file name order; files that are not page images
// or cannot be decoded are skipped.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	result := make(map[int][]image.Image)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pageNum, err := parsePageFromFilename(e.Name())
		if err != nil {
			continue
		}
		img, err := loadImageFile(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Debug("Skipping unreadable extracted image", "file", e.Name(), "error", err)
			continue
		}
		result[pageNum] = append(result[pageNum], img)
	}
	return result, nil
}

// parsePageFromFilename reads the page number pdfcpu encodes in the names of
// extracted images: <doc>_<page>_<object>.<ext>. The older
// page_<page>_image_<n>.<ext> layout is accepted too.
func parsePageFromFilename(filename string) (int, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")

	var token string
	switch {
	case len(parts) >= 2 && parts[0] == "page":
		token = parts[1]
	case len(parts) >= 3:
		token = parts[len(parts)-2]
	default:
		return 0, fmt.Errorf("not an extracted page image: %s", filename)
	}

	page, err := strconv.Atoi(token)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page number in %s", filename)
	}
	return page, nil
}

// parsePageRange turns "1-3,5" into a sorted list of distinct pages.
// Empty means all pages.
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(pageRange, ",") {
		from, to, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		for p := from; p <= to; p++ {
			seen[p] = true
		}
	}

	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

// parseRangeToken parses "3" or "1-5" into an inclusive 1-based range.
func parseRangeToken(part string) (int, int, error) {
	lo, hi, isRange := strings.Cut(part, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || from < 1 {
		return 0, 0, fmt.Errorf("invalid page number: %q", part)
	}
	if !isRange {
		return from, from, nil
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || to < 1 {
		return 0, 0, fmt.Errorf("invalid end page: %q", part)
	}
	if from > to {
		return 0, 0, fmt.Errorf("start page %d greater than end page %d", from, to)
	}
	return from, to, nil
}
