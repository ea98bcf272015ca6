package pdf

import (
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// PageResult holds the decode outcomes for a single PDF page.
type PageResult struct {
	PageNumber int           `json:"page_number" yaml:"page_number"`
	Images     []ImageResult `json:"images" yaml:"images"`
}

// ImageResult is the outcome for one image extracted from a page.
type ImageResult struct {
	ImageIndex int              `json:"image_index" yaml:"image_index"`
	Width      int              `json:"width" yaml:"width"`
	Height     int              `json:"height" yaml:"height"`
	Outcome    pipeline.Outcome `json:"outcome" yaml:"outcome"`
}

// DocumentResult holds the results for a whole PDF document.
type DocumentResult struct {
	Filename   string         `json:"filename" yaml:"filename"`
	TotalPages int            `json:"total_pages" yaml:"total_pages"`
	Pages      []PageResult   `json:"pages" yaml:"pages"`
	Processing ProcessingInfo `json:"processing" yaml:"processing"`
}

// ProcessingInfo contains timing information.
type ProcessingInfo struct {
	ExtractionTimeMs int64 `json:"extraction_time_ms" yaml:"extraction_time_ms"`
	DecodeTimeMs     int64 `json:"decode_time_ms" yaml:"decode_time_ms"`
	TotalTimeMs      int64 `json:"total_time_ms" yaml:"total_time_ms"`
}

// Codes returns every decoded code in page then image order.
func (d *DocumentResult) Codes() []*pipeline.Result {
	var out []*pipeline.Result
	for _, p := range d.Pages {
		for _, img := range p.Images {
			if img.Outcome.OK() {
				out = append(out, img.Outcome.Result)
			}
		}
	}
	return out
}
