package pdf

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

// DefaultMinImageEdge skips images too small to hold a version 1 symbol.
const DefaultMinImageEdge = 21

// ProcessorConfig contains configuration for PDF processing.
type ProcessorConfig struct {
	// Decoder configures the decoder each worker owns.
	Decoder pipeline.Config
	// MinImageEdge skips extracted images whose shorter side is smaller.
	MinImageEdge int
	// MaxWorkers bounds page-level concurrency; 0 = NumCPU.
	MaxWorkers int
}

// DefaultProcessorConfig returns the default processor configuration.
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{
		Decoder:      pipeline.DefaultConfig(),
		MinImageEdge: DefaultMinImageEdge,
	}
}

// Processor decodes QR codes from the images of PDF documents.
type Processor struct {
	config    *ProcessorConfig
	passwords *PasswordHandler
	logger    *slog.Logger
}

// NewProcessor creates a processor with the default configuration.
func NewProcessor() *Processor {
	return NewProcessorWithConfig(DefaultProcessorConfig())
}

// NewProcessorWithConfig creates a processor with a custom configuration.
func NewProcessorWithConfig(config *ProcessorConfig) *Processor {
	if config == nil {
		config = DefaultProcessorConfig()
	}
	return &Processor{
		config:    config,
		passwords: NewPasswordHandler(),
		logger:    slog.Default(),
	}
}

// Passwords returns the handler used to resolve credentials.
func (p *Processor) Passwords() *PasswordHandler { return p.passwords }

// ProcessFile decodes every embedded image of filename. pageRange follows
// "1-3,5" syntax; empty means all pages.
func (p *Processor) ProcessFile(ctx context.Context, filename, pageRange string, creds *PasswordCredentials) (*DocumentResult, error) {
	if err := p.config.Decoder.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}
	startTime := time.Now()

	conf, err := p.passwords.Configuration(filename, creds)
	if err != nil {
		return nil, err
	}

	pageImages, err := ExtractImages(filename, pageRange, conf)
	if err != nil {
		return nil, err
	}
	extractTime := time.Since(startTime)
	p.logger.Debug("Extracted PDF images", "file", filename, "pages", len(pageImages), "duration_ms", extractTime.Milliseconds())

	decodeStart := time.Now()
	pages, err := p.processPages(ctx, pageImages)
	if err != nil {
		return nil, err
	}

	total := len(pages)
	if n, err := api.PageCountFile(filename); err == nil {
		total = n
	}

	return &DocumentResult{
		Filename:   filename,
		TotalPages: total,
		Pages:      pages,
		Processing: ProcessingInfo{
			ExtractionTimeMs: extractTime.Milliseconds(),
			DecodeTimeMs:     time.Since(decodeStart).Milliseconds(),
			TotalTimeMs:      time.Since(startTime).Milliseconds(),
		},
	}, nil
}

// ProcessFiles processes several documents in order, stopping at the first error.
func (p *Processor) ProcessFiles(ctx context.Context, filenames []string, pageRange string, creds *PasswordCredentials) ([]*DocumentResult, error) {
	results := make([]*DocumentResult, 0, len(filenames))
	for _, f := range filenames {
		res, err := p.ProcessFile(ctx, f, pageRange, creds)
		if err != nil {
			return nil, fmt.Errorf("failed to process %s: %w", f, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// processPages fans pages out to workers. Decoders are not safe for
// concurrent use, so each worker owns one.
func (p *Processor) processPages(ctx context.Context, pageImages map[int][]image.Image) ([]PageResult, error) {
	pageList := SortedPages(pageImages)
	if len(pageList) == 0 {
		return []PageResult{}, nil
	}

	workers := p.config.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(pageList)))

	jobs := make(chan int, len(pageList))
	for i := range pageList {
		jobs <- i
	}
	close(jobs)

	pages := make([]PageResult, len(pageList))
	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			dec, err := pipeline.NewBuilder().WithConfig(p.config.Decoder).WithLogger(p.logger).Build()
			if err != nil {
				return err
			}
			defer dec.Dispose()

			for i := range jobs {
				num := pageList[i]
				pr, err := p.processPage(gctx, dec, num, pageImages[num])
				if err != nil {
					return fmt.Errorf("failed to process page %d: %w", num, err)
				}
				pages[i] = pr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (p *Processor) processPage(ctx context.Context, dec *pipeline.Decoder, pageNum int, images []image.Image) (PageResult, error) {
	pr := PageResult{PageNumber: pageNum, Images: make([]ImageResult, 0, len(images))}
	for idx, img := range images {
		b := img.Bounds()
		if min(b.Dx(), b.Dy()) < p.config.MinImageEdge {
			p.logger.Debug("Skipping small image", "page", pageNum, "image", idx, "size", b.Size().String())
			continue
		}
		out, err := dec.DecodeImage(ctx, img, nil)
		if err != nil {
			return PageResult{}, err
		}
		pr.Images = append(pr.Images, ImageResult{
			ImageIndex: idx,
			Width:      b.Dx(),
			Height:     b.Dy(),
			Outcome:    out,
		})
	}
	return pr, nil
}
