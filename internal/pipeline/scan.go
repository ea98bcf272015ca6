package pipeline

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/detector"
	"github.com/MeKo-Tech/qrscan/internal/mempool"
	"github.com/MeKo-Tech/qrscan/internal/metrics"
	"github.com/MeKo-Tech/qrscan/internal/roi"
	"github.com/MeKo-Tech/qrscan/internal/source"
)

// AnimationFrameRate is the tick rate used when a video cannot announce its
// own frames.
const AnimationFrameRate = 60

// Scheduler paces a scan. Next blocks until the next frame should be
// processed; ok is false once the stream has ended or ctx is done.
type Scheduler interface {
	Next(ctx context.Context) (t time.Time, ok bool)
}

// FrameClock schedules on a video's own frame announcements.
type FrameClock struct {
	C <-chan time.Time
}

// Next implements Scheduler.
func (c FrameClock) Next(ctx context.Context) (time.Time, bool) {
	select {
	case <-ctx.Done():
		return time.Time{}, false
	case t, ok := <-c.C:
		return t, ok
	}
}

// TickerScheduler schedules at a fixed rate.
type TickerScheduler struct {
	ticker *time.Ticker
}

// NewTickerScheduler ticks fps times per second.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = AnimationFrameRate
	}
	return &TickerScheduler{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// Next implements Scheduler.
func (s *TickerScheduler) Next(ctx context.Context) (time.Time, bool) {
	select {
	case <-ctx.Done():
		return time.Time{}, false
	case t := <-s.ticker.C:
		return t, true
	}
}

// Stop releases the ticker.
func (s *TickerScheduler) Stop() { s.ticker.Stop() }

// ScanHandle controls a running video scan.
type ScanHandle struct {
	id      string
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
	mode    atomic.Int32
	once    sync.Once
}

// ID identifies the scan in logs.
func (h *ScanHandle) ID() string { return h.id }

// IsRunning reports whether the scan still schedules frames.
func (h *ScanHandle) IsRunning() bool { return h.running.Load() }

// Mode returns the current scan mode.
func (h *ScanHandle) Mode() Mode { return Mode(h.mode.Load()) }

// Done is closed once the scan goroutine has exited and released its buffer.
func (h *ScanHandle) Done() <-chan struct{} { return h.done }

// Stop ends the scan at the next scheduling checkpoint. It never blocks and
// may be called any number of times.
func (h *ScanHandle) Stop() {
	h.once.Do(func() {
		h.running.Store(false)
		h.cancel()
	})
}

// StartVideoScan scans v continuously until Stop, ctx cancellation or the
// end of the stream. Only one scan runs per Decoder; starting a new one
// stops the previous scan first.
func (d *Decoder) StartVideoScan(ctx context.Context, v source.Video, opts ScanOptions) (*ScanHandle, error) {
	if v == nil {
		return nil, source.ErrNilSource
	}
	if opts.OnResult == nil {
		return nil, ErrMissingOnResult
	}
	opts = opts.WithDefaults()

	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return nil, ErrDisposed
	}
	prev := d.scan
	d.mu.Unlock()
	if prev != nil {
		prev.Stop()
		<-prev.Done()
	}

	sched := opts.Scheduler
	var ticker *TickerScheduler
	if sched == nil {
		if n, ok := v.(source.FrameNotifier); ok {
			sched = FrameClock{C: n.Frames()}
		} else {
			ticker = NewTickerScheduler(AnimationFrameRate)
			sched = ticker
		}
	}

	scanCtx, cancel := context.WithCancel(ctx)
	h := &ScanHandle{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.running.Store(true)
	h.mode.Store(int32(ModeSearch))

	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		cancel()
		if ticker != nil {
			ticker.Stop()
		}
		return nil, ErrDisposed
	}
	d.scan = h
	d.mu.Unlock()

	logger := d.logger.With("scan_id", h.id)
	logger.Info("Video scan started",
		"fps_search", opts.FPSSearch,
		"fps_track", opts.FPSTrack,
		"max_edge_search", opts.MaxEdgeSearch,
		"max_edge_full", opts.MaxEdgeFull)
	metrics.ScanStarted()

	go func() {
		defer close(h.done)
		defer metrics.ScanStopped()
		if ticker != nil {
			defer ticker.Stop()
		}
		d.scanLoop(scanCtx, h, v, sched, opts, logger)
	}()
	return h, nil
}

func (d *Decoder) scanLoop(ctx context.Context, h *ScanHandle, v source.Video, sched Scheduler, opts ScanOptions, logger *slog.Logger) {
	st := NewScanState(opts.Clock())
	defer func() {
		h.running.Store(false)
		h.cancel()
		d.attemptMu.Lock()
		d.luma.Release(mempool.ClassVideo)
		d.attemptMu.Unlock()

		d.mu.Lock()
		if d.scan == h {
			d.scan = nil
		}
		d.mu.Unlock()
		logger.Info("Video scan stopped", "mode", Mode(h.mode.Load()).String())
	}()

	for {
		if _, ok := sched.Next(ctx); !ok || !h.IsRunning() {
			return
		}

		rep, err := d.scanFrame(ctx, st, v, opts)
		if err != nil {
			// Frame acquisition problems do not end the scan.
			logger.Debug("Frame unavailable", "error", err)
			if opts.OnError != nil {
				opts.OnError(err)
			}
			continue
		}
		if rep.Skipped {
			continue
		}

		h.mode.Store(int32(st.Mode))
		for _, tr := range rep.Transitions {
			metrics.ModeTransition(tr.From.String(), tr.To.String())
			logger.Debug("Scan mode changed", "from", tr.From.String(), "to", tr.To.String())
			if opts.OnModeChange != nil {
				opts.OnModeChange(tr)
			}
		}
		if opts.OnAttempt != nil {
			for _, a := range rep.Attempts {
				opts.OnAttempt(a)
			}
		}
		for _, e := range rep.Errors {
			logger.Debug("Scan attempt error", "error", e)
			if opts.OnError != nil {
				opts.OnError(e)
			}
		}
		for i := 0; i < rep.Suppressed; i++ {
			metrics.ScanResult(true)
		}
		for _, r := range rep.Emitted {
			if !h.IsRunning() {
				return
			}
			metrics.ScanResult(false)
			logger.Debug("Scan result", "stage", r.Stage, "mode", st.Mode.String())
			opts.OnResult(r)
		}
	}
}

// scanFrame snapshots the current frame and runs one Step under attemptMu.
func (d *Decoder) scanFrame(ctx context.Context, st *ScanState, v source.Video, opts ScanOptions) (StepReport, error) {
	now := opts.Clock()
	if !st.LastAttempt.IsZero() && now.Sub(st.LastAttempt) < opts.interval(st.Mode) {
		return StepReport{Skipped: true}, nil
	}

	f, err := source.VideoFrame(v)
	if err != nil {
		return StepReport{}, err
	}

	d.attemptMu.Lock()
	defer d.attemptMu.Unlock()
	if d.isDisposed() {
		st.Running = false
		return StepReport{Skipped: true}, nil
	}
	fa := &videoAttempts{d: d, f: f, opts: opts}
	return Step(ctx, st, now, fa, opts), nil
}

// videoAttempts runs scan attempts against one frame using the video buffer.
type videoAttempts struct {
	d    *Decoder
	f    source.Frame
	opts ScanOptions
}

func (a *videoAttempts) Detect(ctx context.Context) detector.Detection {
	return a.d.detect(ctx, a.f)
}

func (a *videoAttempts) DecodeROI(ctx context.Context, box image.Rectangle, maxEdge int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, barcode.NewDecodeError(barcode.ReasonUnknown, err)
	}
	region := roi.Pad(box, a.f.Width, a.f.Height, a.opts.Decode.PadOptions())
	scale := roi.AdaptiveScale(region, a.f.Width, a.f.Height, a.opts.Decode.CropScale)
	w, h := roi.TargetSize(region, scale, maxEdge)
	return a.d.attempt(a.f, region, w, h, a.d.crop, mempool.ClassVideo, a.d.cfg.hints(false), StageROI)
}

func (a *videoAttempts) DecodeFull(ctx context.Context, maxEdge int, stage Stage) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, barcode.NewDecodeError(barcode.ReasonUnknown, err)
	}
	return a.d.decodeFull(a.f, maxEdge, mempool.ClassVideo, a.d.cfg.hints(false), stage)
}
