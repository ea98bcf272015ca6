package pipeline

import (
	"context"
	"image"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/detector"
	"github.com/MeKo-Tech/qrscan/internal/roi"
)

// Mode is the video scan state.
type Mode int32

const (
	// ModeSearch scans downsampled full frames at a low rate.
	ModeSearch Mode = iota
	// ModeTrack scans a padded ROI around the last known code at a high rate.
	ModeTrack
)

func (m Mode) String() string {
	if m == ModeTrack {
		return "track"
	}
	return "search"
}

// DecodeTuning controls ROI geometry during tracking.
type DecodeTuning struct {
	PadRatio  float64
	CropScale float64
	PadMin    int
	PadMax    int
}

// PadOptions converts the tuning to roi.PadOptions.
func (t DecodeTuning) PadOptions() roi.PadOptions {
	return roi.PadOptions{Ratio: t.PadRatio, Min: t.PadMin, Max: t.PadMax}
}

// AttemptInfo describes one decode attempt within a scan.
type AttemptInfo struct {
	Mode     Mode
	Stage    Stage
	Success  bool
	Reason   barcode.Reason
	Duration time.Duration
}

// ScanOptions configures a video scan. Zero fields take the defaults of
// DefaultScanOptions.
type ScanOptions struct {
	FPSSearch          float64
	FPSTrack           float64
	MaxEdgeSearch      int
	MaxEdgeFull        int
	TrackFailThreshold int
	RescueEvery        time.Duration
	Dedupe             time.Duration
	Decode             DecodeTuning

	// OnResult receives every non-duplicate result. Required. Callbacks run
	// on the scan goroutine; they may call Stop but not Dispose.
	OnResult func(Result)
	// OnError receives attempt errors other than ordinary misses.
	OnError func(error)
	// OnAttempt observes every decode attempt.
	OnAttempt func(AttemptInfo)
	// OnModeChange observes search/track transitions.
	OnModeChange func(Transition)

	// Scheduler overrides frame scheduling.
	Scheduler Scheduler
	// Clock overrides time.Now.
	Clock func() time.Time
}

// DefaultScanOptions returns the documented defaults without callbacks.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		FPSSearch:          12,
		FPSTrack:           24,
		MaxEdgeSearch:      640,
		MaxEdgeFull:        1280,
		TrackFailThreshold: 8,
		RescueEvery:        1200 * time.Millisecond,
		Dedupe:             800 * time.Millisecond,
		Decode:             DecodeTuning{PadRatio: 0.1, CropScale: 1, PadMin: 4, PadMax: 40},
	}
}

// WithDefaults fills zero fields from DefaultScanOptions.
func (o ScanOptions) WithDefaults() ScanOptions {
	def := DefaultScanOptions()
	if o.FPSSearch <= 0 {
		o.FPSSearch = def.FPSSearch
	}
	if o.FPSTrack <= 0 {
		o.FPSTrack = def.FPSTrack
	}
	if o.MaxEdgeSearch <= 0 {
		o.MaxEdgeSearch = def.MaxEdgeSearch
	}
	if o.MaxEdgeFull <= 0 {
		o.MaxEdgeFull = def.MaxEdgeFull
	}
	if o.TrackFailThreshold <= 0 {
		o.TrackFailThreshold = def.TrackFailThreshold
	}
	if o.RescueEvery <= 0 {
		o.RescueEvery = def.RescueEvery
	}
	if o.Dedupe <= 0 {
		o.Dedupe = def.Dedupe
	}
	if o.Decode == (DecodeTuning{}) {
		o.Decode = def.Decode
	}
	if o.Decode.CropScale <= 0 {
		o.Decode.CropScale = def.Decode.CropScale
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

func (o ScanOptions) interval(m Mode) time.Duration {
	fps := o.FPSSearch
	if m == ModeTrack {
		fps = o.FPSTrack
	}
	return time.Duration(float64(time.Second) / fps)
}

// ScanState is the complete mutable state of a video scan.
type ScanState struct {
	Mode           Mode
	LastBox        image.Rectangle
	TrackFailCount int
	LastAttempt    time.Time
	LastRescue     time.Time
	LastText       string
	LastTextAt     time.Time
	Running        bool
}

// NewScanState returns a running state in search mode, with the rescue timer
// starting at now.
func NewScanState(now time.Time) *ScanState {
	return &ScanState{Mode: ModeSearch, LastRescue: now, Running: true}
}

// FrameAttempts are the operations Step may run against the current frame.
// Misses are reported as *barcode.DecodeError.
type FrameAttempts interface {
	Detect(ctx context.Context) detector.Detection
	DecodeROI(ctx context.Context, box image.Rectangle, maxEdge int) (*Result, error)
	DecodeFull(ctx context.Context, maxEdge int, stage Stage) (*Result, error)
}

// Transition is a mode change.
type Transition struct {
	From, To Mode
}

// StepReport summarizes one Step.
type StepReport struct {
	Skipped     bool
	Attempts    []AttemptInfo
	Emitted     []Result
	Suppressed  int
	Errors      []error
	Transitions []Transition
}

// Step advances the scan by one frame. Given the same state, now and
// attempt outcomes it always makes the same decisions.
func Step(ctx context.Context, st *ScanState, now time.Time, fa FrameAttempts, opts ScanOptions) StepReport {
	var rep StepReport
	if !st.Running {
		rep.Skipped = true
		return rep
	}
	if !st.LastAttempt.IsZero() && now.Sub(st.LastAttempt) < opts.interval(st.Mode) {
		rep.Skipped = true
		return rep
	}
	st.LastAttempt = now
	if st.LastRescue.IsZero() {
		st.LastRescue = now
	}

	det := fa.Detect(ctx)
	if v, ok := det.FirstValue(); ok {
		st.LastBox = v.BoundingBox
		st.TrackFailCount = 0
		setMode(st, &rep, ModeTrack)
		emit(st, &rep, now, fastPathResult(v), opts)
		return rep
	}

	produced := false
	switch {
	case st.Mode == ModeTrack && !st.LastBox.Empty():
		res, err := timed(&rep, st.Mode, StageROI, func() (*Result, error) {
			return fa.DecodeROI(ctx, st.LastBox, opts.MaxEdgeFull)
		})
		if err == nil {
			st.TrackFailCount = 0
			if !res.Box.Empty() {
				st.LastBox = res.Box
			}
			emit(st, &rep, now, res, opts)
			produced = true
			break
		}
		report(&rep, err)
		st.TrackFailCount++
		if st.TrackFailCount >= opts.TrackFailThreshold {
			st.TrackFailCount = 0
			st.LastBox = image.Rectangle{}
			setMode(st, &rep, ModeSearch)
		}

	default:
		stage := StageSearch
		res, err := timed(&rep, st.Mode, stage, func() (*Result, error) {
			return fa.DecodeFull(ctx, opts.MaxEdgeSearch, stage)
		})
		if err == nil {
			promote(st, &rep, det, res)
			emit(st, &rep, now, res, opts)
			produced = true
			break
		}
		report(&rep, err)
		if st.Mode == ModeTrack {
			// Tracking without a box counts misses like ROI tracking does.
			st.TrackFailCount++
			if st.TrackFailCount >= opts.TrackFailThreshold {
				st.TrackFailCount = 0
				setMode(st, &rep, ModeSearch)
			}
		}
	}

	if !produced && now.Sub(st.LastRescue) >= opts.RescueEvery {
		st.LastRescue = now
		res, err := timed(&rep, st.Mode, StageRescue, func() (*Result, error) {
			return fa.DecodeFull(ctx, opts.MaxEdgeFull, StageRescue)
		})
		if err == nil {
			promote(st, &rep, det, res)
			emit(st, &rep, now, res, opts)
		} else {
			report(&rep, err)
		}
	}
	return rep
}

// promote switches to tracking after a full-frame success, seeding the box
// from the largest detected region or else from the result itself.
func promote(st *ScanState, rep *StepReport, det detector.Detection, res *Result) {
	st.TrackFailCount = 0
	if r, ok := det.Largest(); ok {
		st.LastBox = r.BoundingBox
	} else {
		st.LastBox = res.Box
	}
	setMode(st, rep, ModeTrack)
}

func setMode(st *ScanState, rep *StepReport, m Mode) {
	if st.Mode == m {
		return
	}
	rep.Transitions = append(rep.Transitions, Transition{From: st.Mode, To: m})
	st.Mode = m
}

// emit delivers res unless the same text was emitted within the dedupe
// window. Suppressed duplicates do not extend the window.
func emit(st *ScanState, rep *StepReport, now time.Time, res *Result, opts ScanOptions) {
	key := norm.NFC.String(res.Text)
	if key == st.LastText && !st.LastTextAt.IsZero() && now.Sub(st.LastTextAt) <= opts.Dedupe {
		rep.Suppressed++
		return
	}
	st.LastText = key
	st.LastTextAt = now
	rep.Emitted = append(rep.Emitted, *res)
}

// report keeps errors worth surfacing; ordinary misses are dropped.
func report(rep *StepReport, err error) {
	if de, ok := barcode.AsDecodeError(err); ok && de.Reason.Benign() {
		return
	}
	rep.Errors = append(rep.Errors, err)
}

func timed(rep *StepReport, m Mode, stage Stage, fn func() (*Result, error)) (*Result, error) {
	start := time.Now()
	res, err := fn()
	info := AttemptInfo{Mode: m, Stage: stage, Success: err == nil, Duration: time.Since(start)}
	if err != nil {
		info.Reason = barcode.Classify(err)
	}
	rep.Attempts = append(rep.Attempts, info)
	return res, err
}
