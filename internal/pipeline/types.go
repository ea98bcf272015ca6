package pipeline

import (
	"encoding/json"
	"errors"
	"image"

	"github.com/MeKo-Tech/qrscan/internal/barcode"
	"github.com/MeKo-Tech/qrscan/internal/roi"
)

var (
	// ErrDisposed is returned by every call on a disposed Decoder.
	ErrDisposed = errors.New("pipeline: decoder disposed")
	// ErrMissingOnResult is returned when a scan has no result callback.
	ErrMissingOnResult = errors.New("pipeline: scan options need an OnResult callback")
	// ErrNoFiles is returned by DecodeFileInput for an empty selection.
	ErrNoFiles = errors.New("pipeline: no files selected")
)

// Stage names the step that produced a result or attempt.
type Stage string

const (
	StageFastPath Stage = "fast_path"
	StageROI      Stage = "roi"
	StageFast     Stage = "full_fast"
	StageFull     Stage = "full"
	StageSearch   Stage = "search"
	StageRescue   Stage = "rescue"
)

// Result is a decoded code in source-frame coordinates.
type Result struct {
	Text     string
	RawBytes []byte
	Format   barcode.Format
	Points   []image.Point
	Box      image.Rectangle
	Metadata map[string]any
	Stage    Stage
}

// Outcome is the tagged result of a one-shot decode: exactly one of Result
// and Err is set.
type Outcome struct {
	Result *Result
	Err    *barcode.DecodeError
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Result != nil }

// Reason returns the failure reason, or "" on success. An empty outcome
// counts as not_found.
func (o Outcome) Reason() barcode.Reason {
	switch {
	case o.Result != nil:
		return ""
	case o.Err == nil:
		return barcode.ReasonNotFound
	}
	return o.Err.Reason
}

func success(r *Result) Outcome { return Outcome{Result: r} }

func failure(err *barcode.DecodeError) Outcome {
	if err == nil {
		err = barcode.NewDecodeError(barcode.ReasonNotFound, nil)
	}
	return Outcome{Err: err}
}

type pointJSON struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

type boxJSON struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

type outcomeJSON struct {
	OK       bool           `json:"ok" yaml:"ok"`
	Text     string         `json:"text,omitempty" yaml:"text,omitempty"`
	Format   string         `json:"format,omitempty" yaml:"format,omitempty"`
	Stage    Stage          `json:"stage,omitempty" yaml:"stage,omitempty"`
	Box      *boxJSON       `json:"box,omitempty" yaml:"box,omitempty"`
	Points   []pointJSON    `json:"points,omitempty" yaml:"points,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Reason   string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// MarshalJSON renders {"ok":true,"text":...} or {"ok":false,"reason":...}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.view())
}

// MarshalYAML renders the same shape as MarshalJSON.
func (o Outcome) MarshalYAML() (interface{}, error) {
	return o.view(), nil
}

func (o Outcome) view() outcomeJSON {
	if o.Result == nil {
		out := outcomeJSON{Reason: string(barcode.ReasonNotFound)}
		if o.Err != nil {
			out.Reason = string(o.Err.Reason)
			if o.Err.Cause != nil {
				out.Error = o.Err.Cause.Error()
			}
		}
		return out
	}
	r := o.Result
	out := outcomeJSON{
		OK:       true,
		Text:     r.Text,
		Format:   r.Format.String(),
		Stage:    r.Stage,
		Metadata: r.Metadata,
	}
	if !r.Box.Empty() {
		out.Box = &boxJSON{X: r.Box.Min.X, Y: r.Box.Min.Y, W: r.Box.Dx(), H: r.Box.Dy()}
	}
	for _, p := range r.Points {
		out.Points = append(out.Points, pointJSON{X: p.X, Y: p.Y})
	}
	return out
}

// DecodeOptions tunes a single one-shot decode.
type DecodeOptions struct {
	// ROI restricts an extra first attempt to this region.
	ROI *roi.Rect
	// TryHarder starts every engine attempt in TRY_HARDER mode.
	TryHarder bool
	// SkipFastPath bypasses the native detector.
	SkipFastPath bool
}

// FileOutcome is the outcome for one selected file.
type FileOutcome struct {
	Path    string
	Outcome Outcome
	Err     error
}
