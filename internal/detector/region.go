package detector

import (
	"encoding/json"
	"image"
	"sort"
)

// FormatQRCode is the symbology name a backend must report to be used.
const FormatQRCode = "qr_code"

// Region is one code reported by a backend. A region may carry a decoded
// value, a location, or both.
type Region struct {
	RawValue     string
	BoundingBox  image.Rectangle
	CornerPoints []image.Point
}

// HasValue reports whether the backend decoded the payload itself.
func (r Region) HasValue() bool { return r.RawValue != "" }

// HasBox reports whether the region carries a usable location.
func (r Region) HasBox() bool { return !r.BoundingBox.Empty() }

// Area is the bounding box area in pixels.
func (r Region) Area() int {
	if !r.HasBox() {
		return 0
	}
	return r.BoundingBox.Dx() * r.BoundingBox.Dy()
}

// Detection is the outcome of one fast-path call.
type Detection struct {
	// Supported is false when no usable backend exists; Regions is then empty.
	Supported bool
	Regions   []Region
}

// FirstValue returns the first region carrying a decoded value.
func (d Detection) FirstValue() (Region, bool) {
	for _, r := range d.Regions {
		if r.HasValue() {
			return r, true
		}
	}
	return Region{}, false
}

// Largest returns the region with the largest box, if any has one.
func (d Detection) Largest() (Region, bool) {
	for _, r := range d.Regions {
		if r.HasBox() {
			return r, true
		}
	}
	return Region{}, false
}

// SortByArea orders regions by descending box area, keeping backend order for
// equal areas.
func SortByArea(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Area() > regions[j].Area()
	})
}

type boxJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type pointJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type regionJSON struct {
	RawValue string      `json:"raw_value,omitempty"`
	Box      *boxJSON    `json:"box,omitempty"`
	Corners  []pointJSON `json:"corners,omitempty"`
}

// MarshalJSON renders the region with an x/y/w/h box.
func (r Region) MarshalJSON() ([]byte, error) {
	out := regionJSON{RawValue: r.RawValue}
	if r.HasBox() {
		b := r.BoundingBox
		out.Box = &boxJSON{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()}
	}
	for _, p := range r.CornerPoints {
		out.Corners = append(out.Corners, pointJSON{X: p.X, Y: p.Y})
	}
	return json.Marshal(out)
}
