package roi

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRect reads "x,y,w,h". When every value is at most 1 the rect is
// fractional.
func ParseRect(s string) (*Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid roi %q: want x,y,w,h", s)
	}
	var vals [4]float64
	fractional := true
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid roi %q: want x,y,w,h", s)
		}
		vals[i] = f
		if f > 1 {
			fractional = false
		}
	}
	return &Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3], Fractional: fractional}, nil
}
