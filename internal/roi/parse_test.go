package roi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRect(t *testing.T) {
	tests := []struct {
		in      string
		want    *Rect
		wantErr bool
	}{
		{in: "0.25,0.25,0.5,0.5", want: &Rect{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5, Fractional: true}},
		{in: "10, 20, 300, 200", want: &Rect{X: 10, Y: 20, Width: 300, Height: 200}},
		{in: "0,0,1,1", want: &Rect{Width: 1, Height: 1, Fractional: true}},
		{in: "0,0,1,2", want: &Rect{Width: 1, Height: 2}},
		{in: "1,2,3", wantErr: true},
		{in: "a,b,c,d", wantErr: true},
		{in: "-1,0,1,1", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRect(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
