package camera

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.InDelta(t, 1.0, c.FocalLength(), 1e-12)
	assert.InDelta(t, 1.0, c.AspectRatio(), 1e-12)
	assert.InDelta(t, 0.0, c.Skew(), 1e-12)
	assert.Equal(t, r2.Point{}, c.PrincipalPoint())
}

func TestSetFromPrior(t *testing.T) {
	tests := []struct {
		name      string
		prior     IntrinsicsPrior
		wantFocal float64
		wantPP    r2.Point
	}{
		{
			name: "focal length and principal point set",
			prior: IntrinsicsPrior{
				ImageWidth:     1920,
				ImageHeight:    1080,
				FocalLength:    Prior{Value: 1200, IsSet: true},
				PrincipalPoint: Prior2{Value: [2]float64{960, 540}, IsSet: true},
			},
			wantFocal: 1200,
			wantPP:    r2.Point{X: 960, Y: 540},
		},
		{
			name:      "no focal length falls back to median viewing angle",
			prior:     IntrinsicsPrior{ImageWidth: 1000, ImageHeight: 800},
			wantFocal: 1200,
			wantPP:    r2.Point{X: 500, Y: 400},
		},
		{
			name:      "no information at all",
			prior:     IntrinsicsPrior{},
			wantFocal: 1.0,
			wantPP:    r2.Point{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.SetFromPrior(tt.prior)
			assert.InDelta(t, tt.wantFocal, c.FocalLength(), 1e-9)
			assert.InDelta(t, tt.wantPP.X, c.PrincipalPoint().X, 1e-9)
			assert.InDelta(t, tt.wantPP.Y, c.PrincipalPoint().Y, 1e-9)
		})
	}
}

func TestPixelNormalizedRoundTrip(t *testing.T) {
	c := New()
	c.SetFocalLength(800)
	c.SetPrincipalPoint(320, 240)

	pixel := r2.Point{X: 415.5, Y: 113.25}
	normalized := c.PixelToNormalizedCoordinates(pixel)
	back := c.NormalizedToPixelCoordinates(normalized)
	assert.InDelta(t, pixel.X, back.X, 1e-9)
	assert.InDelta(t, pixel.Y, back.Y, 1e-9)

	// The principal point must map to the origin.
	origin := c.PixelToNormalizedCoordinates(r2.Point{X: 320, Y: 240})
	assert.InDelta(t, 0, origin.X, 1e-12)
	assert.InDelta(t, 0, origin.Y, 1e-12)
}

func TestSharedIntrinsics(t *testing.T) {
	intrinsics := defaultIntrinsics()
	c1 := NewWithIntrinsics(intrinsics)
	c2 := NewWithIntrinsics(intrinsics)

	c1.SetFocalLength(777)
	assert.InDelta(t, 777, c2.FocalLength(), 1e-12)

	clone := c1.Clone()
	clone.SetFocalLength(1)
	assert.InDelta(t, 777, c1.FocalLength(), 1e-12, "clone must not alias the original intrinsics")
}

func TestPriorNormalize(t *testing.T) {
	p := IntrinsicsPrior{ImageWidth: 640, ImageHeight: 480}
	p.Normalize()
	require.True(t, p.PrincipalPoint.IsSet)
	assert.InDelta(t, 320, p.PrincipalPoint.Value[0], 1e-12)
	assert.InDelta(t, 240, p.PrincipalPoint.Value[1], 1e-12)

	// An explicitly provided principal point is left alone.
	p2 := IntrinsicsPrior{
		ImageWidth:     640,
		ImageHeight:    480,
		PrincipalPoint: Prior2{Value: [2]float64{100, 100}, IsSet: true},
	}
	p2.Normalize()
	assert.InDelta(t, 100, p2.PrincipalPoint.Value[0], 1e-12)

	// Unknown dimensions leave the prior untouched.
	p3 := IntrinsicsPrior{}
	p3.Normalize()
	assert.False(t, p3.PrincipalPoint.IsSet)
}

func TestMedianViewingAngleFocalLength(t *testing.T) {
	assert.InDelta(t, 1.2*4000, MedianViewingAngleFocalLength(4000, 3000), 1e-9)
	assert.InDelta(t, 1.2*3000, MedianViewingAngleFocalLength(2000, 3000), 1e-9)
}
