package camera

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Intrinsics parameter vector layout. The vector is shared by all views
// in the same intrinsics group, so mutation through any camera holding it
// is visible to every other member.
const (
	ParamFocalLength = iota
	ParamAspectRatio
	ParamSkew
	ParamPrincipalPointX
	ParamPrincipalPointY
	NumIntrinsics
)

// Camera models a pinhole camera: a shared intrinsics parameter vector
// plus an extrinsic pose (position and angle-axis orientation).
type Camera struct {
	intrinsics []float64

	Position    r3.Vector
	Orientation r3.Vector
}

// New creates a camera with default intrinsics (unit focal length and
// aspect ratio, zero skew, principal point at the origin).
func New() *Camera {
	return &Camera{intrinsics: defaultIntrinsics()}
}

// NewWithIntrinsics creates a camera backed by the given shared intrinsics
// vector. The slice is retained, not copied.
func NewWithIntrinsics(intrinsics []float64) *Camera {
	if len(intrinsics) != NumIntrinsics {
		panic("camera: intrinsics vector has wrong length")
	}
	return &Camera{intrinsics: intrinsics}
}

func defaultIntrinsics() []float64 {
	v := make([]float64, NumIntrinsics)
	v[ParamFocalLength] = 1.0
	v[ParamAspectRatio] = 1.0
	return v
}

// Intrinsics returns the underlying shared parameter vector.
func (c *Camera) Intrinsics() []float64 { return c.intrinsics }

// SetIntrinsics rebinds the camera to a different shared parameter vector.
func (c *Camera) SetIntrinsics(intrinsics []float64) {
	if len(intrinsics) != NumIntrinsics {
		panic("camera: intrinsics vector has wrong length")
	}
	c.intrinsics = intrinsics
}

// FocalLength returns the focal length in pixels.
func (c *Camera) FocalLength() float64 { return c.intrinsics[ParamFocalLength] }

// SetFocalLength sets the focal length in pixels.
func (c *Camera) SetFocalLength(f float64) { c.intrinsics[ParamFocalLength] = f }

// AspectRatio returns the ratio of the vertical to horizontal focal length.
func (c *Camera) AspectRatio() float64 { return c.intrinsics[ParamAspectRatio] }

// Skew returns the skew parameter.
func (c *Camera) Skew() float64 { return c.intrinsics[ParamSkew] }

// PrincipalPoint returns the principal point in pixels.
func (c *Camera) PrincipalPoint() r2.Point {
	return r2.Point{X: c.intrinsics[ParamPrincipalPointX], Y: c.intrinsics[ParamPrincipalPointY]}
}

// SetPrincipalPoint sets the principal point in pixels.
func (c *Camera) SetPrincipalPoint(x, y float64) {
	c.intrinsics[ParamPrincipalPointX] = x
	c.intrinsics[ParamPrincipalPointY] = y
}

// SetFromPrior initializes the intrinsics from a calibration prior. Unset
// focal lengths fall back to the median-viewing-angle guess when the image
// dimensions are known, otherwise to 1 so that feature normalization
// centers but does not scale pixel coordinates.
func (c *Camera) SetFromPrior(prior IntrinsicsPrior) {
	switch {
	case prior.FocalLength.IsSet:
		c.SetFocalLength(prior.FocalLength.Value)
	case prior.ImageWidth > 0 && prior.ImageHeight > 0:
		c.SetFocalLength(MedianViewingAngleFocalLength(prior.ImageWidth, prior.ImageHeight))
	default:
		c.SetFocalLength(1.0)
	}
	if prior.PrincipalPoint.IsSet {
		c.SetPrincipalPoint(prior.PrincipalPoint.Value[0], prior.PrincipalPoint.Value[1])
	} else if prior.ImageWidth > 0 && prior.ImageHeight > 0 {
		c.SetPrincipalPoint(float64(prior.ImageWidth)/2.0, float64(prior.ImageHeight)/2.0)
	}
	if prior.AspectRatio.IsSet {
		c.intrinsics[ParamAspectRatio] = prior.AspectRatio.Value
	}
	if prior.Skew.IsSet {
		c.intrinsics[ParamSkew] = prior.Skew.Value
	}
}

// PixelToNormalizedCoordinates converts a pixel location to normalized
// image coordinates by removing the intrinsics: principal point, skew and
// focal length.
func (c *Camera) PixelToNormalizedCoordinates(pixel r2.Point) r2.Point {
	fx := c.intrinsics[ParamFocalLength]
	fy := fx * c.intrinsics[ParamAspectRatio]
	ny := (pixel.Y - c.intrinsics[ParamPrincipalPointY]) / fy
	nx := (pixel.X - c.intrinsics[ParamPrincipalPointX] - c.intrinsics[ParamSkew]*ny) / fx
	return r2.Point{X: nx, Y: ny}
}

// NormalizedToPixelCoordinates converts normalized image coordinates back
// to a pixel location by applying the intrinsics.
func (c *Camera) NormalizedToPixelCoordinates(normalized r2.Point) r2.Point {
	fx := c.intrinsics[ParamFocalLength]
	fy := fx * c.intrinsics[ParamAspectRatio]
	px := fx*normalized.X + c.intrinsics[ParamSkew]*normalized.Y + c.intrinsics[ParamPrincipalPointX]
	py := fy*normalized.Y + c.intrinsics[ParamPrincipalPointY]
	return r2.Point{X: px, Y: py}
}

// Clone returns a deep copy of the camera with its own intrinsics vector.
func (c *Camera) Clone() *Camera {
	intrinsics := make([]float64, NumIntrinsics)
	copy(intrinsics, c.intrinsics)
	return &Camera{
		intrinsics:  intrinsics,
		Position:    c.Position,
		Orientation: c.Orientation,
	}
}
