// Package camera provides the pinhole camera model and weak-calibration
// priors used throughout the reconstruction pipeline.
package camera

// Prior holds a single calibration value that may or may not be known.
// Weak calibration (EXIF, sensor databases) is not always available, so
// every field tracks whether it has actually been set.
type Prior struct {
	Value float64
	IsSet bool
}

// Prior2 holds a two-component calibration value, such as a principal point.
type Prior2 struct {
	Value [2]float64
	IsSet bool
}

// IntrinsicsPrior carries prior information about a view's camera,
// typically gathered from EXIF metadata or a calibration file.
type IntrinsicsPrior struct {
	// Image dimensions in pixels. These should always be set once the
	// image has been opened.
	ImageWidth  int
	ImageHeight int

	FocalLength    Prior
	PrincipalPoint Prior2
	AspectRatio    Prior
	Skew           Prior

	// Up to four radial distortion parameters.
	RadialDistortion [4]Prior
}

// Normalize fills in an unset principal point with the image center, the
// coordinate convention assumed by the two-view estimator. It is a no-op
// when the principal point was explicitly provided or the image
// dimensions are unknown.
func (p *IntrinsicsPrior) Normalize() {
	if p.PrincipalPoint.IsSet || p.ImageWidth == 0 || p.ImageHeight == 0 {
		return
	}
	p.PrincipalPoint.Value[0] = float64(p.ImageWidth) / 2.0
	p.PrincipalPoint.Value[1] = float64(p.ImageHeight) / 2.0
	p.PrincipalPoint.IsSet = true
}

// MedianViewingAngleFocalLength returns a synthetic focal length guess for
// an image with no calibration information, corresponding to a median
// viewing angle across consumer cameras.
func MedianViewingAngleFocalLength(width, height int) float64 {
	m := width
	if height > m {
		m = height
	}
	return 1.2 * float64(m)
}
