package twoview

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/parallax-vision/parallax/internal/camera"
	"github.com/parallax-vision/parallax/internal/feature"
)

const (
	// Reference image dimension for scaling pixel error thresholds.
	defaultImageDimension = 1024.0

	numPyramidLevels = 6
)

// Info summarizes the estimated relative geometry between two views.
// Rotation is the angle-axis rotation taking the first camera frame to
// the second and Position is the unit-norm position of the second camera
// in the first camera's frame.
type Info struct {
	Rotation r3.Vector
	Position r3.Vector

	FocalLength1 float64
	FocalLength2 float64

	// NumVerifiedMatches counts the correspondences consistent with the
	// estimated epipolar geometry.
	NumVerifiedMatches int

	// NumHomographyInliers counts the correspondences consistent with a
	// homography. A pair whose matches are mostly homography inliers has
	// little parallax and makes a poor seed for reconstruction. The field
	// is filled by a separate homography estimation stage.
	NumHomographyInliers int

	// VisibilityScore measures how well the verified matches cover both
	// images. Well-spread matches score higher than clustered ones.
	VisibilityScore int
}

// SwapCameras rewrites info so that it describes the same geometry with
// the roles of the two views exchanged. The focal lengths are swapped and
// the relative rotation and position are inverted in place.
func SwapCameras(info *Info) {
	info.FocalLength1, info.FocalLength2 = info.FocalLength2, info.FocalLength1
	r := rotationMatrixFromAngleAxis(info.Rotation)
	info.Position = matVec(r, info.Position).Mul(-1)
	info.Rotation = info.Rotation.Mul(-1)
}

// Options controls the robust two-view estimation.
type Options struct {
	// MaxSampsonErrorPixels is the inlier threshold before resolution
	// scaling, in pixels.
	MaxSampsonErrorPixels float64
	// ExpectedConfidence is the desired probability that the returned
	// model is outlier free.
	ExpectedConfidence  float64
	MinRansacIterations int
	MaxRansacIterations int
	// Rand seeds the sampler; a nil value uses a time-seeded source.
	Rand   *rand.Rand
	Logger *slog.Logger
}

// DefaultOptions returns estimation settings that work well for typical
// photo collections.
func DefaultOptions() Options {
	return Options{
		MaxSampsonErrorPixels: 6.0,
		ExpectedConfidence:    0.9999,
		MinRansacIterations:   10,
		MaxRansacIterations:   1000,
	}
}

func (o Options) validate() error {
	if o.MaxSampsonErrorPixels <= 0 {
		return errors.New("twoview: max sampson error must be positive")
	}
	if o.ExpectedConfidence <= 0 || o.ExpectedConfidence >= 1 {
		return errors.New("twoview: expected confidence must be in (0, 1)")
	}
	if o.MinRansacIterations < 0 || o.MaxRansacIterations < o.MinRansacIterations {
		return errors.New("twoview: invalid ransac iteration bounds")
	}
	return nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Estimate computes the relative pose between two views from putative
// correspondences in pixel coordinates. When both priors carry a focal
// length the calibrated path estimates an essential matrix; otherwise the
// uncalibrated path estimates a fundamental matrix and recovers both
// focal lengths from it. The returned indices identify the inlier
// correspondences.
func Estimate(opts Options, prior1, prior2 camera.IntrinsicsPrior, correspondences []feature.Correspondence) (Info, []int, error) {
	if err := opts.validate(); err != nil {
		return Info{}, nil, err
	}

	if prior1.FocalLength.IsSet && prior2.FocalLength.IsSet {
		return estimateCalibrated(opts, prior1, prior2, correspondences)
	}
	if prior1.FocalLength.IsSet || prior2.FocalLength.IsSet {
		opts.logger().Warn("only one view has a focal length prior, treating both views as uncalibrated")
	}
	return estimateUncalibrated(opts, prior1, prior2, correspondences)
}

func estimateCalibrated(opts Options, prior1, prior2 camera.IntrinsicsPrior, correspondences []feature.Correspondence) (Info, []int, error) {
	norm1, norm2 := normalizeFeatures(prior1, prior2, correspondences)

	f1 := prior1.FocalLength.Value
	f2 := prior2.FocalLength.Value
	t1 := resolutionScaledThreshold(opts.MaxSampsonErrorPixels, prior1.ImageWidth, prior1.ImageHeight)
	t2 := resolutionScaledThreshold(opts.MaxSampsonErrorPixels, prior2.ImageWidth, prior2.ImageHeight)

	params := ransacParams{
		failureProbability: 1 - opts.ExpectedConfidence,
		errorThreshold:     t1 * t2 / (f1 * f2),
		minIterations:      opts.MinRansacIterations,
		maxIterations:      opts.MaxRansacIterations,
		rng:                opts.Rand,
	}

	essential, summary, err := runRansac(params, &essentialModel{pts1: norm1, pts2: norm2})
	if err != nil {
		return Info{}, nil, fmt.Errorf("calibrated relative pose: %w", err)
	}

	pose, err := poseFromEssential(essential, norm1, norm2, summary.Inliers)
	if err != nil {
		return Info{}, nil, err
	}

	info := Info{
		Rotation:           angleAxisFromRotationMatrix(pose.Rotation),
		Position:           pose.Position,
		FocalLength1:       f1,
		FocalLength2:       f2,
		NumVerifiedMatches: len(summary.Inliers),
		VisibilityScore:    visibilityScoreOfInliers(prior1, prior2, correspondences, summary.Inliers),
	}
	return info, summary.Inliers, nil
}

func estimateUncalibrated(opts Options, prior1, prior2 camera.IntrinsicsPrior, correspondences []feature.Correspondence) (Info, []int, error) {
	// With no focal priors the features end up centered on the principal
	// point but still in pixel units.
	centered1, centered2 := normalizeFeatures(prior1, prior2, correspondences)

	t1 := resolutionScaledThreshold(opts.MaxSampsonErrorPixels, prior1.ImageWidth, prior1.ImageHeight)
	t2 := resolutionScaledThreshold(opts.MaxSampsonErrorPixels, prior2.ImageWidth, prior2.ImageHeight)

	params := ransacParams{
		failureProbability: 1 - opts.ExpectedConfidence,
		errorThreshold:     t1 * t2,
		minIterations:      opts.MinRansacIterations,
		maxIterations:      opts.MaxRansacIterations,
		rng:                opts.Rand,
	}

	fmatrix, summary, err := runRansac(params, &fundamentalModel{pts1: centered1, pts2: centered2})
	if err != nil {
		return Info{}, nil, fmt.Errorf("uncalibrated relative pose: %w", err)
	}

	f1, f2, err := focalLengthsFromFundamentalMatrix(fmatrix)
	if err != nil {
		return Info{}, nil, err
	}

	// Upgrade to an essential matrix with the recovered focal lengths:
	// E = K2^T * F * K1.
	k1 := mat.NewDense(3, 3, []float64{f1, 0, 0, 0, f1, 0, 0, 0, 1})
	k2 := mat.NewDense(3, 3, []float64{f2, 0, 0, 0, f2, 0, 0, 0, 1})
	var essential mat.Dense
	essential.Mul(k2.T(), fmatrix)
	essential.Mul(&essential, k1)

	norm1 := scalePoints(centered1, 1/f1)
	norm2 := scalePoints(centered2, 1/f2)

	pose, err := poseFromEssential(&essential, norm1, norm2, summary.Inliers)
	if err != nil {
		return Info{}, nil, err
	}

	info := Info{
		Rotation:           angleAxisFromRotationMatrix(pose.Rotation),
		Position:           pose.Position,
		FocalLength1:       f1,
		FocalLength2:       f2,
		NumVerifiedMatches: len(summary.Inliers),
		VisibilityScore:    visibilityScoreOfInliers(prior1, prior2, correspondences, summary.Inliers),
	}
	return info, summary.Inliers, nil
}

// normalizeFeatures maps pixel correspondences through the inverse
// calibration of each view. When either focal length prior is missing
// both focal lengths are reset to one so the features are centered on the
// principal point but keep their pixel scale.
func normalizeFeatures(prior1, prior2 camera.IntrinsicsPrior, correspondences []feature.Correspondence) ([]r2.Point, []r2.Point) {
	cam1 := camera.New()
	cam1.SetFromPrior(prior1)
	cam2 := camera.New()
	cam2.SetFromPrior(prior2)
	if !prior1.FocalLength.IsSet || !prior2.FocalLength.IsSet {
		cam1.SetFocalLength(1.0)
		cam2.SetFocalLength(1.0)
	}

	pts1 := make([]r2.Point, len(correspondences))
	pts2 := make([]r2.Point, len(correspondences))
	for i, c := range correspondences {
		pts1[i] = cam1.PixelToNormalizedCoordinates(c.F1)
		pts2[i] = cam2.PixelToNormalizedCoordinates(c.F2)
	}
	return pts1, pts2
}

// poseFromEssential factors the essential matrix and resolves the pose
// ambiguity by triangulating the inlier correspondences.
func poseFromEssential(essential *mat.Dense, norm1, norm2 []r2.Point, inliers []int) (relativePose, error) {
	poses, err := decomposeEssentialMatrix(essential)
	if err != nil {
		return relativePose{}, err
	}
	in1 := make([]r2.Point, len(inliers))
	in2 := make([]r2.Point, len(inliers))
	for i, idx := range inliers {
		in1[i] = norm1[idx]
		in2[i] = norm2[idx]
	}
	return selectPoseByCheirality(poses, in1, in2)
}

// visibilityScoreOfInliers sums the pyramid coverage scores of the inlier
// matches over both images. Unknown image dimensions fall back to the
// inlier count.
func visibilityScoreOfInliers(prior1, prior2 camera.IntrinsicsPrior, correspondences []feature.Correspondence, inliers []int) int {
	if prior1.ImageWidth == 0 || prior1.ImageHeight == 0 ||
		prior2.ImageWidth == 0 || prior2.ImageHeight == 0 {
		return len(inliers)
	}
	pyramid1 := newVisibilityPyramid(prior1.ImageWidth, prior1.ImageHeight, numPyramidLevels)
	pyramid2 := newVisibilityPyramid(prior2.ImageWidth, prior2.ImageHeight, numPyramidLevels)
	for _, i := range inliers {
		pyramid1.addPoint(correspondences[i].F1)
		pyramid2.addPoint(correspondences[i].F2)
	}
	return pyramid1.score() + pyramid2.score()
}

// resolutionScaledThreshold adapts a pixel threshold tuned for a
// reference image size to the actual image resolution.
func resolutionScaledThreshold(threshold float64, width, height int) float64 {
	if width == 0 || height == 0 {
		return threshold
	}
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	return threshold * float64(maxDim) / defaultImageDimension
}

func scalePoints(pts []r2.Point, s float64) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: p.X * s, Y: p.Y * s}
	}
	return out
}

// fundamentalModel plugs the eight-point fundamental solver into the
// robust loop.
type fundamentalModel struct {
	pts1, pts2 []r2.Point
}

func (m *fundamentalModel) sampleSize() int { return 8 }
func (m *fundamentalModel) numPoints() int  { return len(m.pts1) }

func (m *fundamentalModel) fit(sample []int) *mat.Dense {
	s1 := make([]r2.Point, len(sample))
	s2 := make([]r2.Point, len(sample))
	for i, idx := range sample {
		s1[i] = m.pts1[idx]
		s2[i] = m.pts2[idx]
	}
	f, err := fitFundamentalMatrix(s1, s2)
	if err != nil {
		return nil
	}
	return f
}

func (m *fundamentalModel) residual(f *mat.Dense, i int) float64 {
	return squaredSampsonDistance(f, m.pts1[i], m.pts2[i])
}

// essentialModel estimates essential matrices from correspondences in
// normalized camera coordinates.
type essentialModel struct {
	pts1, pts2 []r2.Point
}

func (m *essentialModel) sampleSize() int { return 8 }
func (m *essentialModel) numPoints() int  { return len(m.pts1) }

func (m *essentialModel) fit(sample []int) *mat.Dense {
	s1 := make([]r2.Point, len(sample))
	s2 := make([]r2.Point, len(sample))
	for i, idx := range sample {
		s1[i] = m.pts1[idx]
		s2[i] = m.pts2[idx]
	}
	f, err := fitFundamentalMatrix(s1, s2)
	if err != nil {
		return nil
	}
	e, err := projectToEssential(f)
	if err != nil {
		return nil
	}
	return e
}

func (m *essentialModel) residual(e *mat.Dense, i int) float64 {
	return squaredSampsonDistance(e, m.pts1[i], m.pts2[i])
}
