package twoview

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// focalLengthsFromFundamentalMatrix extracts the two focal lengths encoded
// in a fundamental matrix between cameras that are otherwise calibrated
// (principal point removed, unit aspect ratio, zero skew). The method
// rotates both epipoles onto the x-z plane, which factors F into a form
// where the focal lengths appear in closed form.
func focalLengthsFromFundamentalMatrix(f *mat.Dense) (focal1, focal2 float64, err error) {
	e1, err := nullVector(f)
	if err != nil {
		return 0, 0, err
	}
	e2, err := nullVector(f.T())
	if err != nil {
		return 0, 0, err
	}
	if e1.X == 0 || e2.X == 0 {
		return 0, 0, errors.New("twoview: optical axes are collinear, focal lengths unrecoverable")
	}

	// In-plane rotations that zero the y component of each epipole.
	rot1 := planarRotation(math.Atan2(-e1.Y, e1.X))
	rot2 := planarRotation(math.Atan2(-e2.Y, e2.X))

	var rf mat.Dense
	rf.Mul(rot2, f)
	rf.Mul(&rf, rot1.T())

	re1 := matVec(rot1, e1)
	re2 := matVec(rot2, e2)

	// Strip the epipole-dependent diagonal factors from both sides.
	left := mat.NewDense(3, 3, []float64{
		1 / re2.Z, 0, 0,
		0, 1, 0,
		0, 0, -1 / re2.X,
	})
	right := mat.NewDense(3, 3, []float64{
		1 / re1.Z, 0, 0,
		0, 1, 0,
		0, 0, -1 / re1.X,
	})
	var factorized mat.Dense
	factorized.Mul(left, &rf)
	factorized.Mul(&factorized, right)

	a := factorized.At(0, 0)
	b := factorized.At(0, 1)
	c := factorized.At(1, 0)
	d := factorized.At(1, 1)

	f1Sq := (-a * c * re1.X * re1.X) / (a*c*re1.Z*re1.Z + b*d)
	f2Sq := (-a * b * re2.X * re2.X) / (a*b*re2.Z*re2.Z + c*d)
	if f1Sq < 0 || f2Sq < 0 {
		return 0, 0, errors.New("twoview: no real focal length solution")
	}
	return math.Sqrt(f1Sq), math.Sqrt(f2Sq), nil
}

// nullVector returns the right null space of a rank-deficient 3x3 matrix.
func nullVector(m mat.Matrix) (r3.Vector, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return r3.Vector{}, errors.New("twoview: null space svd failed")
	}
	var v mat.Dense
	svd.VTo(&v)
	return r3.Vector{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}, nil
}

// planarRotation is a rotation by theta about the z axis.
func planarRotation(theta float64) *mat.Dense {
	c := math.Cos(theta)
	s := math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}
