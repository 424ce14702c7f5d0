package twoview

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// rotationMatrixFromAngleAxis converts an angle-axis vector (direction is
// the rotation axis, magnitude is the angle in radians) into a 3x3
// rotation matrix using the Rodrigues formula.
func rotationMatrixFromAngleAxis(aa r3.Vector) *mat.Dense {
	angle := aa.Norm()
	if angle < 1e-12 {
		return eye(3)
	}
	axis := aa.Mul(1 / angle)
	c := math.Cos(angle)
	s := math.Sin(angle)
	t := 1 - c
	x, y, z := axis.X, axis.Y, axis.Z

	return mat.NewDense(3, 3, []float64{
		t*x*x + c, t*x*y - s*z, t*x*z + s*y,
		t*x*y + s*z, t*y*y + c, t*y*z - s*x,
		t*x*z - s*y, t*y*z + s*x, t*z*z + c,
	})
}

// angleAxisFromRotationMatrix recovers the angle-axis representation from
// a rotation matrix. The angle is clamped to [0, pi].
func angleAxisFromRotationMatrix(r *mat.Dense) r3.Vector {
	trace := r.At(0, 0) + r.At(1, 1) + r.At(2, 2)
	cosAngle := (trace - 1) / 2
	if cosAngle > 1 {
		cosAngle = 1
	} else if cosAngle < -1 {
		cosAngle = -1
	}
	angle := math.Acos(cosAngle)

	if angle < 1e-10 {
		return r3.Vector{}
	}
	if math.Pi-angle < 1e-6 {
		// Near pi the skew-symmetric part vanishes, recover the axis
		// from the diagonal of R + I instead.
		x := math.Sqrt(math.Max(0, (r.At(0, 0)+1)/2))
		y := math.Sqrt(math.Max(0, (r.At(1, 1)+1)/2))
		z := math.Sqrt(math.Max(0, (r.At(2, 2)+1)/2))
		if r.At(0, 1) < 0 {
			y = -y
		}
		if r.At(0, 2) < 0 {
			z = -z
		}
		return r3.Vector{X: x, Y: y, Z: z}.Normalize().Mul(angle)
	}

	scale := angle / (2 * math.Sin(angle))
	return r3.Vector{
		X: (r.At(2, 1) - r.At(1, 2)) * scale,
		Y: (r.At(0, 2) - r.At(2, 0)) * scale,
		Z: (r.At(1, 0) - r.At(0, 1)) * scale,
	}
}

// eye returns the n x n identity matrix.
func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// matVec multiplies a 3x3 matrix with an r3 vector.
func matVec(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}
