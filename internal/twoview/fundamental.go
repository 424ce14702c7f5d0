package twoview

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

var errNotEnoughPoints = errors.New("twoview: need at least 8 correspondences")

// fitFundamentalMatrix estimates the 3x3 fundamental matrix relating two
// point sets with the normalized eight-point algorithm. Points are
// conditioned with an isotropic (Hartley) normalization before the linear
// solve and the rank-2 constraint is enforced on the result.
func fitFundamentalMatrix(pts1, pts2 []r2.Point) (*mat.Dense, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("twoview: point sets must have equal length")
	}
	if len(pts1) < 8 {
		return nil, errNotEnoughPoints
	}

	norm1, t1 := normalizePoints(pts1)
	norm2, t2 := normalizePoints(pts2)

	// Each correspondence contributes one row of the homogeneous system
	// x2' * F * x1 = 0.
	n := len(norm1)
	a := mat.NewDense(n, 9, nil)
	for i := 0; i < n; i++ {
		x1, y1 := norm1[i].X, norm1[i].Y
		x2, y2 := norm2[i].X, norm2[i].Y
		a.SetRow(i, []float64{
			x2 * x1, x2 * y1, x2,
			y2 * x1, y2 * y1, y2,
			x1, y1, 1,
		})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.New("twoview: svd of correspondence system failed")
	}
	var v mat.Dense
	svd.VTo(&v)
	_, cols := v.Dims()
	fvec := v.ColView(cols - 1)

	f := mat.NewDense(3, 3, []float64{
		fvec.AtVec(0), fvec.AtVec(1), fvec.AtVec(2),
		fvec.AtVec(3), fvec.AtVec(4), fvec.AtVec(5),
		fvec.AtVec(6), fvec.AtVec(7), fvec.AtVec(8),
	})

	f, err := enforceRankTwo(f)
	if err != nil {
		return nil, err
	}

	// Undo the conditioning: F = T2^T * Fn * T1.
	var out mat.Dense
	out.Mul(t2.T(), f)
	out.Mul(&out, t1)

	scaleToUnitNorm(&out)
	return &out, nil
}

// normalizePoints translates the points to their centroid and scales them
// so the mean distance from the origin is sqrt(2). Returns the conditioned
// points and the 3x3 transform that was applied.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= n

	scale := 1.0
	if meanDist > 1e-12 {
		scale = math.Sqrt2 / meanDist
	}

	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = r2.Point{X: (p.X - cx) * scale, Y: (p.Y - cy) * scale}
	}
	t := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * cx,
		0, scale, -scale * cy,
		0, 0, 1,
	})
	return out, t
}

// enforceRankTwo projects a 3x3 matrix onto the closest rank-2 matrix by
// zeroing its smallest singular value.
func enforceRankTwo(f *mat.Dense) (*mat.Dense, error) {
	u, s, v, err := performSVD(f)
	if err != nil {
		return nil, err
	}
	d := mat.NewDense(3, 3, []float64{
		s[0], 0, 0,
		0, s[1], 0,
		0, 0, 0,
	})
	var out mat.Dense
	out.Mul(u, d)
	out.Mul(&out, v.T())
	return &out, nil
}

// projectToEssential forces the two leading singular values of a 3x3
// matrix to be equal and the last one to be zero, the structure every
// essential matrix has.
func projectToEssential(e *mat.Dense) (*mat.Dense, error) {
	u, s, v, err := performSVD(e)
	if err != nil {
		return nil, err
	}
	sigma := (s[0] + s[1]) / 2
	d := mat.NewDense(3, 3, []float64{
		sigma, 0, 0,
		0, sigma, 0,
		0, 0, 0,
	})
	var out mat.Dense
	out.Mul(u, d)
	out.Mul(&out, v.T())
	return &out, nil
}

// performSVD computes the full SVD of a square matrix, returning U, the
// singular values, and V.
func performSVD(m mat.Matrix) (*mat.Dense, []float64, *mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		return nil, nil, nil, errors.New("twoview: svd factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	return &u, svd.Values(nil), &v, nil
}

// scaleToUnitNorm rescales a matrix to unit Frobenius norm in place.
func scaleToUnitNorm(m *mat.Dense) {
	norm := mat.Norm(m, 2)
	if norm > 1e-15 {
		m.Scale(1/norm, m)
	}
}

// squaredSampsonDistance is the first-order approximation of the squared
// geometric reprojection error of a correspondence under F.
func squaredSampsonDistance(f mat.Matrix, p1, p2 r2.Point) float64 {
	// Fx1 and F^T x2 with homogeneous coordinates (x, y, 1).
	fx0 := f.At(0, 0)*p1.X + f.At(0, 1)*p1.Y + f.At(0, 2)
	fx1 := f.At(1, 0)*p1.X + f.At(1, 1)*p1.Y + f.At(1, 2)
	fx2 := f.At(2, 0)*p1.X + f.At(2, 1)*p1.Y + f.At(2, 2)

	ftx0 := f.At(0, 0)*p2.X + f.At(1, 0)*p2.Y + f.At(2, 0)
	ftx1 := f.At(0, 1)*p2.X + f.At(1, 1)*p2.Y + f.At(2, 1)

	top := p2.X*fx0 + p2.Y*fx1 + fx2
	denom := fx0*fx0 + fx1*fx1 + ftx0*ftx0 + ftx1*ftx1
	if denom < 1e-15 {
		return math.Inf(1)
	}
	return top * top / denom
}
