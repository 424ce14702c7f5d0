package twoview

import (
	"errors"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// relativePose describes the second camera with respect to the first.
// Rotation maps points from the first camera frame into the second and
// Position is the unit-norm camera center of the second camera expressed
// in the first camera frame.
type relativePose struct {
	Rotation *mat.Dense
	Position r3.Vector
}

// candidatePose is one of the four (R, t) factorizations of an essential
// matrix, with t being the translation of the projection matrix [R | t].
type candidatePose struct {
	rotation    *mat.Dense
	translation r3.Vector
}

// decomposeEssentialMatrix factors E into its four candidate relative
// poses: two rotations (UWV^T and UW^TV^T) paired with the two signs of
// the translation (last column of U).
func decomposeEssentialMatrix(e *mat.Dense) ([]candidatePose, error) {
	u, _, v, err := performSVD(e)
	if err != nil {
		return nil, err
	}
	// Ensure the factors are proper rotations.
	if mat.Det(u) < 0 {
		u.Scale(-1, u)
	}
	if mat.Det(v) < 0 {
		v.Scale(-1, v)
	}

	w := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})

	var r1, r2m mat.Dense
	r1.Mul(u, w)
	r1.Mul(&r1, v.T())
	r2m.Mul(u, w.T())
	r2m.Mul(&r2m, v.T())

	t := r3.Vector{X: u.At(0, 2), Y: u.At(1, 2), Z: u.At(2, 2)}.Normalize()

	return []candidatePose{
		{rotation: &r1, translation: t},
		{rotation: &r1, translation: t.Mul(-1)},
		{rotation: &r2m, translation: t},
		{rotation: &r2m, translation: t.Mul(-1)},
	}, nil
}

// selectPoseByCheirality picks the candidate pose that places the most
// triangulated points in front of both cameras.
func selectPoseByCheirality(poses []candidatePose, pts1, pts2 []r2.Point) (relativePose, error) {
	bestCount := -1
	var best candidatePose
	for _, pose := range poses {
		count := countPointsInFront(pose, pts1, pts2)
		if count > bestCount {
			bestCount = count
			best = pose
		}
	}
	if bestCount <= 0 {
		return relativePose{}, errors.New("twoview: no pose places points in front of both cameras")
	}

	// Convert the projection translation to a camera center: C = -R^T t.
	var rt mat.Dense
	rt.CloneFrom(best.rotation.T())
	center := matVec(&rt, best.translation).Mul(-1)
	if n := center.Norm(); n > 1e-12 {
		center = center.Mul(1 / n)
	}
	return relativePose{Rotation: best.rotation, Position: center}, nil
}

// countPointsInFront triangulates every correspondence under the candidate
// pose and counts the points with positive depth in both cameras.
func countPointsInFront(pose candidatePose, pts1, pts2 []r2.Point) int {
	p1 := mat.NewDense(3, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	})
	r := pose.rotation
	t := pose.translation
	p2 := mat.NewDense(3, 4, []float64{
		r.At(0, 0), r.At(0, 1), r.At(0, 2), t.X,
		r.At(1, 0), r.At(1, 1), r.At(1, 2), t.Y,
		r.At(2, 0), r.At(2, 1), r.At(2, 2), t.Z,
	})

	count := 0
	for i := range pts1 {
		point, err := triangulateDLT(p1, p2, pts1[i], pts2[i])
		if err != nil {
			continue
		}
		if depthInCamera(p1, point) > 0 && depthInCamera(p2, point) > 0 {
			count++
		}
	}
	return count
}

// triangulateDLT recovers a homogeneous 3D point from two projections via
// the direct linear transform.
func triangulateDLT(p1, p2 *mat.Dense, x1, x2 r2.Point) ([4]float64, error) {
	a := mat.NewDense(4, 4, nil)
	for j := 0; j < 4; j++ {
		a.Set(0, j, x1.X*p1.At(2, j)-p1.At(0, j))
		a.Set(1, j, x1.Y*p1.At(2, j)-p1.At(1, j))
		a.Set(2, j, x2.X*p2.At(2, j)-p2.At(0, j))
		a.Set(3, j, x2.Y*p2.At(2, j)-p2.At(1, j))
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return [4]float64{}, errors.New("twoview: triangulation svd failed")
	}
	var v mat.Dense
	svd.VTo(&v)
	var point [4]float64
	for i := 0; i < 4; i++ {
		point[i] = v.At(i, 3)
	}
	return point, nil
}

// depthInCamera returns the signed depth of a homogeneous point under a
// 3x4 projection matrix.
func depthInCamera(p *mat.Dense, point [4]float64) float64 {
	w := p.At(2, 0)*point[0] + p.At(2, 1)*point[1] + p.At(2, 2)*point[2] + p.At(2, 3)*point[3]
	if point[3] == 0 {
		return 0
	}
	return w / point[3]
}
