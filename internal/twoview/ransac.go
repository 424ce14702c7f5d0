package twoview

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ransacParams tunes the robust estimation loop. The error threshold is
// compared against squared Sampson distances.
type ransacParams struct {
	failureProbability float64
	errorThreshold     float64
	minIterations      int
	maxIterations      int
	rng                *rand.Rand
}

// ransacSummary reports the outcome of a robust estimation run.
type ransacSummary struct {
	Inliers       []int
	NumIterations int
}

// ransacModel abstracts the minimal solver plugged into the robust loop.
type ransacModel interface {
	sampleSize() int
	numPoints() int
	// fit estimates a model from the given sample indices. A nil return
	// indicates a degenerate sample.
	fit(sample []int) *mat.Dense
	// residual is the squared Sampson distance of point i under model m.
	residual(m *mat.Dense, i int) float64
}

// runRansac runs an adaptive RANSAC loop: the iteration count shrinks as
// better models raise the observed inlier ratio, bounded by the configured
// minimum and maximum. The best model is refit on its full inlier set
// before being returned.
func runRansac(params ransacParams, model ransacModel) (*mat.Dense, *ransacSummary, error) {
	n := model.numPoints()
	s := model.sampleSize()
	if n < s {
		return nil, nil, errNotEnoughPoints
	}

	rng := params.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	var best *mat.Dense
	bestInliers := 0
	required := params.maxIterations
	iterations := 0

	for iterations < required {
		iterations++
		sample := rng.Perm(n)[:s]
		candidate := model.fit(sample)
		if candidate == nil {
			continue
		}
		inliers := 0
		for i := 0; i < n; i++ {
			if model.residual(candidate, i) < params.errorThreshold {
				inliers++
			}
		}
		if inliers > bestInliers {
			bestInliers = inliers
			best = candidate
			required = clampIterations(requiredIterations(
				params.failureProbability, float64(inliers)/float64(n), s),
				params.minIterations, params.maxIterations)
		}
	}

	if best == nil || bestInliers < s {
		return nil, nil, errors.New("twoview: robust estimation found no model")
	}

	inlierIdx := make([]int, 0, bestInliers)
	for i := 0; i < n; i++ {
		if model.residual(best, i) < params.errorThreshold {
			inlierIdx = append(inlierIdx, i)
		}
	}

	// Refit on all inliers when the set is larger than the minimal sample.
	if len(inlierIdx) > s {
		if refined := model.fit(inlierIdx); refined != nil {
			refinedInliers := make([]int, 0, len(inlierIdx))
			for i := 0; i < n; i++ {
				if model.residual(refined, i) < params.errorThreshold {
					refinedInliers = append(refinedInliers, i)
				}
			}
			if len(refinedInliers) >= len(inlierIdx) {
				best = refined
				inlierIdx = refinedInliers
			}
		}
	}

	return best, &ransacSummary{Inliers: inlierIdx, NumIterations: iterations}, nil
}

// requiredIterations is the number of samples needed to draw an outlier
// free minimal sample with the requested failure probability, given the
// observed inlier ratio.
func requiredIterations(failureProbability, inlierRatio float64, sampleSize int) int {
	if inlierRatio <= 0 {
		return math.MaxInt32
	}
	if inlierRatio >= 1 {
		return 1
	}
	pGoodSample := math.Pow(inlierRatio, float64(sampleSize))
	if pGoodSample >= 1-1e-12 {
		return 1
	}
	iters := math.Log(failureProbability) / math.Log(1-pGoodSample)
	if iters > float64(math.MaxInt32) {
		return math.MaxInt32
	}
	return int(math.Ceil(iters))
}

func clampIterations(iters, min, max int) int {
	if iters < min {
		return min
	}
	if iters > max {
		return max
	}
	return iters
}
