package twoview

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
)

func TestVisibilityPyramidSinglePoint(t *testing.T) {
	p := newVisibilityPyramid(64, 64, 6)
	p.addPoint(r2.Point{X: 10, Y: 10})

	// One occupied cell per level, weighted by that level's cell count:
	// 4 + 16 + 64 + 256 + 1024 + 4096.
	assert.Equal(t, 5460, p.score())
}

func TestVisibilityPyramidSpreadScoresHigherThanClustered(t *testing.T) {
	spread := newVisibilityPyramid(1000, 800, 6)
	spread.addPoint(r2.Point{X: 10, Y: 10})
	spread.addPoint(r2.Point{X: 990, Y: 790})

	clustered := newVisibilityPyramid(1000, 800, 6)
	clustered.addPoint(r2.Point{X: 10, Y: 10})
	clustered.addPoint(r2.Point{X: 11, Y: 11})

	assert.Greater(t, spread.score(), clustered.score())
}

func TestVisibilityPyramidClampsOutOfBoundsPoints(t *testing.T) {
	p := newVisibilityPyramid(100, 100, 6)
	p.addPoint(r2.Point{X: -5, Y: 250})
	assert.Equal(t, 5460, p.score())
}

func TestVisibilityPyramidDuplicatePointsDoNotRaiseScore(t *testing.T) {
	p := newVisibilityPyramid(100, 100, 6)
	p.addPoint(r2.Point{X: 50, Y: 50})
	single := p.score()
	p.addPoint(r2.Point{X: 50, Y: 50})
	assert.Equal(t, single, p.score())
}

func TestVisibilityPyramidInvalidDimensionsPanics(t *testing.T) {
	assert.Panics(t, func() { newVisibilityPyramid(0, 100, 6) })
	assert.Panics(t, func() { newVisibilityPyramid(100, 100, 0) })
}
