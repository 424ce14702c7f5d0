package twoview

import (
	"github.com/golang/geo/r2"
)

// visibilityPyramid scores how well observations cover an image. The
// image is divided into a stack of occupancy grids from a coarse 2x2 up
// to 2^levels cells per dimension; spread-out observations occupy more
// cells and therefore score higher than clustered ones.
type visibilityPyramid struct {
	width, height int
	maxCells      int
	// levels[0] is the coarsest grid. Each grid is a flat row-major
	// occupancy counter with cells(i) cells per dimension.
	levels [][]int
}

// newVisibilityPyramid builds a pyramid with the given number of levels.
// Width, height and levels must all be positive.
func newVisibilityPyramid(width, height, levels int) *visibilityPyramid {
	if width <= 0 || height <= 0 || levels <= 0 {
		panic("twoview: visibility pyramid dimensions must be positive")
	}
	p := &visibilityPyramid{
		width:    width,
		height:   height,
		maxCells: 1 << uint(levels),
		levels:   make([][]int, levels),
	}
	for i := range p.levels {
		cells := 1 << uint(1+i)
		p.levels[i] = make([]int, cells*cells)
	}
	return p
}

// addPoint registers an observation at pixel location pt in every level.
func (p *visibilityPyramid) addPoint(pt r2.Point) {
	x := clampInt(int(float64(p.maxCells)*pt.X/float64(p.width)), 0, p.maxCells-1)
	y := clampInt(int(float64(p.maxCells)*pt.Y/float64(p.height)), 0, p.maxCells-1)

	// Walk from the finest grid to the coarsest; halving the resolution
	// of a level is a right shift of the cell coordinates.
	for i := len(p.levels) - 1; i >= 0; i-- {
		cells := 1 << uint(1+i)
		p.levels[i][y*cells+x]++
		x >>= 1
		y >>= 1
	}
}

// score sums, per level, the number of occupied cells weighted by the
// total cell count of that level, so occupancy in finer grids counts for
// more.
func (p *visibilityPyramid) score() int {
	total := 0
	for _, level := range p.levels {
		occupied := 0
		for _, c := range level {
			if c > 0 {
				occupied++
			}
		}
		total += occupied * len(level)
	}
	return total
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
