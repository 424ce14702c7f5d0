// Package feature provides keypoint detection and binary descriptor
// extraction for the reconstruction pipeline.
package feature

import (
	"math/bits"

	"github.com/golang/geo/r2"
)

// Keypoint is a detected interest point in pixel coordinates.
type Keypoint struct {
	X, Y     float64
	Response float64
}

// Point returns the keypoint location as an r2.Point.
func (k Keypoint) Point() r2.Point { return r2.Point{X: k.X, Y: k.Y} }

// Descriptor is a binary descriptor stored as a bit vector.
type Descriptor []uint64

// HammingDistance returns the number of differing bits between two
// descriptors. Descriptors of different lengths compare as maximally
// distant over the shorter prefix plus the leftover words.
func HammingDistance(a, b Descriptor) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		d += bits.OnesCount64(a[i] ^ b[i])
	}
	for i := n; i < len(a); i++ {
		d += bits.OnesCount64(a[i])
	}
	for i := n; i < len(b); i++ {
		d += bits.OnesCount64(b[i])
	}
	return d
}

// Correspondence is a pair of matched feature locations in two images,
// in pixel coordinates unless stated otherwise.
type Correspondence struct {
	F1 r2.Point
	F2 r2.Point
}
