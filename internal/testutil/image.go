// Package testutil provides shared fixtures for tests: synthetic images
// and synthetic two-view scenes with known geometry.
package testutil

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// FlatGrayImage creates a uniform grayscale image.
func FlatGrayImage(width, height int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	return img
}

// CheckerboardImage creates a black/white checkerboard, a reliable source
// of corner features.
func CheckerboardImage(width, height, cell int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if ((x/cell)+(y/cell))%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// NoisyCheckerboardImage overlays deterministic per-pixel jitter on a
// checkerboard so that different "photos" of the same scene do not match
// bit for bit.
func NoisyCheckerboardImage(width, height, cell int, seed uint32) *image.Gray {
	img := CheckerboardImage(width, height, cell)
	state := seed | 1
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			state = state*1664525 + 1013904223
			jitter := int(state>>28) - 8
			v := int(img.GrayAt(x, y).Y) + jitter
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// WritePNG encodes img into dir under name and returns the full path.
func WritePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}
