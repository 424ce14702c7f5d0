package utils

import (
	"image"

	"github.com/disintegration/imaging"
)

// ToGray converts any image to 8-bit grayscale with bounds anchored at
// the origin, so callers can index pixels with zero-based coordinates.
// Subimages with a non-zero minimum are copied into a fresh image.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		if g.Rect.Min == (image.Point{}) {
			return g
		}
		return translateGrayToOrigin(g)
	}
	nrgba := imaging.Grayscale(img)
	bounds := nrgba.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, nrgba.At(x, y))
		}
	}
	return gray
}

func translateGrayToOrigin(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := g.PixOffset(b.Min.X, b.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[src:src+b.Dx()])
	}
	return out
}

// BilinearGray samples a grayscale image at a fractional pixel location
// and returns the intensity on a [0, 1] scale. Samples outside the image
// clamp to the nearest border pixel.
func BilinearGray(img *image.Gray, x, y float64) float64 {
	bounds := img.Bounds()
	maxX := float64(bounds.Max.X - 1)
	maxY := float64(bounds.Max.Y - 1)
	x = clampFloat(x, float64(bounds.Min.X), maxX)
	y = clampFloat(y, float64(bounds.Min.Y), maxY)

	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 > bounds.Max.X-1 {
		x1 = x0
	}
	if y1 > bounds.Max.Y-1 {
		y1 = y0
	}
	fx, fy := x-float64(x0), y-float64(y0)

	v00 := float64(img.GrayAt(x0, y0).Y)
	v10 := float64(img.GrayAt(x1, y0).Y)
	v01 := float64(img.GrayAt(x0, y1).Y)
	v11 := float64(img.GrayAt(x1, y1).Y)

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return (top*(1-fy) + bottom*fy) / 255.0
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
