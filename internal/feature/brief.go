package feature

import (
	"image"
	"math/rand"
)

// BRIEFConfig holds parameters for BRIEF descriptor computation.
type BRIEFConfig struct {
	// NumPairs is the number of intensity comparisons per descriptor and
	// therefore the descriptor length in bits. Must be a multiple of 64.
	NumPairs int
	// PatchSize is the side length of the square patch the sample pairs
	// are drawn from.
	PatchSize int
	// Seed makes the sampling pattern reproducible across extractor
	// instances, which keeps descriptors from different worker threads
	// comparable.
	Seed int64
}

// DefaultBRIEFConfig returns the descriptor defaults (256-bit BRIEF).
func DefaultBRIEFConfig() BRIEFConfig {
	return BRIEFConfig{
		NumPairs:  256,
		PatchSize: 31,
		Seed:      42,
	}
}

// samplePairs are the point pairs compared to build each descriptor bit.
type samplePairs struct {
	p0 []image.Point
	p1 []image.Point
}

// generateSamplePairs draws the comparison pattern uniformly from the
// patch, seeded so that every extractor instance produces the same
// pattern.
func generateSamplePairs(cfg BRIEFConfig) *samplePairs {
	rng := rand.New(rand.NewSource(cfg.Seed))
	half := cfg.PatchSize / 2
	sample := func() image.Point {
		return image.Point{
			X: rng.Intn(cfg.PatchSize) - half,
			Y: rng.Intn(cfg.PatchSize) - half,
		}
	}
	sp := &samplePairs{
		p0: make([]image.Point, cfg.NumPairs),
		p1: make([]image.Point, cfg.NumPairs),
	}
	for i := 0; i < cfg.NumPairs; i++ {
		sp.p0[i] = sample()
		sp.p1[i] = sample()
	}
	return sp
}

// computeBRIEFDescriptors computes one binary descriptor per keypoint.
// Keypoints whose patch leaves the image get an all-zero descriptor, same
// as an untextured patch.
func computeBRIEFDescriptors(img *image.Gray, kps []Keypoint, sp *samplePairs, cfg BRIEFConfig) []Descriptor {
	blurred := boxBlurGray(img)
	bounds := blurred.Bounds()
	half := cfg.PatchSize / 2
	words := cfg.NumPairs / 64

	descs := make([]Descriptor, len(kps))
	for k, kp := range kps {
		desc := make(Descriptor, words)
		descs[k] = desc
		x, y := int(kp.X), int(kp.Y)
		if x-half < bounds.Min.X || y-half < bounds.Min.Y ||
			x+half >= bounds.Max.X || y+half >= bounds.Max.Y {
			continue
		}
		for i := 0; i < cfg.NumPairs; i++ {
			v0 := blurred.GrayAt(x+sp.p0[i].X, y+sp.p0[i].Y).Y
			v1 := blurred.GrayAt(x+sp.p1[i].X, y+sp.p1[i].Y).Y
			if v0 > v1 {
				desc[i/64] |= 1 << (i % 64)
			}
		}
	}
	return descs
}

// boxBlurGray applies a 3x3 box filter to smooth out pixel noise before
// the intensity comparisons.
func boxBlurGray(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum, n := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px, py := x+dx, y+dy
					if px < bounds.Min.X || py < bounds.Min.Y || px >= bounds.Max.X || py >= bounds.Max.Y {
						continue
					}
					sum += int(img.GrayAt(px, py).Y)
					n++
				}
			}
			out.SetGray(x, y, grayValue(sum/n))
		}
	}
	return out
}
