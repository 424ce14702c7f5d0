package feature

import (
	"image"
)

// Bresenham circle of radius 3 used by the FAST segment test, starting at
// 12 o'clock and walking clockwise.
var fastCircle = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

// FASTConfig holds parameters for the FAST corner detector.
type FASTConfig struct {
	// Threshold is the minimum absolute intensity difference between the
	// center pixel and a circle pixel for the circle pixel to count.
	Threshold int
	// MinArcLength is the number of contiguous circle pixels required to
	// declare a corner. 12 gives the classic FAST-12 detector.
	MinArcLength int
	// NonMaxSuppression removes corners that are not local response
	// maxima in their 3x3 neighborhood.
	NonMaxSuppression bool
}

// DefaultFASTConfig returns the detector defaults.
func DefaultFASTConfig() FASTConfig {
	return FASTConfig{
		Threshold:         20,
		MinArcLength:      12,
		NonMaxSuppression: true,
	}
}

// detectFAST finds corner keypoints in a grayscale image. The response of
// each corner is the summed absolute difference between the center pixel
// and the circle pixels that pass the threshold test.
func detectFAST(img *image.Gray, cfg FASTConfig) []Keypoint {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	const margin = 3
	responses := make(map[[2]int]float64)
	for y := margin; y < h-margin; y++ {
		for x := margin; x < w-margin; x++ {
			if resp, ok := cornerResponse(img, x, y, cfg); ok {
				responses[[2]int{x, y}] = resp
			}
		}
	}

	kps := make([]Keypoint, 0, len(responses))
	for pos, resp := range responses {
		if cfg.NonMaxSuppression && !isLocalMaximum(responses, pos, resp) {
			continue
		}
		kps = append(kps, Keypoint{X: float64(pos[0]), Y: float64(pos[1]), Response: resp})
	}
	return kps
}

func cornerResponse(img *image.Gray, x, y int, cfg FASTConfig) (float64, bool) {
	center := int(img.GrayAt(x, y).Y)

	// Classify every circle pixel: +1 brighter, -1 darker, 0 similar.
	var labels [16]int
	var diffs [16]int
	for i, off := range fastCircle {
		v := int(img.GrayAt(x+off[0], y+off[1]).Y)
		d := v - center
		diffs[i] = d
		switch {
		case d > cfg.Threshold:
			labels[i] = 1
		case d < -cfg.Threshold:
			labels[i] = -1
		}
	}

	// Look for a contiguous arc of identical non-zero labels, wrapping
	// around the circle.
	for _, want := range []int{1, -1} {
		run := 0
		best := 0
		for i := 0; i < 32; i++ {
			if labels[i%16] == want {
				run++
				if run > best {
					best = run
				}
			} else {
				run = 0
			}
		}
		if best >= cfg.MinArcLength {
			resp := 0.0
			for i := range labels {
				if labels[i] == want {
					if diffs[i] < 0 {
						resp -= float64(diffs[i])
					} else {
						resp += float64(diffs[i])
					}
				}
			}
			return resp, true
		}
	}
	return 0, false
}

func isLocalMaximum(responses map[[2]int]float64, pos [2]int, resp float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			if other, ok := responses[[2]int{pos[0] + dx, pos[1] + dy}]; ok && other > resp {
				return false
			}
		}
	}
	return true
}
