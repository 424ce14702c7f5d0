package feature

import (
	"errors"
	"image"
	"image/color"
	"sort"

	"github.com/parallax-vision/parallax/internal/utils"
)

// Extractor detects keypoints in an image and computes a descriptor for
// each. Implementations need not be safe for concurrent use; the pipeline
// creates one extractor per worker.
type Extractor interface {
	DetectAndExtract(img image.Image) ([]Keypoint, []Descriptor, error)
}

// Config holds parameters for the default FAST+BRIEF extractor.
type Config struct {
	FAST  FASTConfig
	BRIEF BRIEFConfig
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		FAST:  DefaultFASTConfig(),
		BRIEF: DefaultBRIEFConfig(),
	}
}

// ORBExtractor detects FAST corners and describes them with BRIEF
// descriptors. The sampling pattern is generated at construction time and
// is not safe to share across goroutines.
type ORBExtractor struct {
	cfg   Config
	pairs *samplePairs
}

// NewORBExtractor creates an extractor with the given configuration.
func NewORBExtractor(cfg Config) (*ORBExtractor, error) {
	if cfg.BRIEF.NumPairs <= 0 || cfg.BRIEF.NumPairs%64 != 0 {
		return nil, errors.New("feature: BRIEF pair count must be a positive multiple of 64")
	}
	if cfg.BRIEF.PatchSize < 3 {
		return nil, errors.New("feature: BRIEF patch size too small")
	}
	if cfg.FAST.MinArcLength < 9 || cfg.FAST.MinArcLength > 16 {
		return nil, errors.New("feature: FAST arc length must be in [9, 16]")
	}
	return &ORBExtractor{cfg: cfg, pairs: generateSamplePairs(cfg.BRIEF)}, nil
}

// DetectAndExtract finds keypoints and descriptors in img. Keypoints are
// returned in decreasing response order so that callers can cap the count
// by truncation.
func (e *ORBExtractor) DetectAndExtract(img image.Image) ([]Keypoint, []Descriptor, error) {
	if img == nil {
		return nil, nil, errors.New("feature: nil image")
	}
	gray := utils.ToGray(img)
	kps := detectFAST(gray, e.cfg.FAST)
	if len(kps) == 0 {
		return nil, nil, nil
	}
	sort.Slice(kps, func(i, j int) bool { return kps[i].Response > kps[j].Response })
	descs := computeBRIEFDescriptors(gray, kps, e.pairs, e.cfg.BRIEF)
	return kps, descs, nil
}

func grayValue(v int) color.Gray {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return color.Gray{Y: uint8(v)}
}
