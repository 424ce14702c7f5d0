// Package matcher matches feature descriptors between registered images.
package matcher

import (
	"github.com/parallax-vision/parallax/internal/camera"
	"github.com/parallax-vision/parallax/internal/feature"
)

// ImagePairMatch holds the verified correspondences between two images.
type ImagePairMatch struct {
	Image1 string
	Image2 string
	// Calibration priors of the two images at matching time.
	Prior1 camera.IntrinsicsPrior
	Prior2 camera.IntrinsicsPrior

	Correspondences []feature.Correspondence
}

// Matcher accumulates per-image features and produces filtered
// correspondence sets. Implementations own their internal matching
// policy; registration calls are not internally synchronized and must be
// serialized by the caller.
type Matcher interface {
	// AddImage registers an image with its features and calibration prior.
	AddImage(name string, keypoints []feature.Keypoint, descriptors []feature.Descriptor, prior camera.IntrinsicsPrior)

	// AddImageWithoutFeatures registers an image whose features will be
	// loaded on demand from a feature provider (the cache short-circuit
	// path).
	AddImageWithoutFeatures(name string, prior camera.IntrinsicsPrior)

	// SetImagePairsToMatch restricts matching to the given candidate
	// pairs, identified by image name. Without a restriction all pairs
	// are matched.
	SetImagePairsToMatch(pairs [][2]string)

	// MatchImages matches all candidate pairs and returns the filtered
	// correspondence sets.
	MatchImages() []ImagePairMatch
}

// FeatureProvider loads previously extracted features by image name.
// The pipeline's feature cache implements this.
type FeatureProvider interface {
	Load(name string) ([]feature.Keypoint, []feature.Descriptor, error)
}
