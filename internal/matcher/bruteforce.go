package matcher

import (
	"log/slog"

	"github.com/parallax-vision/parallax/internal/camera"
	"github.com/parallax-vision/parallax/internal/feature"
	"github.com/parallax-vision/parallax/internal/mempool"
)

// Config holds parameters for brute-force descriptor matching.
type Config struct {
	// MaxHammingDistance rejects matches with a larger descriptor
	// distance. Zero disables the filter.
	MaxHammingDistance int
	// LoweRatio rejects a match unless its distance is below this
	// fraction of the second-best distance. Zero disables the test.
	LoweRatio float64
	// CrossCheck keeps a match only if it is mutually the best in both
	// directions.
	CrossCheck bool
	// MinNumMatches drops image pairs with fewer surviving matches.
	MinNumMatches int
}

// DefaultConfig returns the matching defaults.
func DefaultConfig() Config {
	return Config{
		MaxHammingDistance: 64,
		LoweRatio:          0.8,
		CrossCheck:         true,
		MinNumMatches:      16,
	}
}

type imageEntry struct {
	name      string
	keypoints []feature.Keypoint
	descs     []feature.Descriptor
	prior     camera.IntrinsicsPrior
	deferred  bool
}

// BruteForceMatcher matches binary descriptors exhaustively with a
// mutual-best check and Lowe's ratio test. It is not safe for concurrent
// registration.
type BruteForceMatcher struct {
	cfg      Config
	images   []*imageEntry
	byName   map[string]*imageEntry
	pairs    [][2]string
	provider FeatureProvider
}

// NewBruteForceMatcher creates a matcher. The provider may be nil when no
// feature cache is in use.
func NewBruteForceMatcher(cfg Config, provider FeatureProvider) *BruteForceMatcher {
	return &BruteForceMatcher{
		cfg:      cfg,
		byName:   make(map[string]*imageEntry),
		provider: provider,
	}
}

// AddImage registers an image with its extracted features.
func (m *BruteForceMatcher) AddImage(
	name string,
	keypoints []feature.Keypoint,
	descriptors []feature.Descriptor,
	prior camera.IntrinsicsPrior,
) {
	entry := &imageEntry{name: name, keypoints: keypoints, descs: descriptors, prior: prior}
	m.register(entry)
}

// AddImageWithoutFeatures registers an image whose features live in the
// feature provider.
func (m *BruteForceMatcher) AddImageWithoutFeatures(name string, prior camera.IntrinsicsPrior) {
	m.register(&imageEntry{name: name, prior: prior, deferred: true})
}

func (m *BruteForceMatcher) register(entry *imageEntry) {
	if existing, ok := m.byName[entry.name]; ok {
		// Re-registration replaces the features and prior in place.
		*existing = *entry
		return
	}
	m.byName[entry.name] = entry
	m.images = append(m.images, entry)
}

// SetImagePairsToMatch restricts matching to the given name pairs.
func (m *BruteForceMatcher) SetImagePairsToMatch(pairs [][2]string) {
	m.pairs = pairs
}

// MatchImages matches every candidate pair and returns pairs that survive
// the minimum-match filter.
func (m *BruteForceMatcher) MatchImages() []ImagePairMatch {
	pairs := m.candidatePairs()
	matches := make([]ImagePairMatch, 0, len(pairs))
	for _, pair := range pairs {
		e1, ok1 := m.byName[pair[0]]
		e2, ok2 := m.byName[pair[1]]
		if !ok1 || !ok2 {
			slog.Warn("Skipping unknown image pair", "image1", pair[0], "image2", pair[1])
			continue
		}
		if !m.ensureFeatures(e1) || !m.ensureFeatures(e2) {
			continue
		}
		correspondences := m.matchPair(e1, e2)
		if len(correspondences) < m.cfg.MinNumMatches {
			slog.Debug("Image pair below minimum match count",
				"image1", e1.name, "image2", e2.name, "matches", len(correspondences))
			continue
		}
		matches = append(matches, ImagePairMatch{
			Image1:          e1.name,
			Image2:          e2.name,
			Prior1:          e1.prior,
			Prior2:          e2.prior,
			Correspondences: correspondences,
		})
	}
	return matches
}

func (m *BruteForceMatcher) candidatePairs() [][2]string {
	if m.pairs != nil {
		return m.pairs
	}
	var pairs [][2]string
	for i := 0; i < len(m.images); i++ {
		for j := i + 1; j < len(m.images); j++ {
			pairs = append(pairs, [2]string{m.images[i].name, m.images[j].name})
		}
	}
	return pairs
}

func (m *BruteForceMatcher) ensureFeatures(e *imageEntry) bool {
	if !e.deferred {
		return true
	}
	if m.provider == nil {
		slog.Warn("Image registered without features and no feature provider configured", "image", e.name)
		return false
	}
	kps, descs, err := m.provider.Load(e.name)
	if err != nil {
		slog.Warn("Failed to load cached features", "image", e.name, "error", err)
		return false
	}
	e.keypoints, e.descs = kps, descs
	e.deferred = false
	return true
}

// matchPair finds mutual nearest-neighbor matches between two feature
// sets.
func (m *BruteForceMatcher) matchPair(e1, e2 *imageEntry) []feature.Correspondence {
	if len(e1.descs) == 0 || len(e2.descs) == 0 {
		return nil
	}

	// Best match in e2 for every descriptor of e1, with the second-best
	// distance for the ratio test.
	best12 := mempool.GetInt(len(e1.descs))
	defer mempool.PutInt(best12)
	accepted := make([]bool, len(e1.descs))
	for i, d1 := range e1.descs {
		bestIdx, bestDist, secondDist := -1, int(^uint(0)>>1), int(^uint(0)>>1)
		for j, d2 := range e2.descs {
			dist := feature.HammingDistance(d1, d2)
			switch {
			case dist < bestDist:
				secondDist = bestDist
				bestDist = dist
				bestIdx = j
			case dist < secondDist:
				secondDist = dist
			}
		}
		best12[i] = bestIdx
		if bestIdx < 0 {
			continue
		}
		if m.cfg.MaxHammingDistance > 0 && bestDist > m.cfg.MaxHammingDistance {
			continue
		}
		if m.cfg.LoweRatio > 0 && float64(bestDist) >= m.cfg.LoweRatio*float64(secondDist) {
			continue
		}
		accepted[i] = true
	}

	if m.cfg.CrossCheck {
		best21 := mempool.GetInt(len(e2.descs))
		defer mempool.PutInt(best21)
		for j, d2 := range e2.descs {
			bestIdx, bestDist := -1, int(^uint(0)>>1)
			for i, d1 := range e1.descs {
				if dist := feature.HammingDistance(d2, d1); dist < bestDist {
					bestDist = dist
					bestIdx = i
				}
			}
			best21[j] = bestIdx
		}
		for i := range accepted {
			if accepted[i] && best21[best12[i]] != i {
				accepted[i] = false
			}
		}
	}

	var correspondences []feature.Correspondence
	for i, ok := range accepted {
		if !ok {
			continue
		}
		correspondences = append(correspondences, feature.Correspondence{
			F1: e1.keypoints[i].Point(),
			F2: e2.keypoints[best12[i]].Point(),
		})
	}
	return correspondences
}
