package pipeline

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parallax-vision/parallax/internal/feature"
)

const featureFileExtension = ".features"

// cachedFeatures is the on-disk representation of one image's features.
type cachedFeatures struct {
	Keypoints   []feature.Keypoint
	Descriptors []feature.Descriptor
}

// FeatureCache stores extracted features on disk, one file per image, so
// repeated runs skip extraction. It implements matcher.FeatureProvider.
type FeatureCache struct {
	dir string
}

// NewFeatureCache opens (creating if needed) a cache directory.
func NewFeatureCache(dir string) (*FeatureCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating feature cache dir: %w", err)
	}
	return &FeatureCache{dir: dir}, nil
}

// Has reports whether features for the named image are cached.
func (c *FeatureCache) Has(name string) bool {
	_, err := os.Stat(c.path(name))
	return err == nil
}

// Store writes the features for the named image. The write goes through
// a temporary file so a concurrent reader never sees a partial file.
func (c *FeatureCache) Store(name string, keypoints []feature.Keypoint, descriptors []feature.Descriptor) error {
	tmp, err := os.CreateTemp(c.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating feature file: %w", err)
	}
	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(cachedFeatures{Keypoints: keypoints, Descriptors: descriptors}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encoding features for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(name))
}

// Load reads the cached features for the named image.
func (c *FeatureCache) Load(name string) ([]feature.Keypoint, []feature.Descriptor, error) {
	f, err := os.Open(c.path(name))
	if err != nil {
		return nil, nil, fmt.Errorf("opening feature file for %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	var cached cachedFeatures
	if err := gob.NewDecoder(f).Decode(&cached); err != nil {
		return nil, nil, fmt.Errorf("decoding features for %s: %w", name, err)
	}
	return cached.Keypoints, cached.Descriptors, nil
}

func (c *FeatureCache) path(name string) string {
	return filepath.Join(c.dir, name+featureFileExtension)
}
