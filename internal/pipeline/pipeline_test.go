package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax-vision/parallax/internal/camera"
	"github.com/parallax-vision/parallax/internal/matcher"
	"github.com/parallax-vision/parallax/internal/testutil"
)

func writeTestImages(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	img := testutil.NoisyCheckerboardImage(200, 160, 20, 7)
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = testutil.WritePNG(t, dir, name, img)
	}
	return paths
}

func testPipelineOptions() Options {
	opts := DefaultOptions()
	opts.NumWorkers = 2
	opts.Logger = testLogger()
	return opts
}

func TestExtractAndMatchFeatures(t *testing.T) {
	dir := t.TempDir()
	paths := writeTestImages(t, dir, "img1.png", "img2.png", "img3.png")

	m := matcher.NewBruteForceMatcher(matcher.DefaultConfig(), nil)
	p, err := New(testPipelineOptions(), m)
	require.NoError(t, err)
	for _, path := range paths {
		p.AddImage(path)
	}

	priors, matches, err := p.ExtractAndMatchFeatures(context.Background())
	require.NoError(t, err)

	require.Len(t, priors, 3)
	for _, prior := range priors {
		// No EXIF in the synthetic PNGs, so the median viewing angle
		// guess applies.
		assert.True(t, prior.FocalLength.IsSet)
		assert.InDelta(t, 1.2*200, prior.FocalLength.Value, 1e-9)
		assert.Equal(t, 200, prior.ImageWidth)
		assert.Equal(t, 160, prior.ImageHeight)
	}

	// Identical image content should match across every pair.
	assert.Len(t, matches, 3)
	for _, match := range matches {
		assert.NotEmpty(t, match.Correspondences)
		assert.True(t, match.Prior1.FocalLength.IsSet)
	}
}

func TestExtractAndMatchFeaturesSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	paths := writeTestImages(t, dir, "img1.png", "img2.png")

	m := matcher.NewBruteForceMatcher(matcher.DefaultConfig(), nil)
	p, err := New(testPipelineOptions(), m)
	require.NoError(t, err)
	p.AddImage(paths[0])
	p.AddImage(filepath.Join(dir, "missing.png"))
	p.AddImage(paths[1])

	_, matches, err := p.ExtractAndMatchFeatures(context.Background())
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestExtractAndMatchFeaturesCalibratedOnly(t *testing.T) {
	dir := t.TempDir()
	paths := writeTestImages(t, dir, "img1.png", "img2.png")

	opts := testPipelineOptions()
	opts.OnlyCalibratedViews = true

	m := matcher.NewBruteForceMatcher(matcher.DefaultConfig(), nil)
	p, err := New(opts, m)
	require.NoError(t, err)

	// Only the first image carries a calibration prior; the second has
	// no EXIF and must be skipped in calibrated-only mode.
	prior := camera.IntrinsicsPrior{ImageWidth: 200, ImageHeight: 160}
	prior.FocalLength.Value = 240
	prior.FocalLength.IsSet = true
	p.AddImageWithPrior(paths[0], prior)
	p.AddImage(paths[1])

	priors, matches, err := p.ExtractAndMatchFeatures(context.Background())
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.True(t, priors[0].FocalLength.IsSet)
	assert.False(t, priors[1].FocalLength.IsSet)
}

func TestExtractAndMatchFeaturesRespectsPriors(t *testing.T) {
	dir := t.TempDir()
	paths := writeTestImages(t, dir, "img1.png", "img2.png")

	m := matcher.NewBruteForceMatcher(matcher.DefaultConfig(), nil)
	p, err := New(testPipelineOptions(), m)
	require.NoError(t, err)

	prior := camera.IntrinsicsPrior{ImageWidth: 200, ImageHeight: 160}
	prior.FocalLength.Value = 555
	prior.FocalLength.IsSet = true
	for _, path := range paths {
		p.AddImageWithPrior(path, prior)
	}

	priors, _, err := p.ExtractAndMatchFeatures(context.Background())
	require.NoError(t, err)
	for _, got := range priors {
		assert.Equal(t, 555.0, got.FocalLength.Value)
	}
}

func TestExtractAndMatchFeaturesNoImages(t *testing.T) {
	m := matcher.NewBruteForceMatcher(matcher.DefaultConfig(), nil)
	p, err := New(testPipelineOptions(), m)
	require.NoError(t, err)

	_, _, err = p.ExtractAndMatchFeatures(context.Background())
	assert.Error(t, err)
}

func TestExtractAndMatchFeaturesPairRestriction(t *testing.T) {
	dir := t.TempDir()
	paths := writeTestImages(t, dir, "img1.png", "img2.png", "img3.png")

	m := matcher.NewBruteForceMatcher(matcher.DefaultConfig(), nil)
	p, err := New(testPipelineOptions(), m)
	require.NoError(t, err)
	for _, path := range paths {
		p.AddImage(path)
	}
	p.SetPairsToMatch([][2]string{{paths[0], paths[2]}})

	_, matches, err := p.ExtractAndMatchFeatures(context.Background())
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "img1", matches[0].Image1)
	assert.Equal(t, "img3", matches[0].Image2)
}

func TestExtractAndMatchFeaturesWithCache(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	paths := writeTestImages(t, dir, "img1.png", "img2.png")

	opts := testPipelineOptions()
	opts.FeatureCacheDir = cacheDir

	// First run populates the cache.
	p1, err := New(opts, matcher.NewBruteForceMatcher(matcher.DefaultConfig(), nil))
	require.NoError(t, err)
	for _, path := range paths {
		p1.AddImage(path)
	}
	_, firstMatches, err := p1.ExtractAndMatchFeatures(context.Background())
	require.NoError(t, err)
	require.Len(t, firstMatches, 1)

	for _, name := range []string{"img1", "img2"} {
		_, err := os.Stat(filepath.Join(cacheDir, name+featureFileExtension))
		assert.NoError(t, err)
	}

	// Second run loads features from the cache instead of extracting.
	p2, err := New(opts, matcher.NewBruteForceMatcher(matcher.DefaultConfig(), p1.FeatureCache()))
	require.NoError(t, err)
	for _, path := range paths {
		p2.AddImage(path)
	}
	_, secondMatches, err := p2.ExtractAndMatchFeatures(context.Background())
	require.NoError(t, err)
	require.Len(t, secondMatches, 1)
	assert.Equal(t, len(firstMatches[0].Correspondences), len(secondMatches[0].Correspondences))
}

func TestExtractAndMatchFeaturesCancelledContext(t *testing.T) {
	dir := t.TempDir()
	paths := writeTestImages(t, dir, "img1.png", "img2.png")

	m := matcher.NewBruteForceMatcher(matcher.DefaultConfig(), nil)
	p, err := New(testPipelineOptions(), m)
	require.NoError(t, err)
	for _, path := range paths {
		p.AddImage(path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = p.ExtractAndMatchFeatures(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeatureCacheRoundTrip(t *testing.T) {
	cache, err := NewFeatureCache(t.TempDir())
	require.NoError(t, err)

	assert.False(t, cache.Has("img"))
	_, _, err = cache.Load("img")
	assert.Error(t, err)

	kps, descs, err := extractFromTestImage(t)
	require.NoError(t, err)
	require.NoError(t, cache.Store("img", kps, descs))
	assert.True(t, cache.Has("img"))

	gotKps, gotDescs, err := cache.Load("img")
	require.NoError(t, err)
	assert.Equal(t, kps, gotKps)
	assert.Equal(t, descs, gotDescs)
}
