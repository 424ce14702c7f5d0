package feature

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallax-vision/parallax/internal/testutil"
)

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Descriptor
		want int
	}{
		{"identical", Descriptor{0xFF00}, Descriptor{0xFF00}, 0},
		{"one bit", Descriptor{0b1000}, Descriptor{0b0000}, 1},
		{"all bits of one word", Descriptor{^uint64(0)}, Descriptor{0}, 64},
		{"length mismatch counts leftover", Descriptor{0, 0xF}, Descriptor{0}, 4},
		{"empty", Descriptor{}, Descriptor{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HammingDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, HammingDistance(tt.b, tt.a))
		})
	}
}

func TestNewORBExtractorValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BRIEF.NumPairs = 100 // not a multiple of 64
	_, err := NewORBExtractor(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.FAST.MinArcLength = 3
	_, err = NewORBExtractor(cfg)
	assert.Error(t, err)

	_, err = NewORBExtractor(DefaultConfig())
	assert.NoError(t, err)
}

func TestDetectAndExtractCheckerboard(t *testing.T) {
	e, err := NewORBExtractor(DefaultConfig())
	require.NoError(t, err)

	img := testutil.CheckerboardImage(128, 128, 16)
	kps, descs, err := e.DetectAndExtract(img)
	require.NoError(t, err)
	require.NotEmpty(t, kps, "a checkerboard must produce corners")
	assert.Len(t, descs, len(kps))

	// Keypoints must be sorted by decreasing response.
	for i := 1; i < len(kps); i++ {
		assert.GreaterOrEqual(t, kps[i-1].Response, kps[i].Response)
	}
	for _, d := range descs {
		assert.Len(t, d, DefaultBRIEFConfig().NumPairs/64)
	}
}

func TestDetectAndExtractFlatImage(t *testing.T) {
	e, err := NewORBExtractor(DefaultConfig())
	require.NoError(t, err)

	img := testutil.FlatGrayImage(64, 64, 128)
	kps, descs, err := e.DetectAndExtract(img)
	require.NoError(t, err)
	assert.Empty(t, kps, "a flat image has no corners")
	assert.Empty(t, descs)
}

func TestDetectAndExtractNilImage(t *testing.T) {
	e, err := NewORBExtractor(DefaultConfig())
	require.NoError(t, err)
	_, _, err = e.DetectAndExtract(nil)
	assert.Error(t, err)
}

func TestDeterministicSamplingPattern(t *testing.T) {
	// Two extractor instances (as created by separate pipeline workers)
	// must produce identical descriptors for the same image.
	e1, err := NewORBExtractor(DefaultConfig())
	require.NoError(t, err)
	e2, err := NewORBExtractor(DefaultConfig())
	require.NoError(t, err)

	img := testutil.CheckerboardImage(96, 96, 12)
	kps1, descs1, err := e1.DetectAndExtract(img)
	require.NoError(t, err)
	kps2, descs2, err := e2.DetectAndExtract(img)
	require.NoError(t, err)

	require.Equal(t, len(kps1), len(kps2))
	for i := range descs1 {
		assert.Equal(t, 0, HammingDistance(descs1[i], descs2[i]))
	}
}

func TestDetectAndExtractSubImage(t *testing.T) {
	extractor, err := NewORBExtractor(DefaultConfig())
	require.NoError(t, err)

	full := testutil.NoisyCheckerboardImage(320, 260, 20, 7)
	region := image.Rect(60, 40, 260, 200)
	sub := full.SubImage(region).(*image.Gray)

	// The same pixels anchored at the origin must yield identical results.
	shifted := image.NewGray(image.Rect(0, 0, region.Dx(), region.Dy()))
	for y := 0; y < region.Dy(); y++ {
		for x := 0; x < region.Dx(); x++ {
			shifted.SetGray(x, y, full.GrayAt(region.Min.X+x, region.Min.Y+y))
		}
	}

	subKps, subDescs, err := extractor.DetectAndExtract(sub)
	require.NoError(t, err)
	wantKps, wantDescs, err := extractor.DetectAndExtract(shifted)
	require.NoError(t, err)

	require.NotEmpty(t, wantKps)
	assert.Equal(t, wantKps, subKps)
	assert.Equal(t, wantDescs, subDescs)
}
