package utils

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"photo.png", true},
		{"photo.bmp", true},
		{"photo.tiff", false},
		{"photo", false},
		{"dir/photo.pdf", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSupportedImage(tt.path), tt.path)
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.png")
	img := image.NewGray(image.Rect(0, 0, 20, 10))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	loaded, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Equal(t, 20, meta.Width)
	assert.Equal(t, 10, meta.Height)
	assert.Equal(t, "png", meta.Format)
	assert.InDelta(t, 2.0, meta.AspectRatio, 1e-9)
}

func TestLoadImageErrors(t *testing.T) {
	_, _, err := LoadImage("")
	assert.Error(t, err)

	_, _, err = LoadImage("file.xyz")
	assert.Error(t, err)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
	var perr *ImageProcessingError
	assert.ErrorAs(t, err, &perr)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "img1", BaseName("/data/photos/img1.jpg"))
	assert.Equal(t, "img1", BaseName("img1.png"))
	assert.Equal(t, "img1", BaseName("img1"))
}

func TestBilinearGray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(1, 0, color.Gray{Y: 255})
	img.SetGray(0, 1, color.Gray{Y: 0})
	img.SetGray(1, 1, color.Gray{Y: 255})

	assert.InDelta(t, 0.0, BilinearGray(img, 0, 0), 1e-9)
	assert.InDelta(t, 1.0, BilinearGray(img, 1, 1), 1e-9)
	assert.InDelta(t, 0.5, BilinearGray(img, 0.5, 0.5), 1e-9)
	// Out-of-bounds samples clamp.
	assert.InDelta(t, 1.0, BilinearGray(img, 5, 5), 1e-9)
}
