// Package exif recovers weak calibration priors from image metadata.
package exif

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/parallax-vision/parallax/internal/camera"
)

// Standard full-frame sensor width in millimeters, used to convert a
// 35mm-equivalent focal length into pixels.
const fullFrameSensorWidthMM = 36.0

// Millimeters per inch, for focal-plane resolutions reported in inches.
const mmPerInch = 25.4

// Reader extracts camera intrinsics priors from EXIF metadata.
type Reader struct{}

// NewReader creates an EXIF reader.
func NewReader() *Reader { return &Reader{} }

// ExtractMetadata reads the EXIF block of the image at path and fills any
// recoverable fields of the prior. Absent or partial EXIF data is not an
// error; the corresponding prior fields are simply left unset. Only IO
// failures are reported.
func (r *Reader) ExtractMetadata(path string, prior *camera.IntrinsicsPrior) error {
	if prior == nil {
		panic("exif: nil prior")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("Failed to close image file", "path", path, "error", cerr)
		}
	}()

	meta, err := exif.Decode(f)
	if err != nil {
		// No EXIF block at all. The caller falls back to synthetic priors.
		slog.Debug("No EXIF metadata found", "path", path)
		return nil
	}

	if w, ok := intTag(meta, exif.PixelXDimension); ok && prior.ImageWidth == 0 {
		prior.ImageWidth = w
	}
	if h, ok := intTag(meta, exif.PixelYDimension); ok && prior.ImageHeight == 0 {
		prior.ImageHeight = h
	}

	if prior.FocalLength.IsSet {
		return nil
	}
	if focal, ok := focalLengthPixels(meta, prior.ImageWidth); ok {
		prior.FocalLength.Value = focal
		prior.FocalLength.IsSet = true
		slog.Debug("Recovered EXIF focal length", "path", path, "focal_length_px", focal)
	}
	return nil
}

// focalLengthPixels converts the EXIF focal length to pixels, preferring
// the focal-plane resolution when present and falling back to the
// 35mm-equivalent focal length.
func focalLengthPixels(meta *exif.Exif, imageWidth int) (float64, bool) {
	if focalMM, ok := ratTag(meta, exif.FocalLength); ok && focalMM > 0 {
		if res, resOK := ratTag(meta, exif.FocalPlaneXResolution); resOK && res > 0 {
			unit, _ := intTag(meta, exif.FocalPlaneResolutionUnit)
			perMM := res / mmPerInch // unit 2 (inches) is the overwhelming default
			if unit == 3 {           // centimeters
				perMM = res / 10.0
			}
			return focalMM * perMM, true
		}
		if f35, ok35 := intTag(meta, exif.FocalLengthIn35mmFilm); ok35 && f35 > 0 && imageWidth > 0 {
			// Scale by how much this lens crops relative to full frame.
			sensorWidth := focalMM * fullFrameSensorWidthMM / float64(f35)
			return focalMM * float64(imageWidth) / sensorWidth, true
		}
	}
	if f35, ok := intTag(meta, exif.FocalLengthIn35mmFilm); ok && f35 > 0 && imageWidth > 0 {
		return float64(f35) / fullFrameSensorWidthMM * float64(imageWidth), true
	}
	return 0, false
}

func intTag(meta *exif.Exif, name exif.FieldName) (int, bool) {
	tag, err := meta.Get(name)
	if err != nil {
		return 0, false
	}
	v, err := tag.Int(0)
	if err != nil {
		return 0, false
	}
	return v, true
}

func ratTag(meta *exif.Exif, name exif.FieldName) (float64, bool) {
	tag, err := meta.Get(name)
	if err != nil {
		return 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}
