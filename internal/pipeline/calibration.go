package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/parallax-vision/parallax/internal/camera"
)

// calibrationEntry is one image's record in a calibration file. Pointer
// fields distinguish an absent value from an explicit zero.
type calibrationEntry struct {
	FocalLength    *float64    `yaml:"focal_length"`
	PrincipalPoint *[2]float64 `yaml:"principal_point"`
	ImageWidth     int         `yaml:"image_width"`
	ImageHeight    int         `yaml:"image_height"`
}

// LoadCalibration reads a YAML calibration file mapping image names,
// with or without extension, to known intrinsics. For example:
//
//	img_001.jpg:
//	  focal_length: 1200.5
//	  principal_point: [960, 540]
//
// Priors loaded here take precedence over EXIF metadata for the images
// they name.
func LoadCalibration(path string) (map[string]camera.IntrinsicsPrior, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading calibration file: %w", err)
	}

	var entries map[string]calibrationEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing calibration file %s: %w", path, err)
	}

	priors := make(map[string]camera.IntrinsicsPrior, len(entries))
	for name, entry := range entries {
		prior := camera.IntrinsicsPrior{
			ImageWidth:  entry.ImageWidth,
			ImageHeight: entry.ImageHeight,
		}
		if entry.FocalLength != nil {
			prior.FocalLength.Value = *entry.FocalLength
			prior.FocalLength.IsSet = true
		}
		if entry.PrincipalPoint != nil {
			prior.PrincipalPoint.Value = *entry.PrincipalPoint
			prior.PrincipalPoint.IsSet = true
		}
		priors[name] = prior
	}
	return priors, nil
}
