package testutil

import (
	"math"
	"math/rand"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// TwoViewScene is a synthetic stereo configuration with known geometry.
// Camera 1 sits at the origin with identity orientation; camera 2 is
// rotated by Rotation (angle-axis) and placed at Position.
type TwoViewScene struct {
	FocalLength1 float64
	FocalLength2 float64
	Width        int
	Height       int

	Rotation r3.Vector
	Position r3.Vector

	// Matched pixel locations in image 1 and image 2, index aligned.
	Points1 []r2.Point
	Points2 []r2.Point
}

// SceneConfig controls synthetic scene generation.
type SceneConfig struct {
	NumPoints   int
	NumOutliers int
	NoisePixels float64
	FocalLength float64
	Width       int
	Height      int
	// RotationAngle (radians, about the y axis) and Baseline place the
	// second camera.
	RotationAngle float64
	Baseline      r3.Vector
	Seed          int64
}

// DefaultSceneConfig returns a well-conditioned stereo setup.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		NumPoints:     100,
		NumOutliers:   0,
		NoisePixels:   0,
		FocalLength:   800,
		Width:         1000,
		Height:        800,
		RotationAngle: 0.1,
		Baseline:      r3.Vector{X: 1, Y: 0.1, Z: 0.05},
		Seed:          91,
	}
}

// GenerateTwoViewScene builds a synthetic scene: random 3D points in front
// of both cameras projected into both images, with optional pixel noise
// and outlier matches appended at the end of the correspondence lists.
func GenerateTwoViewScene(cfg SceneConfig) TwoViewScene {
	rng := rand.New(rand.NewSource(cfg.Seed))

	rotation := r3.Vector{X: 0, Y: cfg.RotationAngle, Z: 0}
	position := cfg.Baseline.Normalize()

	scene := TwoViewScene{
		FocalLength1: cfg.FocalLength,
		FocalLength2: cfg.FocalLength,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Rotation:     rotation,
		Position:     position,
	}
	cx := float64(cfg.Width) / 2
	cy := float64(cfg.Height) / 2

	for len(scene.Points1) < cfg.NumPoints {
		// Points spread across the frustum, comfortably in front of
		// both cameras.
		point := r3.Vector{
			X: (rng.Float64() - 0.5) * 8,
			Y: (rng.Float64() - 0.5) * 6,
			Z: 6 + rng.Float64()*8,
		}
		p1, ok1 := project(point, r3.Vector{}, r3.Vector{}, cfg.FocalLength, cx, cy, cfg.Width, cfg.Height)
		p2, ok2 := project(point, rotation, position, cfg.FocalLength, cx, cy, cfg.Width, cfg.Height)
		if !ok1 || !ok2 {
			continue
		}
		if cfg.NoisePixels > 0 {
			p1.X += rng.NormFloat64() * cfg.NoisePixels
			p1.Y += rng.NormFloat64() * cfg.NoisePixels
			p2.X += rng.NormFloat64() * cfg.NoisePixels
			p2.Y += rng.NormFloat64() * cfg.NoisePixels
		}
		scene.Points1 = append(scene.Points1, p1)
		scene.Points2 = append(scene.Points2, p2)
	}

	for i := 0; i < cfg.NumOutliers; i++ {
		scene.Points1 = append(scene.Points1, r2.Point{
			X: rng.Float64() * float64(cfg.Width),
			Y: rng.Float64() * float64(cfg.Height),
		})
		scene.Points2 = append(scene.Points2, r2.Point{
			X: rng.Float64() * float64(cfg.Width),
			Y: rng.Float64() * float64(cfg.Height),
		})
	}
	return scene
}

// project transforms a world point into the camera frame given by the
// angle-axis rotation and camera position, then projects it to pixels.
func project(point, rotation, position r3.Vector, focal, cx, cy float64, width, height int) (r2.Point, bool) {
	cam := RotateAngleAxis(rotation, point.Sub(position))
	if cam.Z <= 0 {
		return r2.Point{}, false
	}
	p := r2.Point{
		X: focal*cam.X/cam.Z + cx,
		Y: focal*cam.Y/cam.Z + cy,
	}
	if p.X < 0 || p.Y < 0 || p.X >= float64(width) || p.Y >= float64(height) {
		return r2.Point{}, false
	}
	return p, true
}

// RotateAngleAxis rotates v by the rotation encoded as an angle-axis
// vector (Rodrigues' formula).
func RotateAngleAxis(aa, v r3.Vector) r3.Vector {
	angle := aa.Norm()
	if angle < 1e-12 {
		return v
	}
	axis := aa.Mul(1 / angle)
	cosA := math.Cos(angle)
	sinA := math.Sin(angle)
	return v.Mul(cosA).
		Add(axis.Cross(v).Mul(sinA)).
		Add(axis.Mul(axis.Dot(v) * (1 - cosA)))
}
