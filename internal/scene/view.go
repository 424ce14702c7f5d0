package scene

import (
	"github.com/golang/geo/r2"

	"github.com/parallax-vision/parallax/internal/camera"
)

// View is a single camera observation of the scene. Its camera may share
// intrinsics with other views in the same intrinsics group, so focal
// length changes through one view are visible to all group members.
type View struct {
	name      string
	camera    *camera.Camera
	estimated bool
	features  map[TrackID]r2.Point
}

func newView(name string, cam *camera.Camera) *View {
	return &View{
		name:     name,
		camera:   cam,
		features: make(map[TrackID]r2.Point),
	}
}

// Name returns the unique name the view was registered under.
func (v *View) Name() string { return v.name }

// Camera returns the view's camera. Mutations to its intrinsics affect
// every view in the same intrinsics group.
func (v *View) Camera() *camera.Camera { return v.camera }

// IsEstimated reports whether the view's pose has been estimated.
func (v *View) IsEstimated() bool { return v.estimated }

// SetEstimated marks the view's pose as estimated or not.
func (v *View) SetEstimated(estimated bool) { v.estimated = estimated }

// NumFeatures returns the number of tracks observed by this view.
func (v *View) NumFeatures() int { return len(v.features) }

// Feature returns the pixel location at which this view observes the
// given track.
func (v *View) Feature(id TrackID) (r2.Point, bool) {
	f, ok := v.features[id]
	return f, ok
}

// TrackIDs lists the tracks observed by this view.
func (v *View) TrackIDs() []TrackID {
	ids := make([]TrackID, 0, len(v.features))
	for id := range v.features {
		ids = append(ids, id)
	}
	return ids
}

func (v *View) addFeature(id TrackID, f r2.Point) {
	v.features[id] = f
}

func (v *View) removeFeature(id TrackID) {
	delete(v.features, id)
}
