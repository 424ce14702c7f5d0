package scene

import (
	"github.com/golang/geo/r2"

	"github.com/parallax-vision/parallax/internal/camera"
)

// Reconstruction is the aggregate root of the scene graph. It owns all
// views, tracks and camera intrinsics groups and maintains the indices
// between them. It is not safe for concurrent mutation; callers assemble
// it from estimator output on a single goroutine.
type Reconstruction struct {
	nextViewID  ViewID
	nextTrackID TrackID
	nextGroupID GroupID

	views  map[ViewID]*View
	tracks map[TrackID]*Track

	viewNameToID map[string]ViewID
	viewToGroup  map[ViewID]GroupID
	groupToViews map[GroupID]map[ViewID]struct{}
}

// New returns an empty reconstruction.
func New() *Reconstruction {
	return &Reconstruction{
		views:        make(map[ViewID]*View),
		tracks:       make(map[TrackID]*Track),
		viewNameToID: make(map[string]ViewID),
		viewToGroup:  make(map[ViewID]GroupID),
		groupToViews: make(map[GroupID]map[ViewID]struct{}),
	}
}

// AddView registers a view under a fresh camera intrinsics group. It
// returns InvalidViewID when the name is already registered.
func (r *Reconstruction) AddView(name string) ViewID {
	// Find the first group id not currently in use.
	groupID := r.nextGroupID
	for {
		if _, used := r.groupToViews[groupID]; !used {
			break
		}
		groupID++
	}
	return r.AddViewToGroup(name, groupID)
}

// AddViewToGroup registers a view in the given camera intrinsics group.
// The group is created if it does not exist yet; if it does, the new
// view's camera shares the group's intrinsics. Returns InvalidViewID when
// the name is already registered.
func (r *Reconstruction) AddViewToGroup(name string, groupID GroupID) ViewID {
	if name == "" {
		return InvalidViewID
	}
	if _, exists := r.viewNameToID[name]; exists {
		return InvalidViewID
	}

	var cam *camera.Camera
	if members, ok := r.groupToViews[groupID]; ok && len(members) > 0 {
		// Alias the intrinsics of an existing group member so that
		// calibration changes propagate to the whole group.
		for memberID := range members {
			cam = camera.NewWithIntrinsics(r.views[memberID].camera.Intrinsics())
			break
		}
	} else {
		cam = camera.New()
		r.groupToViews[groupID] = make(map[ViewID]struct{})
	}

	id := r.nextViewID
	r.nextViewID++
	r.views[id] = newView(name, cam)
	r.viewNameToID[name] = id
	r.viewToGroup[id] = groupID
	r.groupToViews[groupID][id] = struct{}{}
	if groupID >= r.nextGroupID {
		r.nextGroupID = groupID + 1
	}
	return id
}

// RemoveView deletes a view, its name index entry, its group membership
// (removing the group when it becomes empty) and its observations in
// every track. Tracks that drop below two observations are left in place.
func (r *Reconstruction) RemoveView(id ViewID) bool {
	view, ok := r.views[id]
	if !ok {
		return false
	}

	for trackID := range view.features {
		if track, ok := r.tracks[trackID]; ok {
			track.removeView(id)
		}
	}

	groupID := r.viewToGroup[id]
	delete(r.groupToViews[groupID], id)
	if len(r.groupToViews[groupID]) == 0 {
		delete(r.groupToViews, groupID)
	}
	delete(r.viewToGroup, id)
	delete(r.viewNameToID, view.name)
	delete(r.views, id)
	return true
}

// View returns the view with the given id, or nil when absent.
func (r *Reconstruction) View(id ViewID) *View {
	return r.views[id]
}

// ViewIDFromName returns the id registered under name, or InvalidViewID.
func (r *Reconstruction) ViewIDFromName(name string) ViewID {
	if id, ok := r.viewNameToID[name]; ok {
		return id
	}
	return InvalidViewID
}

// NumViews returns the number of views in the reconstruction.
func (r *Reconstruction) NumViews() int { return len(r.views) }

// ViewIDs lists all view ids.
func (r *Reconstruction) ViewIDs() []ViewID {
	ids := make([]ViewID, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	return ids
}

// CameraIntrinsicsGroupIDFromViewID returns the group the view belongs
// to, or InvalidGroupID when the view is unknown.
func (r *Reconstruction) CameraIntrinsicsGroupIDFromViewID(id ViewID) GroupID {
	if groupID, ok := r.viewToGroup[id]; ok {
		return groupID
	}
	return InvalidGroupID
}

// CameraIntrinsicsGroupIDs lists all group ids currently in use.
func (r *Reconstruction) CameraIntrinsicsGroupIDs() []GroupID {
	ids := make([]GroupID, 0, len(r.groupToViews))
	for id := range r.groupToViews {
		ids = append(ids, id)
	}
	return ids
}

// NumCameraIntrinsicsGroups returns the number of intrinsics groups.
func (r *Reconstruction) NumCameraIntrinsicsGroups() int {
	return len(r.groupToViews)
}

// ViewsInCameraIntrinsicsGroup lists the member views of a group.
func (r *Reconstruction) ViewsInCameraIntrinsicsGroup(id GroupID) []ViewID {
	members, ok := r.groupToViews[id]
	if !ok {
		return nil
	}
	ids := make([]ViewID, 0, len(members))
	for viewID := range members {
		ids = append(ids, viewID)
	}
	return ids
}

// AddTrack creates a track from the given observations. It returns
// InvalidTrackID when fewer than two observations are given, when an
// observation references an unknown view, or when two observations share
// a view.
func (r *Reconstruction) AddTrack(observations []Observation) TrackID {
	if len(observations) < 2 {
		return InvalidTrackID
	}
	seen := make(map[ViewID]struct{}, len(observations))
	for _, obs := range observations {
		if _, ok := r.views[obs.ViewID]; !ok {
			return InvalidTrackID
		}
		if _, dup := seen[obs.ViewID]; dup {
			return InvalidTrackID
		}
		seen[obs.ViewID] = struct{}{}
	}

	id := r.nextTrackID
	r.nextTrackID++
	track := newTrack()
	r.tracks[id] = track
	for _, obs := range observations {
		track.addView(obs.ViewID)
		r.views[obs.ViewID].addFeature(id, obs.Feature)
	}
	return id
}

// AddEmptyTrack creates a track with no observations. Observations are
// attached afterwards with AddObservation.
func (r *Reconstruction) AddEmptyTrack() TrackID {
	id := r.nextTrackID
	r.nextTrackID++
	r.tracks[id] = newTrack()
	return id
}

// AddObservation records that a view sees a track at the given pixel
// location. It fails when either id is unknown or when the view already
// observes the track, regardless of the feature value.
func (r *Reconstruction) AddObservation(viewID ViewID, trackID TrackID, f r2.Point) bool {
	view, ok := r.views[viewID]
	if !ok {
		return false
	}
	track, ok := r.tracks[trackID]
	if !ok {
		return false
	}
	if _, exists := view.features[trackID]; exists {
		return false
	}
	if track.ObservedBy(viewID) {
		return false
	}
	view.addFeature(trackID, f)
	track.addView(viewID)
	return true
}

// RemoveTrack deletes a track and its observations from every observing
// view.
func (r *Reconstruction) RemoveTrack(id TrackID) bool {
	track, ok := r.tracks[id]
	if !ok {
		return false
	}
	for viewID := range track.views {
		if view, ok := r.views[viewID]; ok {
			view.removeFeature(id)
		}
	}
	delete(r.tracks, id)
	return true
}

// Track returns the track with the given id, or nil when absent.
func (r *Reconstruction) Track(id TrackID) *Track {
	return r.tracks[id]
}

// NumTracks returns the number of tracks in the reconstruction.
func (r *Reconstruction) NumTracks() int { return len(r.tracks) }

// TrackIDs lists all track ids.
func (r *Reconstruction) TrackIDs() []TrackID {
	ids := make([]TrackID, 0, len(r.tracks))
	for id := range r.tracks {
		ids = append(ids, id)
	}
	return ids
}

// SubReconstruction extracts the requested views into a new
// reconstruction, preserving view ids, track ids and group ids. Cameras
// are deep copies, with intrinsics sharing preserved among subset views
// of the same group. Tracks keep only their in-subset observations;
// tracks with none are dropped. Requested ids that do not exist are
// ignored.
func (r *Reconstruction) SubReconstruction(viewIDs []ViewID) *Reconstruction {
	sub := New()
	// New ids allocated in the subset must not collide with ids that
	// existed in the source.
	sub.nextViewID = r.nextViewID
	sub.nextTrackID = r.nextTrackID
	sub.nextGroupID = r.nextGroupID

	inSubset := make(map[ViewID]struct{}, len(viewIDs))
	groupCamera := make(map[GroupID]*camera.Camera)

	for _, id := range viewIDs {
		view, ok := r.views[id]
		if !ok {
			continue
		}
		if _, dup := inSubset[id]; dup {
			continue
		}
		inSubset[id] = struct{}{}

		groupID := r.viewToGroup[id]
		cam, ok := groupCamera[groupID]
		if !ok {
			cam = view.camera.Clone()
			groupCamera[groupID] = cam
			sub.groupToViews[groupID] = make(map[ViewID]struct{})
		} else {
			cam = camera.NewWithIntrinsics(cam.Intrinsics())
		}
		cam.Position = view.camera.Position
		cam.Orientation = view.camera.Orientation

		copied := newView(view.name, cam)
		copied.estimated = view.estimated
		sub.views[id] = copied
		sub.viewNameToID[view.name] = id
		sub.viewToGroup[id] = groupID
		sub.groupToViews[groupID][id] = struct{}{}
	}

	for trackID, track := range r.tracks {
		var kept *Track
		for viewID := range track.views {
			if _, ok := inSubset[viewID]; !ok {
				continue
			}
			if kept == nil {
				kept = newTrack()
				kept.point = track.point
				kept.estimated = track.estimated
				sub.tracks[trackID] = kept
			}
			kept.addView(viewID)
			if f, ok := r.views[viewID].features[trackID]; ok {
				sub.views[viewID].addFeature(trackID, f)
			}
		}
	}
	return sub
}
