package scene

import "github.com/golang/geo/r3"

// Track is a hypothesized 3D point together with the set of views that
// observe it.
type Track struct {
	point     r3.Vector
	estimated bool
	views     map[ViewID]struct{}
}

func newTrack() *Track {
	return &Track{views: make(map[ViewID]struct{})}
}

// Point returns the estimated 3D position. It is only meaningful when
// IsEstimated reports true.
func (t *Track) Point() r3.Vector { return t.point }

// SetPoint sets the estimated 3D position.
func (t *Track) SetPoint(p r3.Vector) { t.point = p }

// IsEstimated reports whether the track's 3D position has been estimated.
func (t *Track) IsEstimated() bool { return t.estimated }

// SetEstimated marks the track's position as estimated or not.
func (t *Track) SetEstimated(estimated bool) { t.estimated = estimated }

// NumViews returns the number of views observing the track.
func (t *Track) NumViews() int { return len(t.views) }

// ObservedBy reports whether the given view observes this track.
func (t *Track) ObservedBy(id ViewID) bool {
	_, ok := t.views[id]
	return ok
}

// ViewIDs lists the views observing this track.
func (t *Track) ViewIDs() []ViewID {
	ids := make([]ViewID, 0, len(t.views))
	for id := range t.views {
		ids = append(ids, id)
	}
	return ids
}

func (t *Track) addView(id ViewID) {
	t.views[id] = struct{}{}
}

func (t *Track) removeView(id ViewID) {
	delete(t.views, id)
}
