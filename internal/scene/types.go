// Package scene holds the reconstruction data model: views, tracks and
// shared camera intrinsics groups, with the referential integrity
// guarantees the rest of the system relies on.
package scene

import "github.com/golang/geo/r2"

// ViewID identifies a view within one Reconstruction. IDs are allocated
// monotonically and never reused after removal.
type ViewID int

// TrackID identifies a track within one Reconstruction.
type TrackID int

// GroupID identifies a camera intrinsics group.
type GroupID int

// Sentinel values returned by failed add operations and lookups.
const (
	InvalidViewID  ViewID  = -1
	InvalidTrackID TrackID = -1
	InvalidGroupID GroupID = -1
)

// Observation pairs a view with the pixel location at which it sees a
// track.
type Observation struct {
	ViewID  ViewID
	Feature r2.Point
}
