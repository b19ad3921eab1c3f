// Package trajectory models the localized path of the scanning system:
// a time-ordered sequence of system poses in world coordinates plus the
// static extrinsic transforms of each mounted sensor. Carving interpolates
// this path to recover where a sensor was at any sampled timestamp.
package trajectory

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/buildvox/carver/spatialmath"
)

// ErrPoseNotFound is returned when a timestamp falls outside the recorded
// time range of the path.
var ErrPoseNotFound = errors.New("no pose recorded for timestamp")

// Pose is the system's world placement at one instant.
type Pose struct {
	Time     float64
	Position r3.Vector
	Rotation quat.Number
}

// Transform returns the system -> world transform of this pose.
func (p Pose) Transform() spatialmath.Transform {
	return spatialmath.NewTransform(p.Rotation, p.Position)
}

// Path holds the time-ordered poses of the system and the static
// sensor -> system extrinsics, keyed by sensor name.
type Path struct {
	poses      []Pose
	extrinsics map[string]spatialmath.Transform
}

// NewPath builds a path from poses and sensor extrinsics. Poses are
// sorted by timestamp; at least one pose is required.
func NewPath(poses []Pose, extrinsics map[string]spatialmath.Transform) (*Path, error) {
	if len(poses) == 0 {
		return nil, errors.New("path requires at least one pose")
	}
	sorted := make([]Pose, len(poses))
	copy(sorted, poses)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	if extrinsics == nil {
		extrinsics = map[string]spatialmath.Transform{}
	}
	return &Path{poses: sorted, extrinsics: extrinsics}, nil
}

// NumPoses returns the number of recorded poses.
func (p *Path) NumPoses() int {
	return len(p.poses)
}

// StartTime returns the timestamp of the first recorded pose.
func (p *Path) StartTime() float64 {
	return p.poses[0].Time
}

// EndTime returns the timestamp of the last recorded pose.
func (p *Path) EndTime() float64 {
	return p.poses[len(p.poses)-1].Time
}

// PoseAt interpolates the system pose at timestamp t. Position is
// interpolated linearly and rotation spherically between the two poses
// bracketing t. Timestamps outside the recorded range return
// ErrPoseNotFound.
func (p *Path) PoseAt(t float64) (Pose, error) {
	if t < p.StartTime() || t > p.EndTime() {
		return Pose{}, errors.Wrapf(ErrPoseNotFound,
			"timestamp %f outside path range [%f, %f]", t, p.StartTime(), p.EndTime())
	}

	// index of first pose at or after t
	i := sort.Search(len(p.poses), func(i int) bool { return p.poses[i].Time >= t })
	if p.poses[i].Time == t || i == 0 {
		return p.poses[i], nil
	}

	lo, hi := p.poses[i-1], p.poses[i]
	f := (t - lo.Time) / (hi.Time - lo.Time)
	return Pose{
		Time:     t,
		Position: lo.Position.Mul(1 - f).Add(hi.Position.Mul(f)),
		Rotation: spatialmath.Slerp(lo.Rotation, hi.Rotation, f),
	}, nil
}

// SetExtrinsics registers the static sensor -> system transform for the
// named sensor.
func (p *Path) SetExtrinsics(sensor string, tf spatialmath.Transform) {
	p.extrinsics[sensor] = tf
}

// Extrinsics returns the sensor -> system transform for the named sensor.
func (p *Path) Extrinsics(sensor string) (spatialmath.Transform, error) {
	tf, ok := p.extrinsics[sensor]
	if !ok {
		return spatialmath.Transform{}, errors.Errorf("no extrinsics registered for sensor %q", sensor)
	}
	return tf, nil
}
