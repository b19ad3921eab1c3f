package octree

import "github.com/golang/geo/r3"

// LineSegment supports efficient segment-vs-cube intersection tests for
// ray tracing through the octree. The element-wise inverse direction and
// its per-axis signs are precomputed once so every cube test branches
// consistently (Williams et al., "An Efficient and Robust Ray-Box
// Intersection Algorithm", 2004).
type LineSegment struct {
	orig   r3.Vector
	end    r3.Vector
	invdir r3.Vector
	sign   [3]int
}

// NewLineSegment builds a segment between the endpoints a and b.
func NewLineSegment(a, b r3.Vector) *LineSegment {
	dir := b.Sub(a)
	seg := &LineSegment{
		orig:   a,
		end:    b,
		invdir: r3.Vector{X: 1 / dir.X, Y: 1 / dir.Y, Z: 1 / dir.Z},
	}
	if seg.invdir.X < 0 {
		seg.sign[0] = 1
	}
	if seg.invdir.Y < 0 {
		seg.sign[1] = 1
	}
	if seg.invdir.Z < 0 {
		seg.sign[2] = 1
	}
	return seg
}

// Origin returns the segment's first endpoint.
func (seg *LineSegment) Origin() r3.Vector { return seg.orig }

// End returns the segment's second endpoint.
func (seg *LineSegment) End() r3.Vector { return seg.end }

// axisSlab returns the entry/exit parameters of the segment across one
// axis slab [min,max], ordered by the precomputed direction sign.
func (seg *LineSegment) axisSlab(axis int, min, max float64) (float64, float64) {
	var origin, inv float64
	switch axis {
	case 0:
		origin, inv = seg.orig.X, seg.invdir.X
	case 1:
		origin, inv = seg.orig.Y, seg.invdir.Y
	default:
		origin, inv = seg.orig.Z, seg.invdir.Z
	}
	if seg.sign[axis] == 0 {
		return (min - origin) * inv, (max - origin) * inv
	}
	return (max - origin) * inv, (min - origin) * inv
}

// Intersects reports whether this segment passes through the axis-aligned
// cube with the given center and half-width.
func (seg *LineSegment) Intersects(center r3.Vector, halfwidth float64) bool {
	return seg.intersectsCube(center, halfwidth, false)
}

func (seg *LineSegment) intersectsCube(center r3.Vector, halfwidth float64, ignoreZ bool) bool {
	tmin, tmax := seg.axisSlab(0, center.X-halfwidth, center.X+halfwidth)
	tymin, tymax := seg.axisSlab(1, center.Y-halfwidth, center.Y+halfwidth)

	if tmin > tymax || tymin > tmax {
		return false
	}
	if tymin > tmin {
		tmin = tymin
	}
	if tymax < tmax {
		tmax = tymax
	}

	if !ignoreZ {
		tzmin, tzmax := seg.axisSlab(2, center.Z-halfwidth, center.Z+halfwidth)
		if tmin > tzmax || tzmin > tmax {
			return false
		}
		if tzmin > tmin {
			tmin = tzmin
		}
		if tzmax < tmax {
			tmax = tzmax
		}
	}

	// the infinite line hits the cube; check the segment's extent
	if tmin > tmax || tmin > 1 || tmax < 0 {
		return false
	}
	return true
}

// LineSegment2D is a segment whose intersection test considers only the
// xy-projection of the cube, used for floorplan-level queries where height
// is irrelevant.
type LineSegment2D struct {
	seg *LineSegment
}

// NewLineSegment2D builds a 2D-projected segment between a and b.
func NewLineSegment2D(a, b r3.Vector) *LineSegment2D {
	return &LineSegment2D{seg: NewLineSegment(a, b)}
}

// Intersects reports whether the xy-projection of this segment crosses the
// xy-projection of the given cube.
func (seg *LineSegment2D) Intersects(center r3.Vector, halfwidth float64) bool {
	return seg.seg.intersectsCube(center, halfwidth, true)
}
