package carve

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/buildvox/carver/chunk"
	"github.com/buildvox/carver/octree"
)

// WedgeShape is the carving volume of one wedge: the region between two
// consecutive sensor positions and the two pairs of adjacent scan points
// they measured. Scan point vertices are pushed past their means by the
// carve buffer times their largest standard deviation, so the shape
// bounds everywhere the underlying distributions could plausibly carve.
//
// Vertex layout: 0 sensor A, 1/2 points A1/A2, 3 sensor B, 4/5 points
// B1/B2.
type WedgeShape struct {
	verts       [6]r3.Vector
	interpolate bool

	// precomputed vertex spacings steering how densely rays are
	// interpolated during intersection tests
	d12, d45, d03, d14, d25 float64
}

// NewWedgeShape builds the wedge volume over two frames' sensor positions
// and scan point records, with the carve buffer in standard deviations.
func NewWedgeShape(sensorA r3.Vector, a1, a2 chunk.CarveMapPoint,
	sensorB r3.Vector, b1, b2 chunk.CarveMapPoint,
	buffer float64, interpolate bool,
) *WedgeShape {
	w := &WedgeShape{interpolate: interpolate}
	w.verts[0] = sensorA
	w.verts[1] = bloat(sensorA, a1, buffer)
	w.verts[2] = bloat(sensorA, a2, buffer)
	w.verts[3] = sensorB
	w.verts[4] = bloat(sensorB, b1, buffer)
	w.verts[5] = bloat(sensorB, b2, buffer)

	w.d12 = w.verts[1].Sub(w.verts[2]).Norm()
	w.d45 = w.verts[4].Sub(w.verts[5]).Norm()
	w.d03 = w.verts[0].Sub(w.verts[3]).Norm()
	w.d14 = w.verts[1].Sub(w.verts[4]).Norm()
	w.d25 = w.verts[2].Sub(w.verts[5]).Norm()
	return w
}

// bloat pushes a scan point past its mean, away from the sensor, by
// buffer standard deviations.
func bloat(sensor r3.Vector, p chunk.CarveMapPoint, buffer float64) r3.Vector {
	dir := p.Mean.Sub(sensor)
	if dir.Norm() < 1e-12 {
		return p.Mean
	}
	sigma := math.Max(p.SigmaRange, p.SigmaLateral)
	return p.Mean.Add(dir.Normalize().Mul(buffer * sigma))
}

// NumVerts returns the number of wedge vertices.
func (w *WedgeShape) NumVerts() int { return len(w.verts) }

// Vertex returns the i'th wedge vertex.
func (w *WedgeShape) Vertex(i int) r3.Vector { return w.verts[i] }

// Intersects reports whether the cube could be touched by carving this
// wedge. The volume is tested by bilinearly interpolating sample rays
// between the wedge's corner rays at the cube's own spacing, so no cube
// of the tested size can slip between rays.
func (w *WedgeShape) Intersects(center r3.Vector, halfwidth float64) bool {
	if !w.interpolate {
		seg := octree.NewLineSegment(w.verts[0], w.verts[1])
		return seg.Intersects(center, halfwidth)
	}

	fv := interpolationSteps(math.Max(w.d12, w.d45), halfwidth)
	fh := interpolationSteps(math.Max(w.d03, math.Max(w.d14, w.d25)), halfwidth)

	for j := 0; j <= fh+1; j++ {
		t := float64(j) / float64(fh+1)
		s := lerp(w.verts[3], w.verts[0], t)
		p1 := lerp(w.verts[4], w.verts[1], t)
		p2 := lerp(w.verts[5], w.verts[2], t)
		for i := 0; i <= fv+1; i++ {
			u := float64(i) / float64(fv+1)
			seg := octree.NewLineSegment(s, lerp(p1, p2, u))
			if seg.Intersects(center, halfwidth) {
				return true
			}
		}
	}
	return false
}

func interpolationSteps(span, halfwidth float64) int {
	if halfwidth <= 0 {
		return 0
	}
	return int(span / halfwidth)
}

func lerp(a, b r3.Vector, t float64) r3.Vector {
	return a.Add(b.Sub(a).Mul(t))
}

// ApplyToLeaf leaves the tree untouched: the wedge shape only bounds
// geometry, carving itself goes through PointCarver.
func (w *WedgeShape) ApplyToLeaf(center r3.Vector, halfwidth float64, d *octree.LeafData) *octree.LeafData {
	return d
}
