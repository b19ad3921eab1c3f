package floorplan

import (
	"github.com/golang/geo/r3"

	"github.com/buildvox/carver/octree"
)

// ExtrudedPoly adapts one floorplan room to the octree Shape interface:
// the room's 2D triangulation extruded from floor to ceiling height.
// Applying it to a carved tree labels every observed leaf inside the room
// volume with the room index; leaves are never created or re-weighted.
type ExtrudedPoly struct {
	roomIndex int32
	floor     float64
	ceiling   float64
	// verts holds the room's unique floorplan vertices; tris indexes
	// into verts with room-local indices.
	verts []Vertex
	tris  []Triangle
}

// NewExtrudedPoly builds the extruded shape of room ri, labeling leaves
// with roomIndex.
func NewExtrudedPoly(f *Floorplan, ri int, roomIndex int32) *ExtrudedPoly {
	room := &f.Rooms[ri]
	ep := &ExtrudedPoly{
		roomIndex: roomIndex,
		floor:     room.MinZ,
		ceiling:   room.MaxZ,
	}
	local := map[int]int{}
	for _, ti := range room.Tris {
		var lt Triangle
		for i, vi := range f.Tris[ti] {
			li, ok := local[vi]
			if !ok {
				li = len(ep.verts)
				local[vi] = li
				ep.verts = append(ep.verts, f.Verts[vi])
			}
			lt[i] = li
		}
		ep.tris = append(ep.tris, lt)
	}
	return ep
}

// RoomIndex returns the label applied to leaves inside the room.
func (ep *ExtrudedPoly) RoomIndex() int32 { return ep.roomIndex }

// NumVerts returns the number of extruded vertices: each floorplan vertex
// appears once at floor height and once at ceiling height.
func (ep *ExtrudedPoly) NumVerts() int { return 2 * len(ep.verts) }

// Vertex returns the i'th extruded vertex; the first half are on the
// floor, the second half on the ceiling.
func (ep *ExtrudedPoly) Vertex(i int) r3.Vector {
	v := ep.verts[i%len(ep.verts)]
	z := ep.floor
	if i >= len(ep.verts) {
		z = ep.ceiling
	}
	return r3.Vector{X: v.X, Y: v.Y, Z: z}
}

// Intersects reports whether the cube overlaps the extruded room volume.
func (ep *ExtrudedPoly) Intersects(center r3.Vector, halfwidth float64) bool {
	if center.Z-halfwidth > ep.ceiling || center.Z+halfwidth < ep.floor {
		return false
	}
	for _, t := range ep.tris {
		if triOverlapsSquare(ep.verts[t[0]], ep.verts[t[1]], ep.verts[t[2]],
			center.X, center.Y, halfwidth) {
			return true
		}
	}
	return false
}

// ApplyToLeaf labels already-observed leaves with the room index. Leaves
// without data stay empty.
func (ep *ExtrudedPoly) ApplyToLeaf(center r3.Vector, halfwidth float64, d *octree.LeafData) *octree.LeafData {
	if d != nil {
		d.Room = ep.roomIndex
	}
	return d
}
