// Package floorplan models a 2D building floorplan with extruded height
// information: a shared triangulation partitioned into rooms, each room a
// set of triangles with one floor and one ceiling height. Floorplans are
// merged into a carved occupancy volume to label voxels with room ids.
package floorplan

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vertex is a 2D floorplan vertex, in meters.
type Vertex struct {
	X, Y float64
}

// Triangle indexes three vertices of the floorplan triangulation.
type Triangle [3]int

// Room is one room of the floorplan: a subset of the triangulation
// extruded between a floor and ceiling height.
type Room struct {
	MinZ float64
	MaxZ float64
	// Tris indexes into the floorplan's triangle list.
	Tris []int
}

// Floorplan is a full extruded floorplan.
type Floorplan struct {
	// Resolution is the resolution the floorplan was generated at, in
	// meters.
	Resolution float64
	Verts      []Vertex
	Tris       []Triangle
	Rooms      []Room
}

// NumRooms returns the number of rooms.
func (f *Floorplan) NumRooms() int { return len(f.Rooms) }

// RoomAt returns the index of the room containing p, or -1 if p is not
// inside any room volume.
func (f *Floorplan) RoomAt(p r3.Vector) int {
	for ri := range f.Rooms {
		if f.roomContains(ri, p) {
			return ri
		}
	}
	return -1
}

func (f *Floorplan) roomContains(ri int, p r3.Vector) bool {
	r := &f.Rooms[ri]
	if p.Z < r.MinZ || p.Z > r.MaxZ {
		return false
	}
	for _, ti := range r.Tris {
		t := f.Tris[ti]
		if pointInTriangle(p.X, p.Y, f.Verts[t[0]], f.Verts[t[1]], f.Verts[t[2]]) {
			return true
		}
	}
	return false
}

// pointInTriangle reports whether (x, y) lies inside or on the triangle
// abc, accepting either winding order.
func pointInTriangle(x, y float64, a, b, c Vertex) bool {
	d1 := edgeSign(x, y, a, b)
	d2 := edgeSign(x, y, b, c)
	d3 := edgeSign(x, y, c, a)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}

func edgeSign(x, y float64, a, b Vertex) float64 {
	return (x-b.X)*(a.Y-b.Y) - (a.X-b.X)*(y-b.Y)
}

// triOverlapsSquare reports whether the triangle abc overlaps the
// axis-aligned square centered at (cx, cy) with half-edge hw, by
// separating axis over x, y and the three edge normals.
func triOverlapsSquare(a, b, c Vertex, cx, cy, hw float64) bool {
	verts := [3]Vertex{a, b, c}
	axes := [5][2]float64{
		{1, 0},
		{0, 1},
		{a.Y - b.Y, b.X - a.X},
		{b.Y - c.Y, c.X - b.X},
		{c.Y - a.Y, a.X - c.X},
	}
	for _, n := range axes {
		lo := math.Inf(1)
		hi := math.Inf(-1)
		for _, v := range verts {
			d := n[0]*v.X + n[1]*v.Y
			lo = math.Min(lo, d)
			hi = math.Max(hi, d)
		}
		center := n[0]*cx + n[1]*cy
		radius := hw * (math.Abs(n[0]) + math.Abs(n[1]))
		if lo > center+radius || hi < center-radius {
			return false
		}
	}
	return true
}
