package octree

import "github.com/golang/geo/r3"

// Shape is the visitor capability carved into or queried against an
// octree. Any geometry that can report its vertices, test itself against
// an axis-aligned cube, and transform the data of intersected leaves can
// reuse the tree's one traversal algorithm: ray segments, extruded
// polygons, chunk exporters and object detectors all implement Shape.
type Shape interface {
	// NumVerts returns the number of vertices composing this shape.
	NumVerts() int

	// Vertex returns the i'th vertex in world coordinates.
	Vertex(i int) r3.Vector

	// Intersects reports whether the shape intersects the axis-aligned
	// cube with the given center and half-width.
	Intersects(center r3.Vector, halfwidth float64) bool

	// ApplyToLeaf visits one intersected leaf. It receives the leaf's
	// current data, possibly nil, and returns the data the leaf should
	// hold afterward; a nil input obliges the shape to allocate.
	ApplyToLeaf(center r3.Vector, halfwidth float64, d *LeafData) *LeafData
}
