// Package octree implements the probabilistic occupancy octree at the core
// of the carving pipeline. The tree recursively partitions space into
// axis-aligned cubes; each leaf at the resolution limit accumulates an
// occupancy observation record. Arbitrary geometry interacts with the tree
// through the Shape visitor interface, so ray segments, extruded polygons
// and whole-tree scanners all share one traversal algorithm.
package octree

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Octree is a recursive spatial index over axis-aligned cubes. The root
// cube grows on demand to cover every carved point while the finest leaf
// size stays fixed at the configured resolution.
//
// An Octree is not safe for concurrent mutation; callers carving from
// multiple goroutines must serialize tree access (see carve.Carver).
type Octree struct {
	logger   golog.Logger
	root     *Node
	maxDepth int
}

// New creates an octree whose finest leaves are cubes with edge length
// resolution, in meters.
func New(resolution float64, logger golog.Logger) (*Octree, error) {
	if resolution <= 0 {
		return nil, errors.Errorf("invalid resolution (%f) for octree", resolution)
	}
	return &Octree{
		logger:   logger,
		root:     newNode(r3.Vector{}, resolution/2),
		maxDepth: 0,
	}, nil
}

// Root returns the root node.
func (o *Octree) Root() *Node { return o.root }

// MaxDepth returns the current depth of the resolution limit below the
// root.
func (o *Octree) MaxDepth() int { return o.maxDepth }

// Resolution returns the edge length of the finest leaves.
func (o *Octree) Resolution() float64 {
	return 2 * o.root.halfwidth / float64(uint64(1)<<uint(o.maxDepth))
}

// NumNodes returns the total number of allocated nodes.
func (o *Octree) NumNodes() int {
	return o.root.numNodes()
}

// Clone deep-copies the tree and all leaf data.
func (o *Octree) Clone() *Octree {
	return &Octree{logger: o.logger, root: o.root.clone(), maxDepth: o.maxDepth}
}

// ExpandToInclude grows the tree's domain until p is inside the root
// cube. Growth wraps the current root in successively larger parents, so
// existing geometry keeps its lattice alignment and the resolution is
// unchanged. Two trees of equal resolution therefore always agree on leaf
// cube placement, which lets chunked and direct carving produce
// comparable voxel sets.
func (o *Octree) ExpandToInclude(p r3.Vector) {
	for o.root.contains(p) < 0 {
		// pick the octant of the new wrapper that the current root
		// will occupy, on the side away from p
		var c int
		if o.root.center.Z < p.Z {
			if o.root.center.X < p.X {
				if o.root.center.Y < p.Y {
					c = 6
				} else {
					c = 5
				}
			} else {
				if o.root.center.Y < p.Y {
					c = 7
				} else {
					c = 4
				}
			}
		} else {
			if o.root.center.X < p.X {
				if o.root.center.Y < p.Y {
					c = 2
				} else {
					c = 1
				}
			} else {
				if o.root.center.Y < p.Y {
					c = 3
				} else {
					c = 0
				}
			}
		}
		wc := o.root.center.Sub(childOffset(c).Mul(o.root.halfwidth))
		wrapper := newNode(wc, 2*o.root.halfwidth)
		wrapper.children[c] = o.root
		o.root = wrapper
		o.maxDepth++
	}
}

// Raycarve carves the segment a->b into the tree: the domain is expanded
// to cover both endpoints, intersected nodes are subdivided down to the
// resolution limit, and every touched resolution-limit leaf is returned.
// Leaves are created but their data is not modified.
func (o *Octree) Raycarve(a, b r3.Vector) []*Node {
	o.ExpandToInclude(a)
	o.ExpandToInclude(b)
	seg := NewLineSegment(a, b)
	var leaves []*Node
	o.root.raycarve(&leaves, seg, o.maxDepth)
	return leaves
}

// Raytrace returns the existing leaves intersected by the segment a->b
// without modifying the tree.
func (o *Octree) Raytrace(a, b r3.Vector) []*Node {
	seg := NewLineSegment(a, b)
	var leaves []*Node
	o.root.raytrace(&leaves, seg)
	return leaves
}

// Insert carves the shape into the tree at the resolution limit. The
// domain is first expanded to cover all of the shape's vertices; the shape
// is then applied to every resolution-limit leaf it intersects, creating
// nodes as needed.
func (o *Octree) Insert(s Shape) {
	for i := 0; i < s.NumVerts(); i++ {
		o.ExpandToInclude(s.Vertex(i))
	}
	o.root.insert(s, o.maxDepth)
}

// Find applies the shape to every existing data-holding node it
// intersects, without modifying the tree structure.
func (o *Octree) Find(s Shape) {
	o.root.find(s)
}

// At returns the deepest existing node containing p, or nil if p is
// outside the tree's domain.
func (o *Octree) At(p r3.Vector) *Node {
	return o.root.retrieve(p)
}

// VisitLeaves calls fn on every leaf in depth-first order until fn
// returns false.
func (o *Octree) VisitLeaves(fn func(n *Node) bool) {
	o.root.visitLeaves(fn)
}

// IncreaseDepth lowers the resolution limit by extra levels, halving the
// finest leaf size per level. Existing nodes are unaffected until new
// carving subdivides them.
func (o *Octree) IncreaseDepth(extra int) {
	if extra > 0 {
		o.maxDepth += extra
	}
}
