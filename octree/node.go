package octree

import "github.com/golang/geo/r3"

// numChildren is the number of octants of a node.
const numChildren = 8

// Node is one cube of the octree. It exclusively owns up to eight child
// nodes, each covering one octant at half the half-width; a nil child is
// space that no carving has explored. A node at the resolution limit of
// its branch owns leaf data instead.
type Node struct {
	center    r3.Vector
	halfwidth float64
	children  [numChildren]*Node
	data      *LeafData
}

// The child octant ordering, matching the serialized tree format:
//
//	        y                        y
//	   1    |    0              5    |    4
//	--------+--------> x     --------+--------> x
//	   2    |    3              6    |    7
//	     (top, z+)                (bottom, z-)
func childOffset(i int) r3.Vector {
	switch i {
	case 0:
		return r3.Vector{X: 1, Y: 1, Z: 1}
	case 1:
		return r3.Vector{X: -1, Y: 1, Z: 1}
	case 2:
		return r3.Vector{X: -1, Y: -1, Z: 1}
	case 3:
		return r3.Vector{X: 1, Y: -1, Z: 1}
	case 4:
		return r3.Vector{X: 1, Y: 1, Z: -1}
	case 5:
		return r3.Vector{X: -1, Y: 1, Z: -1}
	case 6:
		return r3.Vector{X: -1, Y: -1, Z: -1}
	case 7:
		return r3.Vector{X: 1, Y: -1, Z: -1}
	}
	return r3.Vector{}
}

// newNode creates a node covering the cube at center with the given
// half-width.
func newNode(center r3.Vector, halfwidth float64) *Node {
	return &Node{center: center, halfwidth: halfwidth}
}

// Center returns the center of this node's cube.
func (n *Node) Center() r3.Vector { return n.center }

// Halfwidth returns half the edge length of this node's cube.
func (n *Node) Halfwidth() float64 { return n.halfwidth }

// Data returns the accumulated leaf data, or nil if none.
func (n *Node) Data() *LeafData { return n.data }

// SetData replaces this node's leaf data.
func (n *Node) SetData(d *LeafData) { n.data = d }

// Child returns the i'th child node, or nil.
func (n *Node) Child(i int) *Node { return n.children[i] }

// IsLeaf reports whether this node has no children.
func (n *Node) IsLeaf() bool {
	for i := 0; i < numChildren; i++ {
		if n.children[i] != nil {
			return false
		}
	}
	return true
}

// contains returns the index of the octant of this node's cube holding p,
// or -1 if p is outside the cube.
func (n *Node) contains(p r3.Vector) int {
	diff := p.Sub(n.center)
	if maxAbsCoeff(diff) > n.halfwidth {
		return -1
	}
	if diff.Z >= 0 {
		if diff.X >= 0 {
			if diff.Y >= 0 {
				return 0
			}
			return 3
		}
		if diff.Y >= 0 {
			return 1
		}
		return 2
	}
	if diff.X >= 0 {
		if diff.Y >= 0 {
			return 4
		}
		return 7
	}
	if diff.Y >= 0 {
		return 5
	}
	return 6
}

func maxAbsCoeff(v r3.Vector) float64 {
	m := v.X
	if m < 0 {
		m = -m
	}
	if y := v.Y; y > m {
		m = y
	} else if -y > m {
		m = -y
	}
	if z := v.Z; z > m {
		m = z
	} else if -z > m {
		m = -z
	}
	return m
}

// childGeometry returns the center and half-width of the i'th octant.
func (n *Node) childGeometry(i int) (r3.Vector, float64) {
	chw := n.halfwidth / 2
	return childOffset(i).Mul(chw).Add(n.center), chw
}

// initChild allocates the i'th child if it does not exist and returns it.
func (n *Node) initChild(i int) *Node {
	if n.children[i] == nil {
		cc, chw := n.childGeometry(i)
		n.children[i] = newNode(cc, chw)
	}
	return n.children[i]
}

// clone deep-copies this node, its data and all descendants.
func (n *Node) clone() *Node {
	c := newNode(n.center, n.halfwidth)
	if n.data != nil {
		c.data = n.data.Clone()
	}
	for i := 0; i < numChildren; i++ {
		if n.children[i] != nil {
			c.children[i] = n.children[i].clone()
		}
	}
	return c
}

// retrieve descends to the deepest existing node containing p. Returns nil
// if p is outside this node's cube.
func (n *Node) retrieve(p r3.Vector) *Node {
	i := n.contains(p)
	if i < 0 {
		return nil
	}
	if n.children[i] == nil {
		return n
	}
	return n.children[i].retrieve(p)
}

// raycarve collects all leaf nodes at the relative depth limit intersected
// by seg, subdividing intersected nodes and materializing children as
// needed. Descent stops early at nodes that already hold data.
func (n *Node) raycarve(leaves *[]*Node, seg *LineSegment, depth int) {
	if depth <= 0 || n.data != nil {
		*leaves = append(*leaves, n)
		return
	}
	for i := 0; i < numChildren; i++ {
		child := n.children[i]
		if child != nil {
			if !seg.Intersects(child.center, child.halfwidth) {
				continue
			}
		} else {
			cc, chw := n.childGeometry(i)
			if !seg.Intersects(cc, chw) {
				continue
			}
			child = newNode(cc, chw)
			n.children[i] = child
		}
		child.raycarve(leaves, seg, depth-1)
	}
}

// raytrace collects existing leaf nodes intersected by seg without
// modifying the tree.
func (n *Node) raytrace(leaves *[]*Node, seg *LineSegment) {
	if !seg.Intersects(n.center, n.halfwidth) {
		return
	}
	if n.IsLeaf() {
		*leaves = append(*leaves, n)
		return
	}
	for i := 0; i < numChildren; i++ {
		if n.children[i] != nil {
			n.children[i].raytrace(leaves, seg)
		}
	}
}

// insert carves the shape into this subtree, subdividing intersected
// nodes down to the relative depth limit and applying the shape to every
// depth-limit leaf it intersects.
func (n *Node) insert(s Shape, depth int) {
	if depth <= 0 || n.data != nil {
		n.data = s.ApplyToLeaf(n.center, n.halfwidth, n.data)
		return
	}
	for i := 0; i < numChildren; i++ {
		child := n.children[i]
		if child != nil {
			if !s.Intersects(child.center, child.halfwidth) {
				continue
			}
		} else {
			cc, chw := n.childGeometry(i)
			if !s.Intersects(cc, chw) {
				continue
			}
			child = newNode(cc, chw)
			n.children[i] = child
		}
		child.insert(s, depth-1)
	}
}

// find applies the shape to every existing node holding data whose cube
// the shape intersects. The tree is not modified structurally.
func (n *Node) find(s Shape) {
	if !s.Intersects(n.center, n.halfwidth) {
		return
	}
	if n.data != nil {
		n.data = s.ApplyToLeaf(n.center, n.halfwidth, n.data)
	}
	for i := 0; i < numChildren; i++ {
		if n.children[i] != nil {
			n.children[i].find(s)
		}
	}
}

// visitLeaves calls fn on every leaf node of the subtree, stopping early
// if fn returns false.
func (n *Node) visitLeaves(fn func(n *Node) bool) bool {
	if n.IsLeaf() {
		return fn(n)
	}
	for i := 0; i < numChildren; i++ {
		if n.children[i] != nil {
			if !n.children[i].visitLeaves(fn) {
				return false
			}
		}
	}
	return true
}

// numNodes counts this node and all descendants.
func (n *Node) numNodes() int {
	c := 1
	for i := 0; i < numChildren; i++ {
		if n.children[i] != nil {
			c += n.children[i].numNodes()
		}
	}
	return c
}
