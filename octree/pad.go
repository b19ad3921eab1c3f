package octree

// Pad fills every nil child of every non-leaf node with a fresh empty
// leaf. After padding, boundary-processing passes can assume that no
// explored node borders unexplored (nil) space: every interior node has
// all eight children, and newly created leaves carry zero-observation
// data.
func Pad(o *Octree) {
	padRecur(o.root)
}

func padRecur(n *Node) {
	if n.IsLeaf() {
		return
	}
	for i := 0; i < numChildren; i++ {
		if n.children[i] == nil {
			child := n.initChild(i)
			child.data = NewLeafData()
			continue
		}
		padRecur(n.children[i])
	}
}
