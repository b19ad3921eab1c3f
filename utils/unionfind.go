// Package utils contains small shared helpers for the carving pipeline.
package utils

// UnionFind tracks disjoint sets over integer-indexed elements. Elements
// are created implicitly by AddEdge; forests use path compression so
// repeated queries stay cheap.
type UnionFind struct {
	parent []int
}

// NewUnionFind returns an empty disjoint-set forest.
func NewUnionFind() *UnionFind {
	return &UnionFind{}
}

// grow ensures element i exists, adding singletons as needed.
func (u *UnionFind) grow(i int) {
	for len(u.parent) <= i {
		u.parent = append(u.parent, len(u.parent))
	}
}

// Find returns the representative of i's set.
func (u *UnionFind) Find(i int) int {
	u.grow(i)
	root := i
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[i] != root {
		u.parent[i], i = root, u.parent[i]
	}
	return root
}

// AddEdge merges the sets containing a and b.
func (u *UnionFind) AddEdge(a, b int) {
	ra, rb := u.Find(a), u.Find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// Size returns the number of elements seen so far.
func (u *UnionFind) Size() int {
	return len(u.parent)
}

// Unions returns the disjoint sets as a list of element lists. Sets and
// their members are ordered by smallest element, so the partition of a
// given edge set is deterministic.
func (u *UnionFind) Unions() [][]int {
	members := map[int][]int{}
	var order []int
	for i := range u.parent {
		r := u.Find(i)
		if _, ok := members[r]; !ok {
			order = append(order, r)
		}
		members[r] = append(members[r], i)
	}
	sets := make([][]int, 0, len(order))
	for _, r := range order {
		sets = append(sets, members[r])
	}
	return sets
}
