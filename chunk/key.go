// Package chunk decomposes a carving problem into spatial chunks so that
// arbitrarily large scan sets can be carved out of core. The volume is cut
// on a regular grid of cubes; each grid cell gets a file listing the
// indices of the scan wedges that intersect it, and carving later streams
// one chunk's wedges at a time.
package chunk

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrInconsistentIndex marks a structural mismatch between chunk files
// and the wedge set they reference. It is a corrupt-input error, never
// recovered from.
var ErrInconsistentIndex = errors.New("chunk references wedge index out of range")

// Key identifies one cell of the chunk grid. Cell (I, J, K) is centered
// at (I*edge, J*edge, K*edge), matching the lattice of an origin-anchored
// octree whose leaves have the chunk edge length.
type Key struct {
	I, J, K int64
}

// KeyAt returns the key of the grid cell containing p, for the given
// chunk edge length.
func KeyAt(p r3.Vector, edge float64) Key {
	return Key{
		I: int64(math.Floor(p.X/edge + 0.5)),
		J: int64(math.Floor(p.Y/edge + 0.5)),
		K: int64(math.Floor(p.Z/edge + 0.5)),
	}
}

// Center returns the world position of the cell's center.
func (k Key) Center(edge float64) r3.Vector {
	return r3.Vector{
		X: float64(k.I) * edge,
		Y: float64(k.J) * edge,
		Z: float64(k.K) * edge,
	}
}
