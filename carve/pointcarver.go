package carve

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/buildvox/carver/octree"
)

// PointCarver accumulates the Monte-Carlo occupancy histogram of one scan
// point. Each sample ray from sensor to surface bumps a counter on every
// leaf it passes through; UpdateTree then folds the histogram into the
// tree as a single probability observation per leaf, so one scan point
// contributes exactly one observation to each leaf it could have
// intersected.
type PointCarver struct {
	numSamples int
	hits       map[*octree.Node]uint32
}

// NewPointCarver returns an empty carver ready for sampling.
func NewPointCarver() *PointCarver {
	return &PointCarver{hits: map[*octree.Node]uint32{}}
}

// Reset discards all accumulated samples.
func (pc *PointCarver) Reset() {
	pc.numSamples = 0
	pc.hits = map[*octree.Node]uint32{}
}

// NumSamples returns the number of rays accumulated since the last
// reset.
func (pc *PointCarver) NumSamples() int { return pc.numSamples }

// NumLeaves returns the number of distinct leaves touched so far.
func (pc *PointCarver) NumLeaves() int { return len(pc.hits) }

// AddSample carves one sampled ray into the tree and records every leaf
// it intersects. Leaves may be created; their data is not yet modified.
func (pc *PointCarver) AddSample(sensorPos, scanPos r3.Vector, tree *octree.Octree) {
	for _, leaf := range tree.Raycarve(sensorPos, scanPos) {
		pc.hits[leaf]++
	}
	pc.numSamples++
}

// UpdateTree merges the accumulated histogram into the tree: each touched
// leaf receives one observation whose probability is the fraction of
// sample rays that intersected it.
func (pc *PointCarver) UpdateTree() error {
	if pc.numSamples == 0 {
		return errors.New("cannot update tree with zero samples")
	}
	for leaf, count := range pc.hits {
		prob := float64(count) / float64(pc.numSamples)
		if d := leaf.Data(); d != nil {
			d.AddSample(1, prob, 0, 0, 0)
		} else {
			leaf.SetData(octree.NewObservation(1, prob))
		}
	}
	return nil
}
