package octree

// LeafData accumulates the carving observations that have touched one
// voxel. Observations are statistically combined, never overwritten: each
// carve contributes a weighted probability sample, and the running
// occupancy estimate is the weighted mean of all samples so far.
type LeafData struct {
	// Count is the number of independent carving observations merged in.
	Count uint32
	// TotalWeight is the summed weight of all observations.
	TotalWeight float64
	// ProbSum and ProbSumSq are the weighted sums of the interior
	// probability samples and their squares.
	ProbSum   float64
	ProbSumSq float64
	// SurfaceSum, CornerSum and PlanarSum accumulate surface/corner/
	// planarity statistics. They are carried through merge and
	// serialization but no carving stage currently requires them.
	SurfaceSum float64
	CornerSum  float64
	PlanarSum  float64
	// Room is the floorplan room id assigned by floorplan merge, or
	// NoRoom if this voxel is not inside any room footprint.
	Room int32
}

// NoRoom marks leaf data not assigned to any floorplan room.
const NoRoom int32 = -1

// NewLeafData returns empty leaf data with no observations.
func NewLeafData() *LeafData {
	return &LeafData{Room: NoRoom}
}

// NewObservation returns leaf data seeded with a single weighted
// probability observation.
func NewObservation(weight, prob float64) *LeafData {
	d := NewLeafData()
	d.AddSample(weight, prob, 0, 0, 0)
	return d
}

// AddSample merges one weighted carving observation into this leaf.
func (d *LeafData) AddSample(weight, prob, surface, corner, planar float64) {
	d.Count++
	d.TotalWeight += weight
	d.ProbSum += weight * prob
	d.ProbSumSq += weight * prob * prob
	d.SurfaceSum += weight * surface
	d.CornerSum += weight * corner
	d.PlanarSum += weight * planar
}

// Merge folds other's accumulated observations into this leaf. Room labels
// prefer the valid (non-negative) id.
func (d *LeafData) Merge(other *LeafData) {
	if other == nil {
		return
	}
	d.Count += other.Count
	d.TotalWeight += other.TotalWeight
	d.ProbSum += other.ProbSum
	d.ProbSumSq += other.ProbSumSq
	d.SurfaceSum += other.SurfaceSum
	d.CornerSum += other.CornerSum
	d.PlanarSum += other.PlanarSum
	if other.Room > d.Room {
		d.Room = other.Room
	}
}

// Clone returns a deep copy.
func (d *LeafData) Clone() *LeafData {
	c := *d
	return &c
}

// Probability returns the running interior-probability estimate: the
// weighted mean of all observations. A leaf with no observations is
// maximally uncertain and reports 0.5.
func (d *LeafData) Probability() float64 {
	if d.TotalWeight <= 0 {
		return 0.5
	}
	return d.ProbSum / d.TotalWeight
}

// Variance returns the weighted sample variance of the probability
// observations.
func (d *LeafData) Variance() float64 {
	if d.TotalWeight <= 0 {
		return 0
	}
	mean := d.ProbSum / d.TotalWeight
	v := d.ProbSumSq/d.TotalWeight - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// IsInterior reports whether this voxel is more likely open interior space
// than solid or exterior.
func (d *LeafData) IsInterior() bool {
	return d.Probability() > 0.5
}

// InRoom reports whether floorplan merge placed this voxel inside a room.
func (d *LeafData) InRoom() bool {
	return d.Room > NoRoom
}

// Subdivide rescales this data as if its observations were split evenly
// among n children, preserving the ratios of all accumulated sums.
func (d *LeafData) Subdivide(n int) {
	if n <= 1 || d.Count == 0 {
		return
	}
	newCount := d.Count / uint32(n)
	if newCount == 0 {
		newCount = 1
	}
	ratio := float64(newCount) / float64(d.Count)
	d.Count = newCount
	d.TotalWeight *= ratio
	d.ProbSum *= ratio
	d.ProbSumSq *= ratio
	d.SurfaceSum *= ratio
	d.CornerSum *= ratio
	d.PlanarSum *= ratio
}
