// Package hist builds top-down 2D occupancy histograms of carved
// volumes. Each histogram cell aggregates the vertical extent of the
// open-space voxels above it, which makes occupied floor area stand out
// and gives room segmentation something to cluster.
package hist

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/buildvox/carver/octree"
	carverutils "github.com/buildvox/carver/utils"
)

// Index addresses one histogram cell on the xy grid.
type Index struct {
	I, J int64
}

// Hist2D is a top-down projection of a carved octree onto the xy plane.
// The weight of a cell is the summed vertical height of all open
// interior leaves whose footprint covers it.
type Hist2D struct {
	resolution float64
	cells      map[Index]float64
}

// New returns an empty histogram with the given cell edge length.
func New(resolution float64) (*Hist2D, error) {
	if resolution <= 0 {
		return nil, errors.Errorf("histogram resolution must be positive, got %f", resolution)
	}
	return &Hist2D{resolution: resolution, cells: map[Index]float64{}}, nil
}

// NewFromOctree projects a carved octree into a histogram at the given
// cell resolution. A non-positive resolution uses the tree's own leaf
// resolution.
func NewFromOctree(tree *octree.Octree, resolution float64, logger golog.Logger) (*Hist2D, error) {
	if resolution <= 0 {
		resolution = tree.Resolution()
	}
	h, err := New(resolution)
	if err != nil {
		return nil, err
	}
	tree.Find(h)
	logger.Infof("projected octree into %d histogram cells at %.3fm", len(h.cells), resolution)
	return h, nil
}

// Resolution returns the cell edge length in meters.
func (h *Hist2D) Resolution() float64 { return h.resolution }

// NumCells returns the number of populated cells.
func (h *Hist2D) NumCells() int { return len(h.cells) }

// IndexAt returns the cell covering the given xy position. Cells are
// centered on multiples of the resolution, the same lattice octree
// leaves sit on at equal resolution.
func (h *Hist2D) IndexAt(x, y float64) Index {
	return Index{
		I: int64(math.Floor(x/h.resolution + 0.5)),
		J: int64(math.Floor(y/h.resolution + 0.5)),
	}
}

// Weight returns the accumulated weight of a cell, zero if unpopulated.
func (h *Hist2D) Weight(ind Index) float64 { return h.cells[ind] }

// Insert adds weight to the cell covering the given position.
func (h *Hist2D) Insert(x, y, w float64) {
	h.cells[h.IndexAt(x, y)] += w
}

// NumVerts returns zero: the histogram has no spatial extent of its own.
func (h *Hist2D) NumVerts() int { return 0 }

// Vertex is never called for a shape without vertices.
func (h *Hist2D) Vertex(i int) r3.Vector { return r3.Vector{} }

// Intersects accepts every cube, the whole tree is projected.
func (h *Hist2D) Intersects(center r3.Vector, halfwidth float64) bool { return true }

// ApplyToLeaf accumulates an observed open leaf's height into the cells
// its xy footprint covers, each weighted by the covered fraction of the
// footprint, so the leaf contributes its height exactly once. A leaf on
// the cell lattice lands in exactly one cell. Leaf data is never
// modified.
func (h *Hist2D) ApplyToLeaf(center r3.Vector, halfwidth float64, d *octree.LeafData) *octree.LeafData {
	if d == nil || d.Count == 0 || d.TotalWeight <= 0 || !d.IsInterior() {
		return d
	}
	height := 2 * halfwidth
	footprint := height * height
	min := h.IndexAt(center.X-halfwidth, center.Y-halfwidth)
	max := h.IndexAt(center.X+halfwidth, center.Y+halfwidth)
	for i := min.I; i <= max.I; i++ {
		ox := h.overlap(center.X, halfwidth, i)
		if ox <= 0 {
			continue
		}
		for j := min.J; j <= max.J; j++ {
			oy := h.overlap(center.Y, halfwidth, j)
			if oy <= 0 {
				continue
			}
			h.cells[Index{I: i, J: j}] += height * ox * oy / footprint
		}
	}
	return d
}

// overlap returns the 1D intersection length between a leaf span and the
// span of one cell index.
func (h *Hist2D) overlap(center, halfwidth float64, cell int64) float64 {
	lo := math.Max(center-halfwidth, (float64(cell)-0.5)*h.resolution)
	hi := math.Min(center+halfwidth, (float64(cell)+0.5)*h.resolution)
	return hi - lo
}

// Indices returns the populated cell indices in row-major order.
func (h *Hist2D) Indices() []Index {
	out := make([]Index, 0, len(h.cells))
	for ind := range h.cells {
		out = append(out, ind)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].I != out[b].I {
			return out[a].I < out[b].I
		}
		return out[a].J < out[b].J
	})
	return out
}

// WeightStats summarizes the distribution of cell weights.
type WeightStats struct {
	Mean   float64
	Median float64
	StdDev float64
}

// Stats computes summary statistics over all populated cells.
func (h *Hist2D) Stats() (WeightStats, error) {
	if len(h.cells) == 0 {
		return WeightStats{}, errors.New("histogram is empty")
	}
	weights := make([]float64, 0, len(h.cells))
	for _, w := range h.cells {
		weights = append(weights, w)
	}
	mean, err := stats.Mean(weights)
	if err != nil {
		return WeightStats{}, err
	}
	median, err := stats.Median(weights)
	if err != nil {
		return WeightStats{}, err
	}
	sd, err := stats.StandardDeviation(weights)
	if err != nil {
		return WeightStats{}, err
	}
	return WeightStats{Mean: mean, Median: median, StdDev: sd}, nil
}

// Percentile returns the p'th percentile of cell weights.
func (h *Hist2D) Percentile(p float64) (float64, error) {
	weights := make([]float64, 0, len(h.cells))
	for _, w := range h.cells {
		weights = append(weights, w)
	}
	return stats.Percentile(weights, p)
}

// Segment partitions the cells whose weight is at least minWeight into
// 4-connected components. Components and their members are ordered
// deterministically, smallest index first.
func (h *Hist2D) Segment(minWeight float64) [][]Index {
	indices := h.Indices()
	ids := map[Index]int{}
	var kept []Index
	for _, ind := range indices {
		if h.cells[ind] >= minWeight {
			ids[ind] = len(kept)
			kept = append(kept, ind)
		}
	}
	if len(kept) == 0 {
		return nil
	}

	uf := carverutils.NewUnionFind()
	// touch the last id so trailing singletons are reported
	uf.Find(len(kept) - 1)
	for id, ind := range kept {
		for _, nb := range []Index{
			{I: ind.I + 1, J: ind.J},
			{I: ind.I, J: ind.J + 1},
		} {
			if nid, ok := ids[nb]; ok {
				uf.AddEdge(id, nid)
			}
		}
	}

	groups := uf.Unions()
	out := make([][]Index, 0, len(groups))
	for _, group := range groups {
		cells := make([]Index, 0, len(group))
		for _, id := range group {
			cells = append(cells, kept[id])
		}
		out = append(out, cells)
	}
	return out
}

// WriteTo writes the histogram as text, one "i j weight" line per
// populated cell in row-major order.
func (h *Hist2D) WriteTo(w io.Writer) error {
	for _, ind := range h.Indices() {
		if _, err := fmt.Fprintf(w, "%d %d %f\n", ind.I, ind.J, h.cells[ind]); err != nil {
			return err
		}
	}
	return nil
}

// WriteToFile writes the histogram text format to the named file.
func (h *Hist2D) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "cannot create histogram file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := h.WriteTo(w); err != nil {
		return errors.Wrapf(err, "cannot write histogram file %q", fn)
	}
	return w.Flush()
}
