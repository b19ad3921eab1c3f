package carve

import (
	"context"
	"path/filepath"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/buildvox/carver/chunk"
	"github.com/buildvox/carver/octree"
)

// ObjectFinder scans a carved, floorplan-labeled volume for object
// leaves: voxels inside a room footprint that carving observed but judged
// solid. Furniture and clutter inside rooms show up exactly this way, and
// their voxels are worth re-carving at a finer resolution. The finder
// visits every leaf, so Intersects is unconditionally true.
type ObjectFinder struct {
	rooms map[int32][]r3.Vector
}

// NewObjectFinder returns an empty finder.
func NewObjectFinder() *ObjectFinder {
	return &ObjectFinder{rooms: map[int32][]r3.Vector{}}
}

// Rooms returns the matched leaf centers grouped by room id.
func (of *ObjectFinder) Rooms() map[int32][]r3.Vector { return of.rooms }

// NumMatches returns the total number of matched leaves.
func (of *ObjectFinder) NumMatches() int {
	n := 0
	for _, centers := range of.rooms {
		n += len(centers)
	}
	return n
}

// NumVerts returns zero: the finder has no spatial extent of its own.
func (of *ObjectFinder) NumVerts() int { return 0 }

// Vertex is never called for a shape without vertices.
func (of *ObjectFinder) Vertex(i int) r3.Vector { return r3.Vector{} }

// Intersects accepts every cube.
func (of *ObjectFinder) Intersects(center r3.Vector, halfwidth float64) bool { return true }

// ApplyToLeaf records observed solid leaves inside rooms, keyed by room
// id. Leaf data is never modified.
func (of *ObjectFinder) ApplyToLeaf(center r3.Vector, halfwidth float64, d *octree.LeafData) *octree.LeafData {
	if d != nil && d.Count > 0 && !d.IsInterior() && d.InRoom() {
		of.rooms[d.Room] = append(of.rooms[d.Room], center)
	}
	return d
}

// FindObjects scans the volume for object leaves. Meaningful only after
// carving and ImportFloorplan.
func (c *Carver) FindObjects() *ObjectFinder {
	finder := NewObjectFinder()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree.Find(finder)
	return finder
}

// RefineObjects re-carves every chunk containing object leaves at a
// resolution extraDepth levels finer. The affected records' carve claims
// are released first, so their observations are drawn again against the
// deeper tree; re-carving is additive, matching the retry semantics of
// the chunked pass.
func (c *Carver) RefineObjects(ctx context.Context, listFn string, extraDepth int) error {
	if extraDepth <= 0 {
		return errors.Errorf("refinement needs a positive depth increase, got %d", extraDepth)
	}
	start := time.Now()

	finder := c.FindObjects()
	if finder.NumMatches() == 0 {
		c.logger.Info("no object leaves found, nothing to refine")
		return nil
	}

	dir := filepath.Dir(listFn)
	dict, err := chunk.NewDictionaryFromFile(listFn, c.logger)
	if err != nil {
		return errors.Wrap(err, "refine stage 1 (chunk dictionary)")
	}
	cm, err := chunk.ReadCarveMap(filepath.Join(dir, "scan.carvemap"))
	if err != nil {
		return errors.Wrap(err, "refine stage 2 (carve map)")
	}
	ws, err := chunk.ReadWedgeSet(filepath.Join(dir, "scan.wedge"))
	if err != nil {
		return errors.Wrap(err, "refine stage 3 (wedges)")
	}
	if err := ws.Validate(cm); err != nil {
		return errors.Wrap(err, "refine stage 3 (wedges)")
	}

	paths := map[string]bool{}
	for room, centers := range finder.rooms {
		for _, center := range centers {
			path, ok := dict.PathAt(center)
			if !ok {
				c.logger.Debugf("object leaf at %v (room %d) outside chunked domain", center, room)
				continue
			}
			paths[path] = true
		}
	}
	if len(paths) == 0 {
		c.logger.Info("no object leaves map to exported chunks, nothing to refine")
		return nil
	}

	if err := c.releaseClaims(paths, ws); err != nil {
		return errors.Wrap(err, "refine stage 4 (claims)")
	}
	c.mu.Lock()
	c.tree.IncreaseDepth(extraDepth)
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.settings.Workers)
	for path := range paths {
		g.Go(func() error {
			if err := c.carveChunk(ctx, path, cm, ws); err != nil {
				return errors.Wrapf(err, "refine stage 5 (chunk %s)", path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.logger.Infof("refined %d chunks (%d object leaves in %d rooms) in %s",
		len(paths), finder.NumMatches(), len(finder.rooms), time.Since(start))
	return nil
}

// releaseClaims forgets the carved state of every record referenced by
// the given chunks' wedges.
func (c *Carver) releaseClaims(paths map[string]bool, ws *chunk.WedgeSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range paths {
		ch, err := chunk.ReadChunk(path)
		if err != nil {
			return err
		}
		for _, idx := range ch.Indices {
			if idx >= uint64(len(ws.Wedges)) {
				return errors.Wrapf(chunk.ErrInconsistentIndex, "wedge %d of %d", idx, len(ws.Wedges))
			}
			wg := ws.Wedges[idx]
			for _, ref := range []recordRef{
				{wg.FrameA, wg.PointA1}, {wg.FrameA, wg.PointA2},
				{wg.FrameB, wg.PointB1}, {wg.FrameB, wg.PointB2},
			} {
				delete(c.carved, ref)
			}
		}
	}
	return nil
}
