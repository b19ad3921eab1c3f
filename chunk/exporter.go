package chunk

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/buildvox/carver/octree"
)

// Exporter assigns wedges to chunk grid cells. It wraps each wedge's
// geometry as an octree shape over a chunk-resolution tree: every
// depth-limit leaf the geometry touches is one grid cell, and the wedge's
// index is appended to that cell's list. Wedges near cell boundaries land
// in every cell they touch, so chunk carving may see a wedge more than
// once; carving into one shared tree makes that harmless.
type Exporter struct {
	logger golog.Logger
	tree   *octree.Octree
	edge   float64

	cur      octree.Shape
	curIndex uint64

	chunks map[Key][]uint64
}

// NewExporter creates an exporter cutting space into cubes of the given
// edge length, in meters.
func NewExporter(edge float64, logger golog.Logger) (*Exporter, error) {
	tree, err := octree.New(edge, logger)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create chunk grid")
	}
	return &Exporter{
		logger: logger,
		tree:   tree,
		edge:   edge,
		chunks: map[Key][]uint64{},
	}, nil
}

// Export records the wedge with the given index into every grid cell its
// geometry intersects.
func (e *Exporter) Export(geometry octree.Shape, index uint64) {
	e.cur = geometry
	e.curIndex = index
	e.tree.Insert(e)
	e.cur = nil
}

// NumChunks returns the number of populated grid cells so far.
func (e *Exporter) NumChunks() int { return len(e.chunks) }

// NumVerts delegates to the current wedge geometry.
func (e *Exporter) NumVerts() int { return e.cur.NumVerts() }

// Vertex delegates to the current wedge geometry.
func (e *Exporter) Vertex(i int) r3.Vector { return e.cur.Vertex(i) }

// Intersects delegates to the current wedge geometry.
func (e *Exporter) Intersects(center r3.Vector, halfwidth float64) bool {
	return e.cur.Intersects(center, halfwidth)
}

// ApplyToLeaf records the current wedge index in the cell at center. The
// grid tree carries no leaf data of its own.
func (e *Exporter) ApplyToLeaf(center r3.Vector, halfwidth float64, d *octree.LeafData) *octree.LeafData {
	k := KeyAt(center, e.edge)
	list := e.chunks[k]
	if len(list) == 0 || list[len(list)-1] != e.curIndex {
		e.chunks[k] = append(list, e.curIndex)
	}
	return d
}

// WriteFiles writes one .chunk file per populated cell into chunkDir
// (created under the manifest's directory) and the .chunklist manifest
// itself at listFn. Chunk files are named by fresh uuids.
func (e *Exporter) WriteFiles(listFn, chunkDir string) error {
	dir := filepath.Join(filepath.Dir(listFn), chunkDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "cannot create chunk directory %q", dir)
	}

	keys := make([]Key, 0, len(e.chunks))
	for k := range e.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		ka, kb := keys[a], keys[b]
		if ka.I != kb.I {
			return ka.I < kb.I
		}
		if ka.J != kb.J {
			return ka.J < kb.J
		}
		return ka.K < kb.K
	})

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		c := Chunk{
			UUID:      uuid.New(),
			Center:    k.Center(e.edge),
			Halfwidth: e.edge / 2,
			Indices:   e.chunks[k],
		}
		name := c.UUID.String()
		if err := c.WriteToFile(filepath.Join(dir, name+".chunk")); err != nil {
			return err
		}
		names = append(names, name)
	}

	root := e.tree.Root()
	if err := writeChunklist(listFn, root.Center(), root.Halfwidth(), chunkDir, names); err != nil {
		return err
	}
	e.logger.Infof("exported %d chunks to %s", len(names), listFn)
	return nil
}
