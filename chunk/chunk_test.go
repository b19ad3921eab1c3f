package chunk

import (
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/buildvox/carver/octree"
)

func TestKey(t *testing.T) {
	t.Run("grid assignment", func(t *testing.T) {
		cases := []struct {
			p    r3.Vector
			edge float64
			want Key
		}{
			{r3.Vector{X: 0.4, Y: 0.4, Z: 0.4}, 1, Key{0, 0, 0}},
			{r3.Vector{X: 1.4, Y: 0.4, Z: 0.4}, 1, Key{1, 0, 0}},
			{r3.Vector{X: -0.6, Y: -1.6, Z: 2.4}, 1, Key{-1, -2, 2}},
			{r3.Vector{X: 3.2, Y: 3.2, Z: 3.2}, 2, Key{2, 2, 2}},
		}
		for _, c := range cases {
			test.That(t, KeyAt(c.p, c.edge), test.ShouldResemble, c.want)
		}
	})

	t.Run("center round trips", func(t *testing.T) {
		for _, k := range []Key{{0, 0, 0}, {3, -2, 7}, {-5, -5, -5}} {
			test.That(t, KeyAt(k.Center(0.75), 0.75), test.ShouldResemble, k)
		}
	})
}

func sampleCarveMap() *CarveMap {
	return &CarveMap{Frames: []CarveMapFrame{
		{
			Timestamp: 1.5, TimestampSigma: 0.01,
			SensorPos: r3.Vector{X: 0.1, Y: 0.2, Z: 0.3},
			Points: []CarveMapPoint{
				{Mean: r3.Vector{X: 1, Y: 0, Z: 0}, SigmaRange: 0.01, SigmaLateral: 0.05},
				{Mean: r3.Vector{X: 1, Y: 0.1, Z: 0}, SigmaRange: 0.02, SigmaLateral: 0.04},
			},
		},
		{
			Timestamp: 1.6, TimestampSigma: 0.01,
			SensorPos: r3.Vector{X: 0.2, Y: 0.2, Z: 0.3},
			Points: []CarveMapPoint{
				{Mean: r3.Vector{X: 1.1, Y: 0, Z: 0}, SigmaRange: 0.01, SigmaLateral: 0.05},
			},
		},
	}}
}

func TestCarveMapRoundTrip(t *testing.T) {
	cm := sampleCarveMap()
	test.That(t, cm.NumPoints(), test.ShouldEqual, 3)

	fn := filepath.Join(t.TempDir(), "scan.carvemap")
	test.That(t, cm.WriteToFile(fn), test.ShouldBeNil)

	parsed, err := ReadCarveMap(fn)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed, test.ShouldResemble, cm)

	_, err = ReadCarveMap(filepath.Join(t.TempDir(), "nope.carvemap"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWedgeSet(t *testing.T) {
	ws := &WedgeSet{
		Buffer: 2,
		Wedges: []Wedge{
			{FrameA: 0, PointA1: 0, PointA2: 1, FrameB: 1, PointB1: 0, PointB2: 0, Interpolate: true},
			{FrameA: 1, PointA1: 0, PointA2: 0, FrameB: 0, PointB1: 1, PointB2: 1},
		},
	}

	t.Run("round trip", func(t *testing.T) {
		fn := filepath.Join(t.TempDir(), "scan.wedge")
		test.That(t, ws.WriteToFile(fn), test.ShouldBeNil)
		parsed, err := ReadWedgeSet(fn)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldResemble, ws)
	})

	t.Run("validate", func(t *testing.T) {
		cm := sampleCarveMap()
		test.That(t, ws.Validate(cm), test.ShouldBeNil)

		bad := &WedgeSet{Wedges: []Wedge{{FrameA: 5}}}
		err := bad.Validate(cm)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrInconsistentIndex), test.ShouldBeTrue)

		badPoint := &WedgeSet{Wedges: []Wedge{{FrameB: 1, PointB2: 9}}}
		test.That(t, errors.Is(badPoint.Validate(cm), ErrInconsistentIndex), test.ShouldBeTrue)
	})
}

// segmentShape is a minimal wedge stand-in: a line segment between two
// carve-map points.
type segmentShape struct {
	a, b r3.Vector
	seg  *octree.LineSegment
}

func newSegmentShape(a, b r3.Vector) *segmentShape {
	return &segmentShape{a: a, b: b, seg: octree.NewLineSegment(a, b)}
}

func (s *segmentShape) NumVerts() int { return 2 }
func (s *segmentShape) Vertex(i int) r3.Vector {
	if i == 0 {
		return s.a
	}
	return s.b
}
func (s *segmentShape) Intersects(center r3.Vector, halfwidth float64) bool {
	return s.seg.Intersects(center, halfwidth)
}
func (s *segmentShape) ApplyToLeaf(center r3.Vector, halfwidth float64, d *octree.LeafData) *octree.LeafData {
	return d
}

func TestExporter(t *testing.T) {
	logger := golog.NewTestLogger(t)

	e, err := NewExporter(1.0, logger)
	test.That(t, err, test.ShouldBeNil)

	// one wedge inside cell (0,0,0), one spanning cells (0,0,0)..(2,0,0)
	e.Export(newSegmentShape(r3.Vector{X: -0.2, Y: 0.2, Z: 0.2}, r3.Vector{X: 0.3, Y: 0.2, Z: 0.2}), 0)
	e.Export(newSegmentShape(r3.Vector{X: 0, Y: 0.3, Z: 0.2}, r3.Vector{X: 2.2, Y: 0.3, Z: 0.2}), 1)
	test.That(t, e.NumChunks(), test.ShouldEqual, 3)
	test.That(t, e.chunks[Key{0, 0, 0}], test.ShouldResemble, []uint64{0, 1})
	test.That(t, e.chunks[Key{1, 0, 0}], test.ShouldResemble, []uint64{1})
	test.That(t, e.chunks[Key{2, 0, 0}], test.ShouldResemble, []uint64{1})

	t.Run("write then load dictionary", func(t *testing.T) {
		dir := t.TempDir()
		listFn := filepath.Join(dir, "scan.chunklist")
		test.That(t, e.WriteFiles(listFn, "chunks"), test.ShouldBeNil)

		d, err := NewDictionaryFromFile(listFn, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d.NumChunks(), test.ShouldEqual, 3)
		test.That(t, d.Edge(), test.ShouldAlmostEqual, 1.0)

		path, ok := d.PathAt(r3.Vector{X: 1.1, Y: 0.2, Z: 0.2})
		test.That(t, ok, test.ShouldBeTrue)
		c, err := ReadChunk(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.Indices, test.ShouldResemble, []uint64{1})
		test.That(t, c.Key(), test.ShouldResemble, Key{1, 0, 0})

		_, ok = d.PathAt(r3.Vector{X: -5, Y: 0, Z: 0})
		test.That(t, ok, test.ShouldBeFalse)
	})
}
