package floorplan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// twoRoomPlan is a floorplan with two unit-square rooms side by side:
// room 0 spans x in [0,1], room 1 spans x in [1,2], both y in [0,1],
// with different ceiling heights.
const twoRoomPlan = `0.05
6
4
2
0 0
1 0
2 0
0 1
1 1
2 1
0 1 4
0 4 3
1 2 5
1 5 4
0 2 2 0 1
0 2.5 2 2 3
`

func writePlan(t *testing.T, contents string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "model.fp")
	test.That(t, os.WriteFile(fn, []byte(contents), 0o644), test.ShouldBeNil)
	return fn
}

func TestNewFromFile(t *testing.T) {
	logger := golog.NewTestLogger(t)

	t.Run("valid", func(t *testing.T) {
		fp, err := NewFromFile(writePlan(t, twoRoomPlan), logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, fp.Resolution, test.ShouldAlmostEqual, 0.05)
		test.That(t, len(fp.Verts), test.ShouldEqual, 6)
		test.That(t, len(fp.Tris), test.ShouldEqual, 4)
		test.That(t, fp.NumRooms(), test.ShouldEqual, 2)
		test.That(t, fp.Rooms[1].MaxZ, test.ShouldAlmostEqual, 2.5)
		test.That(t, fp.Rooms[0].Tris, test.ShouldResemble, []int{0, 1})
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFromFile(filepath.Join(t.TempDir(), "nope.fp"), logger)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := NewFromFile(writePlan(t, "0.05\n3\n1\n1\n0 0\n1 0\n"), logger)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("bad triangle index", func(t *testing.T) {
		_, err := NewFromFile(writePlan(t, "0.05\n3\n1\n0\n0 0\n1 0\n0 1\n0 1 9\n"), logger)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestRoomAt(t *testing.T) {
	logger := golog.NewTestLogger(t)
	fp, err := NewFromFile(writePlan(t, twoRoomPlan), logger)
	test.That(t, err, test.ShouldBeNil)

	cases := []struct {
		name string
		p    r3.Vector
		room int
	}{
		{"center of room 0", r3.Vector{X: 0.5, Y: 0.5, Z: 1}, 0},
		{"center of room 1", r3.Vector{X: 1.5, Y: 0.5, Z: 1}, 1},
		{"above room 0 ceiling", r3.Vector{X: 0.5, Y: 0.5, Z: 2.2}, -1},
		{"within room 1 taller ceiling", r3.Vector{X: 1.5, Y: 0.5, Z: 2.2}, 1},
		{"below floor", r3.Vector{X: 0.5, Y: 0.5, Z: -0.1}, -1},
		{"outside footprint", r3.Vector{X: 3, Y: 0.5, Z: 1}, -1},
		{"outside in y", r3.Vector{X: 0.5, Y: 1.5, Z: 1}, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			test.That(t, fp.RoomAt(c.p), test.ShouldEqual, c.room)
		})
	}
}

func TestTriOverlapsSquare(t *testing.T) {
	a, b, c := Vertex{0, 0}, Vertex{1, 0}, Vertex{0, 1}

	t.Run("square inside triangle", func(t *testing.T) {
		test.That(t, triOverlapsSquare(a, b, c, 0.25, 0.25, 0.05), test.ShouldBeTrue)
	})
	t.Run("triangle vertex inside square", func(t *testing.T) {
		test.That(t, triOverlapsSquare(a, b, c, 1.0, 0.0, 0.1), test.ShouldBeTrue)
	})
	t.Run("disjoint", func(t *testing.T) {
		test.That(t, triOverlapsSquare(a, b, c, 2, 2, 0.4), test.ShouldBeFalse)
	})
	t.Run("near hypotenuse outside", func(t *testing.T) {
		// square close to the hypotenuse but separated by its normal
		test.That(t, triOverlapsSquare(a, b, c, 0.9, 0.9, 0.1), test.ShouldBeFalse)
	})
	t.Run("edge crossing without contained vertices", func(t *testing.T) {
		// wide thin square straddling the triangle's bottom edge
		test.That(t, triOverlapsSquare(a, b, c, 0.5, 0.0, 0.05), test.ShouldBeTrue)
	})
}

func TestExtrudedPoly(t *testing.T) {
	logger := golog.NewTestLogger(t)
	fp, err := NewFromFile(writePlan(t, twoRoomPlan), logger)
	test.That(t, err, test.ShouldBeNil)

	ep := NewExtrudedPoly(fp, 1, 7)
	test.That(t, ep.RoomIndex(), test.ShouldEqual, int32(7))
	test.That(t, ep.NumVerts(), test.ShouldEqual, 8)

	// floor vertices carry the floor height, ceiling vertices the
	// ceiling height, over the same footprint
	for i := 0; i < ep.NumVerts()/2; i++ {
		floor := ep.Vertex(i)
		ceil := ep.Vertex(i + ep.NumVerts()/2)
		test.That(t, floor.Z, test.ShouldAlmostEqual, 0)
		test.That(t, ceil.Z, test.ShouldAlmostEqual, 2.5)
		test.That(t, floor.X, test.ShouldAlmostEqual, ceil.X)
		test.That(t, floor.Y, test.ShouldAlmostEqual, ceil.Y)
	}

	t.Run("intersects", func(t *testing.T) {
		test.That(t, ep.Intersects(r3.Vector{X: 1.5, Y: 0.5, Z: 1}, 0.1), test.ShouldBeTrue)
		test.That(t, ep.Intersects(r3.Vector{X: 0.2, Y: 0.5, Z: 1}, 0.1), test.ShouldBeFalse)
		test.That(t, ep.Intersects(r3.Vector{X: 1.5, Y: 0.5, Z: 3}, 0.1), test.ShouldBeFalse)
		// large cube containing the whole room
		test.That(t, ep.Intersects(r3.Vector{X: 1.5, Y: 0.5, Z: 1}, 10), test.ShouldBeTrue)
	})
}
