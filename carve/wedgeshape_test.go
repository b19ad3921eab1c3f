package carve

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/buildvox/carver/chunk"
)

func carvePoint(x, y, z, sigma float64) chunk.CarveMapPoint {
	return chunk.CarveMapPoint{
		Mean:         r3.Vector{X: x, Y: y, Z: z},
		SigmaRange:   sigma,
		SigmaLateral: sigma,
	}
}

func TestWedgeShapeVertices(t *testing.T) {
	sensorA := r3.Vector{}
	sensorB := r3.Vector{Y: 0.1}
	w := NewWedgeShape(
		sensorA, carvePoint(1, 0, 0, 0.1), carvePoint(1, 0.2, 0, 0.1),
		sensorB, carvePoint(1, 0.1, 0, 0.1), carvePoint(1, 0.3, 0, 0.1),
		2, true,
	)
	test.That(t, w.NumVerts(), test.ShouldEqual, 6)
	test.That(t, w.Vertex(0), test.ShouldResemble, sensorA)
	test.That(t, w.Vertex(3), test.ShouldResemble, sensorB)
	// scan point vertices are pushed past their means away from the
	// sensor by buffer times sigma
	test.That(t, w.Vertex(1).X, test.ShouldAlmostEqual, 1.2)
	test.That(t, w.Vertex(1).Norm(), test.ShouldBeGreaterThan,
		r3.Vector{X: 1}.Norm())
}

func TestWedgeShapeIntersects(t *testing.T) {
	w := NewWedgeShape(
		r3.Vector{}, carvePoint(1, 0, 0, 0.01), carvePoint(1, 0.5, 0, 0.01),
		r3.Vector{Z: 0.05}, carvePoint(1, 0, 0.05, 0.01), carvePoint(1, 0.5, 0.05, 0.01),
		2, true,
	)

	for _, tc := range []struct {
		name   string
		center r3.Vector
		hit    bool
	}{
		{"near sensor", r3.Vector{X: 0.05}, true},
		{"inside fan", r3.Vector{X: 0.8, Y: 0.2}, true},
		{"far side of fan", r3.Vector{X: 0.9, Y: 0.42}, true},
		{"behind sensors", r3.Vector{X: -0.5}, false},
		{"beyond bloated points", r3.Vector{X: 1.5}, false},
		{"off to the side", r3.Vector{X: 0.5, Y: -0.5}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, w.Intersects(tc.center, 0.05), test.ShouldEqual, tc.hit)
		})
	}
}

func TestWedgeShapeNoInterpolation(t *testing.T) {
	// with interpolation off only the first corner ray is swept
	w := NewWedgeShape(
		r3.Vector{}, carvePoint(1, 0, 0, 0.01), carvePoint(1, 1, 0, 0.01),
		r3.Vector{}, carvePoint(1, 0, 0, 0.01), carvePoint(1, 1, 0, 0.01),
		0, false,
	)
	test.That(t, w.Intersects(r3.Vector{X: 0.5}, 0.05), test.ShouldBeTrue)
	test.That(t, w.Intersects(r3.Vector{X: 0.5, Y: 0.5}, 0.05), test.ShouldBeFalse)
}
