package carve

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/buildvox/carver/octree"
)

func TestPointCarver(t *testing.T) {
	logger := golog.NewTestLogger(t)

	t.Run("zero samples cannot update", func(t *testing.T) {
		pc := NewPointCarver()
		test.That(t, pc.UpdateTree(), test.ShouldNotBeNil)
	})

	t.Run("identical rays leave every touched leaf with full counts", func(t *testing.T) {
		tree, err := octree.New(0.25, logger)
		test.That(t, err, test.ShouldBeNil)

		const n = 50
		pc := NewPointCarver()
		a := r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}
		b := r3.Vector{X: 1.6, Y: 0.1, Z: 0.1}
		for i := 0; i < n; i++ {
			pc.AddSample(a, b, tree)
		}
		test.That(t, pc.NumSamples(), test.ShouldEqual, n)
		test.That(t, pc.NumLeaves(), test.ShouldBeGreaterThan, 0)
		for _, count := range pc.hits {
			test.That(t, count, test.ShouldEqual, uint32(n))
		}

		test.That(t, pc.UpdateTree(), test.ShouldBeNil)
		for leaf := range pc.hits {
			test.That(t, leaf.Data(), test.ShouldNotBeNil)
			test.That(t, leaf.Data().Count, test.ShouldEqual, uint32(1))
			test.That(t, leaf.Data().Probability(), test.ShouldAlmostEqual, 1.0)
		}
	})

	t.Run("per-leaf counts never exceed the sample count", func(t *testing.T) {
		tree, err := octree.New(0.25, logger)
		test.That(t, err, test.ShouldBeNil)

		pc := NewPointCarver()
		// spread ray endpoints so some leaves see only some samples
		ends := []r3.Vector{
			{X: 1.6, Y: 0.1, Z: 0.1},
			{X: 1.6, Y: 0.4, Z: 0.1},
			{X: 1.6, Y: 0.7, Z: 0.1},
		}
		for _, b := range ends {
			pc.AddSample(r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, b, tree)
		}
		partial := false
		for _, count := range pc.hits {
			test.That(t, count, test.ShouldBeLessThanOrEqualTo, uint32(len(ends)))
			if count < uint32(len(ends)) {
				partial = true
			}
		}
		test.That(t, partial, test.ShouldBeTrue)

		test.That(t, pc.UpdateTree(), test.ShouldBeNil)
		for leaf, count := range pc.hits {
			want := float64(count) / float64(len(ends))
			test.That(t, leaf.Data().Probability(), test.ShouldAlmostEqual, want)
		}
	})

	t.Run("update merges into existing observations", func(t *testing.T) {
		tree, err := octree.New(0.25, logger)
		test.That(t, err, test.ShouldBeNil)
		a := r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}
		b := r3.Vector{X: 0.9, Y: 0.1, Z: 0.1}

		pc := NewPointCarver()
		pc.AddSample(a, b, tree)
		test.That(t, pc.UpdateTree(), test.ShouldBeNil)

		pc.Reset()
		test.That(t, pc.NumSamples(), test.ShouldEqual, 0)
		pc.AddSample(a, b, tree)
		test.That(t, pc.UpdateTree(), test.ShouldBeNil)

		for leaf := range pc.hits {
			test.That(t, leaf.Data().Count, test.ShouldEqual, uint32(2))
		}
	})
}
