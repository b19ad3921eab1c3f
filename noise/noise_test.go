package noise

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/buildvox/carver/spatialmath"
	"github.com/buildvox/carver/trajectory"
)

func stdNormalSrc(seed uint64) *distuv.Normal {
	return &distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed+1)}
}

func TestNoisyScanPointFrame(t *testing.T) {
	// the sqrt-covariance columns must be mutually orthogonal with the
	// configured lengths, whatever the ray direction
	dirs := []r3.Vector{
		{X: 1}, {Y: 1}, {Z: 1},
		{X: -2, Y: 3, Z: -0.5},
		{X: 1e-6, Y: 0, Z: -4},
	}
	for _, d := range dirs {
		sp := NewNoisyScanPoint(d, 0.1, 0.05)
		cols := []r3.Vector{sp.sqrtCov[0], sp.sqrtCov[1], sp.sqrtCov[2]}
		test.That(t, cols[0].Norm(), test.ShouldAlmostEqual, 0.05, 1e-12)
		test.That(t, cols[1].Norm(), test.ShouldAlmostEqual, 0.05, 1e-12)
		test.That(t, cols[2].Norm(), test.ShouldAlmostEqual, 0.1, 1e-12)
		test.That(t, cols[0].Dot(cols[1]), test.ShouldAlmostEqual, 0, 1e-12)
		test.That(t, cols[0].Dot(cols[2]), test.ShouldAlmostEqual, 0, 1e-12)
		test.That(t, cols[1].Dot(cols[2]), test.ShouldAlmostEqual, 0, 1e-12)
		// ray axis points along the mean direction
		test.That(t, cols[2].Normalize().Dot(d.Normalize()), test.ShouldAlmostEqual, 1, 1e-12)
	}
}

func TestNoisyScanPointMoments(t *testing.T) {
	const n = 20000
	sp := NewNoisyScanPoint(r3.Vector{X: 2}, 0.1, 0.05)
	g := stdNormalSrc(7)

	samples := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		p := sp.Sample(g)
		samples.SetRow(i, []float64{p.X, p.Y, p.Z})
	}

	for j, want := range []float64{2, 0, 0} {
		col := mat.Col(nil, j, samples)
		test.That(t, stat.Mean(col, nil), test.ShouldAlmostEqual, want, 0.01)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, samples, nil)
	want := sp.Covariance()
	// ray along x: variance 0.1^2 along x, 0.05^2 laterally
	test.That(t, want.At(0, 0), test.ShouldAlmostEqual, 0.01, 1e-12)
	test.That(t, want.At(1, 1), test.ShouldAlmostEqual, 0.0025, 1e-12)
	test.That(t, want.At(2, 2), test.ShouldAlmostEqual, 0.0025, 1e-12)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, cov.At(i, j), test.ShouldAlmostEqual, want.At(i, j), 1e-3)
		}
	}
}

func TestFiniteNoise(t *testing.T) {
	cases := []struct {
		name         string
		sigmaRange   float64
		sigmaLateral float64
		finite       bool
	}{
		{"typical", 0.01, 0.05, true},
		{"zero", 0, 0, true},
		{"at cutoff", MaxAllowedNoise, 0.1, true},
		{"above cutoff", MaxAllowedNoise + 1, 0.1, false},
		{"lateral above cutoff", 0.1, 2000, false},
		{"nan", math.NaN(), 0.1, false},
		{"inf", 0.1, math.Inf(1), false},
		{"negative", -0.1, 0.1, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sp := NewNoisyScanPoint(r3.Vector{X: 1}, c.sigmaRange, c.sigmaLateral)
			test.That(t, sp.FiniteNoise(), test.ShouldEqual, c.finite)
		})
	}
}

func TestNoisyTimestamp(t *testing.T) {
	t.Run("zero sigma is exact", func(t *testing.T) {
		nt := NewNoisyTimestamp(3.5, 0)
		g := stdNormalSrc(1)
		for i := 0; i < 10; i++ {
			test.That(t, nt.Sample(g), test.ShouldAlmostEqual, 3.5)
		}
	})

	t.Run("zero sigma draws nothing", func(t *testing.T) {
		g1, g2 := stdNormalSrc(3), stdNormalSrc(3)
		NewNoisyTimestamp(1, 0).Sample(g1)
		test.That(t, g1.Rand(), test.ShouldAlmostEqual, g2.Rand())
	})

	t.Run("moments", func(t *testing.T) {
		const n = 20000
		nt := NewNoisyTimestamp(10, 0.25)
		g := stdNormalSrc(2)
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = nt.Sample(g)
		}
		test.That(t, stat.Mean(samples, nil), test.ShouldAlmostEqual, 10, 0.01)
		test.That(t, stat.StdDev(samples, nil), test.ShouldAlmostEqual, 0.25, 0.01)
	})
}

func staticPath(t *testing.T) *trajectory.Path {
	t.Helper()
	identity := quat.Number{Real: 1}
	path, err := trajectory.NewPath([]trajectory.Pose{
		{Time: 0, Position: r3.Vector{}, Rotation: identity},
		{Time: 10, Position: r3.Vector{}, Rotation: identity},
	}, map[string]spatialmath.Transform{
		"scanner": spatialmath.NewTransform(identity, r3.Vector{X: 1}),
	})
	test.That(t, err, test.ShouldBeNil)
	return path
}

func TestModelGenerateSample(t *testing.T) {
	logger := golog.NewTestLogger(t)

	t.Run("no scan point set", func(t *testing.T) {
		m := NewModel(staticPath(t), rand.NewPCG(1, 2), logger)
		_, _, err := m.GenerateSample()
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("unknown sensor", func(t *testing.T) {
		m := NewModel(staticPath(t), rand.NewPCG(1, 2), logger)
		test.That(t, m.SetSensor("sonar"), test.ShouldNotBeNil)
		test.That(t, m.SetSensor("scanner"), test.ShouldBeNil)
	})

	t.Run("timestamp outside trajectory", func(t *testing.T) {
		m := NewModel(staticPath(t), rand.NewPCG(1, 2), logger)
		test.That(t, m.SetSensor("scanner"), test.ShouldBeNil)
		m.SetTimestamp(100, 0)
		m.SetScan(r3.Vector{X: 2}, 0.01, 0.01)
		_, _, err := m.GenerateSample()
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, trajectory.ErrPoseNotFound), test.ShouldBeTrue)
	})

	t.Run("sample means follow the composed transform", func(t *testing.T) {
		const n = 5000
		m := NewModel(staticPath(t), rand.NewPCG(3, 4), logger)
		test.That(t, m.SetSensor("scanner"), test.ShouldBeNil)
		m.SetTimestamp(5, 0.1)
		m.SetScan(r3.Vector{X: 2}, 0.01, 0.01)

		var sensorSum, scanSum r3.Vector
		for i := 0; i < n; i++ {
			sensorPos, scanPos, err := m.GenerateSample()
			test.That(t, err, test.ShouldBeNil)
			sensorSum = sensorSum.Add(sensorPos)
			scanSum = scanSum.Add(scanPos)
		}

		// sensor sits at the extrinsic offset, the scan point two
		// meters further along x
		sensorMean := sensorSum.Mul(1.0 / n)
		scanMean := scanSum.Mul(1.0 / n)
		test.That(t, sensorMean.Sub(r3.Vector{X: 1}).Norm(), test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, scanMean.Sub(r3.Vector{X: 3}).Norm(), test.ShouldAlmostEqual, 0, 0.01)
	})
}
