// Package noise models the uncertainty of a range-scan measurement: the
// clock-sync residual of its timestamp and the anisotropic Gaussian of the
// scan point itself. Samples drawn from a Model feed the Monte-Carlo
// carving of the occupancy octree.
package noise

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MaxAllowedNoise is the standard deviation, in meters, above which a
// scan point is treated as degenerate and excluded from carving.
const MaxAllowedNoise = 1000.0

// NoisyScanPoint is the Gaussian distribution of one scan point in sensor
// coordinates. The distribution is anisotropic: sigmaRange spreads the
// point along the ray from the sensor, sigmaLateral spreads it in the two
// perpendicular directions.
type NoisyScanPoint struct {
	mean         r3.Vector
	sigmaRange   float64
	sigmaLateral float64
	// columns of the square root of the covariance matrix: the two
	// lateral axes scaled by sigmaLateral, the ray axis by sigmaRange
	sqrtCov [3]r3.Vector
}

// NewNoisyScanPoint builds a scan point distribution from the measured
// mean position (sensor coordinates, so the sensor sits at the origin)
// and its along-ray and lateral standard deviations.
func NewNoisyScanPoint(mean r3.Vector, sigmaRange, sigmaLateral float64) *NoisyScanPoint {
	w := mean
	if w.Norm() < 1e-12 {
		w = r3.Vector{Z: 1}
	} else {
		w = w.Normalize()
	}
	u, v := perpendicularFrame(w)
	return &NoisyScanPoint{
		mean:         mean,
		sigmaRange:   sigmaRange,
		sigmaLateral: sigmaLateral,
		sqrtCov: [3]r3.Vector{
			u.Mul(sigmaLateral),
			v.Mul(sigmaLateral),
			w.Mul(sigmaRange),
		},
	}
}

// perpendicularFrame returns two unit vectors completing w to a
// right-handed orthonormal basis.
func perpendicularFrame(w r3.Vector) (r3.Vector, r3.Vector) {
	// cross against the axis w is least aligned with
	a := r3.Vector{X: 1}
	ax, ay, az := math.Abs(w.X), math.Abs(w.Y), math.Abs(w.Z)
	if ay <= ax && ay <= az {
		a = r3.Vector{Y: 1}
	} else if az <= ax && az <= ay {
		a = r3.Vector{Z: 1}
	}
	u := w.Cross(a).Normalize()
	v := w.Cross(u)
	return u, v
}

// Mean returns the measured point position in sensor coordinates.
func (sp *NoisyScanPoint) Mean() r3.Vector { return sp.mean }

// SigmaRange returns the along-ray standard deviation.
func (sp *NoisyScanPoint) SigmaRange() float64 { return sp.sigmaRange }

// SigmaLateral returns the lateral standard deviation.
func (sp *NoisyScanPoint) SigmaLateral() float64 { return sp.sigmaLateral }

// FiniteNoise reports whether the distribution is usable for carving.
// Non-finite or absurdly large deviations mark a measurement the sensor
// itself flagged as invalid.
func (sp *NoisyScanPoint) FiniteNoise() bool {
	for _, s := range []float64{sp.sigmaRange, sp.sigmaLateral} {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 || s > MaxAllowedNoise {
			return false
		}
	}
	return true
}

// MaxSigma returns the largest standard deviation along any axis.
func (sp *NoisyScanPoint) MaxSigma() float64 {
	return math.Max(sp.sigmaRange, sp.sigmaLateral)
}

// Sample draws one point from the distribution using the given standard
// normal source.
func (sp *NoisyScanPoint) Sample(stdNormal *distuv.Normal) r3.Vector {
	p := sp.mean
	for _, col := range sp.sqrtCov {
		p = p.Add(col.Mul(stdNormal.Rand()))
	}
	return p
}

// Covariance returns the 3x3 covariance matrix of the distribution.
func (sp *NoisyScanPoint) Covariance() *mat.SymDense {
	c := mat.NewSymDense(3, nil)
	for _, col := range sp.sqrtCov {
		v := []float64{col.X, col.Y, col.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				c.SetSym(i, j, c.At(i, j)+v[i]*v[j])
			}
		}
	}
	return c
}
