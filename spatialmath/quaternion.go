// Package spatialmath defines the rigid-body math used throughout the
// carving pipeline: quaternion rotations, rigid transforms and their
// composition, and pose interpolation primitives.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// defaultAngleEpsilon is the cutoff below which two rotations are treated
// as identical during interpolation.
const defaultAngleEpsilon = 1e-8

// Norm returns the norm of the quaternion.
func Norm(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Normalize returns a unit quaternion in the same direction as q. The zero
// quaternion normalizes to the identity rotation.
func Normalize(q quat.Number) quat.Number {
	n := Norm(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// RotateVector rotates the vector v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Slerp spherically interpolates between unit quaternions q1 and q2 by
// the fraction t in [0,1]. The shorter great-circle arc is always taken.
func Slerp(q1, q2 quat.Number, t float64) quat.Number {
	dot := q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag
	if dot < 0 {
		q2 = quat.Scale(-1, q2)
		dot = -dot
	}
	if dot > 1-defaultAngleEpsilon {
		// rotations are nearly identical, lerp and renormalize
		return Normalize(quat.Add(quat.Scale(1-t, q1), quat.Scale(t, q2)))
	}
	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	a := math.Sin((1-t)*theta) / sinTheta
	b := math.Sin(t*theta) / sinTheta
	return quat.Add(quat.Scale(a, q1), quat.Scale(b, q2))
}

// AngleBetween returns the rotation angle in radians separating the unit
// quaternions q1 and q2.
func AngleBetween(q1, q2 quat.Number) float64 {
	dot := math.Abs(q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag)
	if dot > 1 {
		dot = 1
	}
	return 2 * math.Acos(dot)
}
