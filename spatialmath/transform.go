package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Transform is a rigid-body transform between two frames: a rotation
// followed by a translation.
type Transform struct {
	Rotation    quat.Number
	Translation r3.Vector
}

// NewZeroTransform returns the identity transform.
func NewZeroTransform() Transform {
	return Transform{Rotation: quat.Number{Real: 1}}
}

// NewTransform creates a transform from a unit rotation quaternion and a
// translation vector.
func NewTransform(rot quat.Number, trans r3.Vector) Transform {
	return Transform{Rotation: Normalize(rot), Translation: trans}
}

// Apply maps the point p from the transform's source frame to its
// destination frame.
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return RotateVector(t.Rotation, p).Add(t.Translation)
}

// Compose concatenates this transform (A -> B) with next (B -> C),
// producing the direct transform A -> C.
func (t Transform) Compose(next Transform) Transform {
	return Transform{
		Rotation:    Normalize(quat.Mul(next.Rotation, t.Rotation)),
		Translation: next.Apply(t.Translation),
	}
}

// Invert returns the inverse transform, mapping destination frame points
// back to the source frame.
func (t Transform) Invert() Transform {
	inv := quat.Conj(t.Rotation)
	return Transform{
		Rotation:    inv,
		Translation: RotateVector(inv, t.Translation.Mul(-1)),
	}
}
