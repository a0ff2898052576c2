package dynamo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Transform places local coordinates in arena space: scale, then rotate
// Angle radians about Axis, then translate by Position.
// The zero value is the identity.
type Transform struct {
	Position r3.Vec
	Axis     r3.Vec
	Angle    float64
	Scale    float64
}

func Identity() Transform {
	return Transform{Scale: 1}
}

func Translation(p r3.Vec) Transform {
	return Transform{Position: p, Scale: 1}
}

func (t Transform) scale() float64 {
	if t.Scale == 0 {
		return 1
	}
	return t.Scale
}

func (t Transform) rotates() bool {
	return t.Angle != 0 && r3.Norm2(t.Axis) > 0
}

func (t Transform) rotate(v r3.Vec, angle float64) r3.Vec {
	if !t.rotates() {
		return v
	}
	return r3.NewRotation(angle, r3.Unit(t.Axis)).Rotate(v)
}

// TransformVector applies scale and rotation, ignoring translation.
func (t Transform) TransformVector(v r3.Vec) r3.Vec {
	return t.rotate(r3.Scale(t.scale(), v), t.Angle)
}

func (t Transform) TransformPoint(p r3.Vec) r3.Vec {
	return r3.Add(t.TransformVector(p), t.Position)
}

func (t Transform) InverseTransformVector(v r3.Vec) r3.Vec {
	return r3.Scale(1/t.scale(), t.rotate(v, -t.Angle))
}

func (t Transform) InverseTransformPoint(p r3.Vec) r3.Vec {
	return t.InverseTransformVector(r3.Sub(p, t.Position))
}

// Lerp returns the point a fraction mu of the way from a to b.
func Lerp(a, b r3.Vec, mu float64) r3.Vec {
	return r3.Add(a, r3.Scale(mu, r3.Sub(b, a)))
}

// Finite reports whether every component of v is a finite number.
func Finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
