// Package kernel defines the boundary between the coordination layer and the
// integration engine that advances particles.
//
// The engine reads flat per-slot particle arrays and flat per-type constraint
// arrays addressed by [offset, offset+count) windows. All indices crossing
// this boundary are global arena slots.
package kernel

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ConstraintType tags a family of constraints. Each type owns an independent
// flat array inside the kernel.
type ConstraintType int

const (
	Tether ConstraintType = iota
	Pin
	Bending
	Distance
	Chain
	Aerodynamic
)

var typeNames = [...]string{
	Tether:      "tether",
	Pin:         "pin",
	Bending:     "bending",
	Distance:    "distance",
	Chain:       "chain",
	Aerodynamic: "aerodynamic",
}

// Types returns every constraint type in solver order.
func Types() []ConstraintType {
	return []ConstraintType{Tether, Pin, Bending, Distance, Chain, Aerodynamic}
}

func (t ConstraintType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("constraint(%d)", int(t))
	}
	return typeNames[t]
}

func ParseConstraintType(s string) (ConstraintType, error) {
	for i, name := range typeNames {
		if strings.EqualFold(name, s) {
			return ConstraintType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown constraint type: %s", s)
}

// Record is one constraint with particle references already translated to
// global slots. Layouts by type:
//
//	Distance     Particles [i, j]       Params [rest, stretch, compress]
//	Bending      Particles [i, j, mid]  Params [rest, maxBend, stiffness]
//	Tether       Particles [i, anchor]  Params [maxLength, scale, stiffness]
//	Pin          Particles [i]          Params [body, x, y, z, stiffness]
//	Chain        Particles [p0 ... pn]  Params [minLength, maxLength]
//	Aerodynamic  Particles [i]          Params [area, drag, lift, wx, wy, wz, density]
//
// A Pin with body < 0 targets the arena point (x, y, z); otherwise the
// target is slot body's position plus the offset.
type Record struct {
	Particles []int
	Params    []float64
}

// Fields holds the per-slot particle arrays shared with the kernel.
type Fields struct {
	Positions   []r3.Vec
	Velocities  []r3.Vec
	Vorticities []r3.Vec
	InvMasses   []float64
	SolidRadii  []float64
	Phases      []int32
}

func NewFields(capacity int) *Fields {
	return &Fields{
		Positions:   make([]r3.Vec, capacity),
		Velocities:  make([]r3.Vec, capacity),
		Vorticities: make([]r3.Vec, capacity),
		InvMasses:   make([]float64, capacity),
		SolidRadii:  make([]float64, capacity),
		Phases:      make([]int32, capacity),
	}
}

func (f *Fields) Capacity() int { return len(f.Positions) }

// Kernel is the integration engine. Calls are synchronous; nothing else
// touches Fields while Integrate runs.
type Kernel interface {
	Bind(f *Fields)
	SetActiveParticles(indices []int)
	SetIgnoredParticles(particle int, ignored []int)

	// InsertConstraints opens a window at offset, shifting the tail up.
	InsertConstraints(t ConstraintType, offset int, records []Record)
	// UpdateConstraints overwrites an existing window in place.
	UpdateConstraints(t ConstraintType, offset int, records []Record)
	// RemoveConstraints drops a window, shifting the tail down.
	RemoveConstraints(t ConstraintType, offset, count int)
	ActivateConstraints(t ConstraintType, indices []int)
	DeactivateConstraints(t ConstraintType, indices []int)
	ConstraintCount(t ConstraintType) int

	Integrate(dt float64)
	// Interpolate blends the last two integrated states; alpha in [0, 1].
	Interpolate(alpha float64)
	RenderablePositions(dst []r3.Vec)
}
