package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/arena"
)

// totalEnergy sums kinetic and gravitational potential energy over the
// active, non-kinematic particles.
func totalEnergy(ar *arena.Arena, gravity r3.Vec) (ke, pe float64) {
	f := ar.Fields()
	for _, i := range ar.ActiveIndices() {
		w := f.InvMasses[i]
		if w <= 0 {
			continue
		}
		m := 1 / w
		ke += 0.5 * m * r3.Norm2(f.Velocities[i])
		pe -= m * r3.Dot(gravity, f.Positions[i])
	}
	return ke, pe
}

type Energy struct {
	name        string
	gravity     r3.Vec
	samples     int
	totalEnergy float64
}

func NewEnergy(gravity r3.Vec) *Energy {
	return &Energy{
		name:    "energy",
		gravity: gravity,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(ar *arena.Arena, t float64) {
	ke, pe := totalEnergy(ar, e.gravity)
	e.totalEnergy += ke + pe
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

type KineticEnergy struct {
	name string
	last float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(ar *arena.Arena, t float64) {
	k.last, _ = totalEnergy(ar, r3.Vec{})
}

func (k *KineticEnergy) Value() float64 { return k.last }
func (k *KineticEnergy) Reset()         { k.last = 0 }

type EnergyDrift struct {
	name          string
	gravity       r3.Vec
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift(gravity r3.Vec) *EnergyDrift {
	return &EnergyDrift{
		name:    "energy_drift",
		gravity: gravity,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(ar *arena.Arena, t float64) {
	ke, pe := totalEnergy(ar, e.gravity)
	energy := ke + pe

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
