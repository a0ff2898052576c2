package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/arena"
)

// Stability is the fraction of steps in which every active particle stayed
// finite and within threshold of the origin.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(ar *arena.Arena, t float64) {
	s.samples++
	f := ar.Fields()
	for _, i := range ar.ActiveIndices() {
		d := r3.Norm(f.Positions[i])
		if math.IsNaN(d) || d > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

type MaxSpeed struct {
	name string
	max  float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(ar *arena.Arena, t float64) {
	f := ar.Fields()
	for _, i := range ar.ActiveIndices() {
		m.max = math.Max(m.max, r3.Norm(f.Velocities[i]))
	}
}

func (m *MaxSpeed) Value() float64 { return m.max }
func (m *MaxSpeed) Reset()         { m.max = 0 }

type ActiveParticles struct {
	name string
	last int
}

func NewActiveParticles() *ActiveParticles {
	return &ActiveParticles{name: "active_particles"}
}

func (a *ActiveParticles) Name() string { return a.name }

func (a *ActiveParticles) Observe(ar *arena.Arena, t float64) {
	a.last = len(ar.ActiveIndices())
}

func (a *ActiveParticles) Value() float64 { return float64(a.last) }
func (a *ActiveParticles) Reset()         { a.last = 0 }
