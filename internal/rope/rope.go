// Package rope builds rope actors from a path: particles evenly spaced by
// arc length, linked by distance, chain and bending constraints, with
// optional pins and tethers.
package rope

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/actor"
	"github.com/san-kum/pbdsim/internal/constraint"
)

const (
	DefaultThickness  = 0.05
	DefaultResolution = 1.0
	DefaultPooled     = 0
)

var (
	ErrNotGenerated = errors.New("rope: particles have not been generated")
	ErrInvalidPath  = errors.New("rope: path has no length")
)

type Rope struct {
	*actor.Actor

	Thickness   float64
	Resolution  float64
	Pooled      int
	SelfCollide bool
	PhaseGroup  int

	Distance    *constraint.Distance
	Bending     *constraint.Bending
	Tether      *constraint.Tether
	Pin         *constraint.Pin
	Chain       *constraint.Chain
	Aerodynamic *constraint.Aerodynamic

	used             int
	closed           bool
	restLength       float64
	particleDistance float64
	initialized      bool
}

func New(name string) *Rope {
	r := &Rope{
		Actor:       actor.New(name, 0),
		Thickness:   DefaultThickness,
		Resolution:  DefaultResolution,
		Pooled:      DefaultPooled,
		Distance:    constraint.NewDistance(),
		Bending:     constraint.NewBending(),
		Tether:      constraint.NewTether(),
		Pin:         constraint.NewPin(),
		Chain:       constraint.NewChain(),
		Aerodynamic: constraint.NewAerodynamic(),
	}
	for _, g := range []constraint.Group{r.Tether, r.Pin, r.Bending, r.Distance, r.Chain, r.Aerodynamic} {
		// Each kind is attached once to a fresh actor.
		_ = r.AddGroup(g)
	}
	return r
}

func (r *Rope) Initialized() bool { return r.initialized }
func (r *Rope) Closed() bool      { return r.closed }
func (r *Rope) RestLength() float64 {
	return r.restLength
}

// UsedParticles is the number of non-pooled particles.
func (r *Rope) UsedParticles() int { return r.used }

func (r *Rope) InterParticleDistance() float64 { return r.particleDistance }

// AddToArena refuses a rope whose particles were never generated.
func (r *Rope) AddToArena() (bool, error) {
	if !r.initialized {
		return false, fmt.Errorf("%s: %w", r.Name(), ErrNotGenerated)
	}
	return r.Actor.AddToArena()
}

// ResetActor pushes the local positions and velocities back to the arena.
func (r *Rope) ResetActor() {
	r.PushFields(actor.Positions | actor.Velocities)
}

// Fix makes particle i kinematic at its current position.
func (r *Rope) Fix(i int) {
	r.PullFields(actor.Positions)
	r.InvMasses[i] = 0
	r.PushFields(actor.InvMasses)
}

func (r *Rope) Free(i int, invMass float64) {
	r.InvMasses[i] = invMass
	r.PushFields(actor.InvMasses)
}

// regroup runs fn with g out of the arena and re-registers it afterwards.
func (r *Rope) regroup(g constraint.Group, fn func() error) error {
	if err := g.RemoveFromArena(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	if r.InArena() {
		return g.AddToArena()
	}
	return nil
}

// PinTo attaches particle i to a fixed point in arena space.
func (r *Rope) PinTo(i int, point r3.Vec, stiffness float64) error {
	if i < 0 || i >= r.ParticleCount() {
		return fmt.Errorf("pin particle %d of %d: %w", i, r.ParticleCount(), constraint.ErrIndexOutOfRange)
	}
	return r.regroup(r.Pin, func() error {
		return r.Pin.AddConstraint(i, -1, point, stiffness)
	})
}

type tether struct {
	distance float64
	anchor   int
}

// GenerateTethers links every free particle to the closest fixed particle,
// measured along the rope, of up to maxTethers islands of adjacent fixed
// particles.
func (r *Rope) GenerateTethers(maxTethers int) error {
	if !r.initialized {
		return ErrNotGenerated
	}
	return r.regroup(r.Tether, func() error {
		if err := r.Tether.Initialize(); err != nil {
			return err
		}
		if maxTethers <= 0 {
			return nil
		}

		n := r.used
		along := make([]float64, n)
		for k := 1; k < n; k++ {
			along[k] = along[k-1] + r3.Norm(r3.Sub(r.Positions[k], r.Positions[k-1]))
		}

		var islands [][]int
		for i := 0; i < n; i++ {
			if r.InvMasses[i] > 0 {
				continue
			}
			if m := len(islands); m > 0 {
				last := islands[m-1]
				if last[len(last)-1] == i-1 {
					islands[m-1] = append(last, i)
					continue
				}
			}
			islands = append(islands, []int{i})
		}

		for i := 0; i < n; i++ {
			if r.InvMasses[i] == 0 {
				continue
			}
			tethers := make([]tether, 0, len(islands))
			for _, island := range islands {
				best := tether{distance: math.Inf(1), anchor: -1}
				for _, j := range island {
					if d := math.Abs(along[i] - along[j]); d < best.distance {
						best = tether{distance: d, anchor: j}
					}
				}
				tethers = append(tethers, best)
			}
			sort.SliceStable(tethers, func(a, b int) bool { return tethers[a].distance < tethers[b].distance })

			for k := 0; k < min(maxTethers, len(tethers)); k++ {
				if err := r.Tether.AddConstraint(i, tethers[k].anchor, tethers[k].distance, 1, 1); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SetDrag gives every used particle an aerodynamic constraint facing wind.
// A zero drag and lift clears them.
func (r *Rope) SetDrag(drag, lift float64, wind r3.Vec) error {
	if !r.initialized {
		return ErrNotGenerated
	}
	return r.regroup(r.Aerodynamic, func() error {
		if err := r.Aerodynamic.Initialize(); err != nil {
			return err
		}
		r.Aerodynamic.Wind = wind
		if drag == 0 && lift == 0 {
			return nil
		}
		area := r.Thickness * r.particleDistance
		for i := 0; i < r.used; i++ {
			if err := r.Aerodynamic.AddConstraint(i, area, drag, lift); err != nil {
				return err
			}
		}
		return nil
	})
}
