// Package handle parents actor particles to a moving transform.
package handle

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/actor"
	"github.com/san-kum/pbdsim/internal/dynamo"
	"github.com/san-kum/pbdsim/internal/sim"
)

type handled struct {
	index   int
	local   r3.Vec
	invMass float64
}

// Handle keeps its particles kinematic and places them relative to
// Transform before every kernel step.
type Handle struct {
	Transform dynamo.Transform

	actor     *actor.Actor
	driver    *sim.Driver
	listener  sim.ListenerID
	attached  bool
	particles []handled
}

func New(a *actor.Actor) *Handle {
	return &Handle{Transform: dynamo.Identity(), actor: a}
}

func (h *Handle) Actor() *actor.Actor { return h.actor }
func (h *Handle) ParticleCount() int  { return len(h.particles) }

// AddParticle grabs local particle index at position, given in arena space.
// invMass is restored on Detach.
func (h *Handle) AddParticle(index int, position r3.Vec, invMass float64) {
	h.particles = append(h.particles, handled{
		index:   index,
		local:   h.Transform.InverseTransformPoint(position),
		invMass: invMass,
	})
}

// Grab adds each index at its current position and inverse mass.
func (h *Handle) Grab(indices ...int) {
	for _, i := range indices {
		h.AddParticle(i, h.actor.ParticlePosition(i), h.actor.InvMasses[i])
	}
}

func (h *Handle) Attach(d *sim.Driver) {
	if h.attached {
		h.Detach()
	}
	h.driver = d
	h.listener = d.On(sim.FixedParticlesUpdated, h.update)
	h.attached = true
}

// Detach stops driving the particles and restores their inverse masses.
func (h *Handle) Detach() {
	if !h.attached {
		return
	}
	h.driver.Off(sim.FixedParticlesUpdated, h.listener)
	h.attached = false

	for _, p := range h.particles {
		h.actor.InvMasses[p.index] = p.invMass
	}
	h.actor.PushFields(actor.InvMasses)
}

func (h *Handle) update(d *sim.Driver, dt float64) {
	a := h.actor
	if !a.InArena() {
		return
	}
	f := d.Arena().Fields()
	for _, p := range h.particles {
		s := a.Slot(p.index)
		a.Velocities[p.index] = r3.Vec{}
		a.InvMasses[p.index] = 0
		f.Velocities[s] = r3.Vec{}
		f.InvMasses[s] = 0
		f.Positions[s] = h.Transform.TransformPoint(p.local)
	}
}
