package constraint

import (
	"fmt"
	"log/slog"

	"github.com/san-kum/pbdsim/internal/kernel"
)

// Owner is the actor side of a group.
type Owner interface {
	Name() string
	ActorID() int
	InArena() bool
	ParticleCount() int
	// Slot maps a local particle index to its arena slot.
	Slot(local int) int
	Kernel() kernel.Kernel
	Registry() Registry
}

// Registry resolves sibling groups by actor id.
type Registry interface {
	Len() int
	// Group returns the group of type t owned by actor id, or nil.
	Group(id int, t kernel.ConstraintType) Group
}

type Group interface {
	Type() kernel.ConstraintType
	Count() int
	Offset() int
	Registered() bool
	Enabled() bool
	SetEnabled(on bool)
	Bind(o Owner)
	Owner() Owner

	Initialize() error
	RemoveConstraint(i int) error
	Particles(i int) []int
	Active(i int) bool
	SetActive(i int, on bool) error
	ConstraintsInvolvingParticle(p int) []int

	ComputeOffset() int
	AddToArena() error
	RemoveFromArena() error
	UpdateActiveStatus()
	PushData() error

	shiftOffset(delta int)
}

// kind supplies the type-specific parameters of a group.
type kind interface {
	params(i int) []float64
	removeAt(i int)
	clear()
}

type group struct {
	typ        kernel.ConstraintType
	kind       kind
	owner      Owner
	offset     int
	registered bool
	enabled    bool
	particles  [][]int
	active     []bool
}

func (g *group) init(t kernel.ConstraintType, k kind) {
	g.typ = t
	g.kind = k
	g.enabled = true
}

func (g *group) Type() kernel.ConstraintType { return g.typ }
func (g *group) Count() int                  { return len(g.particles) }
func (g *group) Offset() int                 { return g.offset }
func (g *group) Registered() bool            { return g.registered }
func (g *group) Enabled() bool               { return g.enabled }
func (g *group) Bind(o Owner)                { g.owner = o }
func (g *group) Owner() Owner                { return g.owner }
func (g *group) shiftOffset(delta int)       { g.offset += delta }

func (g *group) ownerName() string {
	if g.owner == nil {
		return ""
	}
	return g.owner.Name()
}

func (g *group) refuse(op string) error {
	slog.Error("constraint topology change refused",
		"op", op, "type", g.typ.String(), "actor", g.ownerName())
	return fmt.Errorf("%s %s: %w", op, g.typ, ErrRegistered)
}

// Initialize clears every constraint record.
func (g *group) Initialize() error {
	if g.registered {
		return g.refuse("initialize")
	}
	g.particles = g.particles[:0]
	g.active = g.active[:0]
	g.kind.clear()
	return nil
}

func (g *group) add(particles ...int) error {
	if g.registered {
		return g.refuse("add")
	}
	for _, p := range particles {
		if p < 0 {
			return fmt.Errorf("particle %d: %w", p, ErrIndexOutOfRange)
		}
	}
	g.particles = append(g.particles, append([]int(nil), particles...))
	g.active = append(g.active, true)
	return nil
}

func (g *group) RemoveConstraint(i int) error {
	if g.registered {
		return g.refuse("remove")
	}
	if i < 0 || i >= g.Count() {
		return fmt.Errorf("constraint %d of %d: %w", i, g.Count(), ErrIndexOutOfRange)
	}
	g.particles = append(g.particles[:i], g.particles[i+1:]...)
	g.active = append(g.active[:i], g.active[i+1:]...)
	g.kind.removeAt(i)
	return nil
}

func (g *group) Particles(i int) []int {
	if i < 0 || i >= g.Count() {
		return nil
	}
	return append([]int(nil), g.particles[i]...)
}

func (g *group) Active(i int) bool {
	return i >= 0 && i < len(g.active) && g.active[i]
}

func (g *group) SetActive(i int, on bool) error {
	if i < 0 || i >= g.Count() {
		return fmt.Errorf("constraint %d of %d: %w", i, g.Count(), ErrIndexOutOfRange)
	}
	g.active[i] = on
	g.UpdateActiveStatus()
	return nil
}

func (g *group) SetEnabled(on bool) {
	g.enabled = on
	g.UpdateActiveStatus()
}

func (g *group) ConstraintsInvolvingParticle(p int) []int {
	var out []int
	for i, ps := range g.particles {
		for _, q := range ps {
			if q == p {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// ComputeOffset sums the counts of registered same-type groups whose actor
// has a smaller id.
func (g *group) ComputeOffset() int {
	if g.owner == nil {
		return 0
	}
	reg := g.owner.Registry()
	id := g.owner.ActorID()
	offset := 0
	for a := 0; a < id && a < reg.Len(); a++ {
		if o := reg.Group(a, g.typ); o != nil && o.Registered() {
			offset += o.Count()
		}
	}
	return offset
}

func (g *group) shiftSuccessors(delta int) {
	if delta == 0 {
		return
	}
	reg := g.owner.Registry()
	for a := g.owner.ActorID() + 1; a < reg.Len(); a++ {
		if o := reg.Group(a, g.typ); o != nil && o.Registered() {
			o.shiftOffset(delta)
		}
	}
}

func (g *group) translate() ([]kernel.Record, error) {
	n := g.owner.ParticleCount()
	records := make([]kernel.Record, g.Count())
	for i, ps := range g.particles {
		slots := make([]int, len(ps))
		for j, p := range ps {
			if p >= n {
				return nil, fmt.Errorf("constraint %d references particle %d of %d: %w", i, p, n, ErrIndexOutOfRange)
			}
			slots[j] = g.owner.Slot(p)
		}
		records[i] = kernel.Record{Particles: slots, Params: g.kind.params(i)}
	}
	return records, nil
}

// AddToArena opens this group's window in the kernel. Registered successors
// are shifted up, so a group may join while later actors are present.
func (g *group) AddToArena() error {
	if g.owner == nil || !g.owner.InArena() {
		return fmt.Errorf("add %s: %w", g.typ, ErrActorNotInArena)
	}
	if g.registered {
		return fmt.Errorf("add %s: %w", g.typ, ErrAlreadyRegistered)
	}

	records, err := g.translate()
	if err != nil {
		return fmt.Errorf("add %s: %w", g.typ, err)
	}

	g.offset = g.ComputeOffset()
	g.owner.Kernel().InsertConstraints(g.typ, g.offset, records)
	g.shiftSuccessors(g.Count())
	g.registered = true
	g.UpdateActiveStatus()

	slog.Debug("constraint group added", "type", g.typ.String(), "actor", g.ownerName(),
		"offset", g.offset, "count", g.Count())
	return nil
}

// RemoveFromArena closes this group's window and shifts successors down.
func (g *group) RemoveFromArena() error {
	if !g.registered {
		return nil
	}
	g.shiftSuccessors(-g.Count())
	g.owner.Kernel().RemoveConstraints(g.typ, g.offset, g.Count())
	g.registered = false

	slog.Debug("constraint group removed", "type", g.typ.String(), "actor", g.ownerName())
	return nil
}

// UpdateActiveStatus submits the active and inactive global indices of this
// group's window. A disabled group deactivates its whole window.
func (g *group) UpdateActiveStatus() {
	if !g.registered {
		return
	}
	var on, off []int
	for i, a := range g.active {
		if a && g.enabled {
			on = append(on, g.offset+i)
		} else {
			off = append(off, g.offset+i)
		}
	}
	k := g.owner.Kernel()
	if len(on) > 0 {
		k.ActivateConstraints(g.typ, on)
	}
	if len(off) > 0 {
		k.DeactivateConstraints(g.typ, off)
	}
}

// PushData resends parameters of the registered window.
func (g *group) PushData() error {
	if !g.registered {
		return nil
	}
	records, err := g.translate()
	if err != nil {
		return err
	}
	g.owner.Kernel().UpdateConstraints(g.typ, g.offset, records)
	g.UpdateActiveStatus()
	return nil
}

// New returns an empty group of type t.
func New(t kernel.ConstraintType) (Group, error) {
	switch t {
	case kernel.Distance:
		return NewDistance(), nil
	case kernel.Bending:
		return NewBending(), nil
	case kernel.Tether:
		return NewTether(), nil
	case kernel.Pin:
		return NewPin(), nil
	case kernel.Chain:
		return NewChain(), nil
	case kernel.Aerodynamic:
		return NewAerodynamic(), nil
	}
	return nil, fmt.Errorf("unknown constraint type: %s", t)
}

func removeAt[T any](s []T, i int) []T {
	return append(s[:i], s[i+1:]...)
}
