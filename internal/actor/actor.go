// Package actor implements the base type for anything that contributes
// particles and constraints to the shared arena.
//
// An Actor keeps local per-particle arrays in its own space. Entering the
// arena allocates slots, pushes the local data (transformed into arena
// space) and registers the actor's constraint groups. Leaving does the
// reverse. Types that need custom per-step behavior embed *Actor and pass
// themselves to SetClient.
package actor

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/arena"
	"github.com/san-kum/pbdsim/internal/constraint"
	"github.com/san-kum/pbdsim/internal/dynamo"
	"github.com/san-kum/pbdsim/internal/kernel"
)

var (
	ErrInsufficientCapacity = errors.New("actor: not enough free particle slots")
	ErrInArena              = errors.New("actor: operation not allowed while in the arena")
	ErrDuplicateGroup       = errors.New("actor: constraint group of this type already attached")
)

// Host owns the arena and the actor registry.
type Host interface {
	constraint.Registry
	Arena() *arena.Arena
	// Register appends c and returns its actor id.
	Register(c Client) int
	// Unregister removes id and renumbers every later actor.
	Unregister(id int)
}

// Client receives the driver's per-frame and per-step hooks.
type Client interface {
	Base() *Actor
	OnFrameBegin(dt float64)
	OnStepBegin(dt float64)
	OnStepEnd(dt float64)
	OnPreInterpolation()
	OnFrameEnd(dt float64)
}

type Actor struct {
	name string

	// Transform places local coordinates in arena space.
	Transform dynamo.Transform

	Active      []bool
	Positions   []r3.Vec
	Velocities  []r3.Vec
	Vorticities []r3.Vec
	InvMasses   []float64
	SolidRadii  []float64
	Phases      []int32
	// Ignored lists, per particle, local particles it never collides with.
	Ignored [][]int

	slots   []int
	id      int
	inArena bool
	enabled bool

	host   Host
	client Client
	groups map[kernel.ConstraintType]constraint.Group
	order  []kernel.ConstraintType

	onAdded   []func(*Actor)
	onRemoved []func(*Actor)

	logger *slog.Logger
}

var _ Client = (*Actor)(nil)
var _ constraint.Owner = (*Actor)(nil)

// New returns an actor with n active particles of unit inverse mass.
func New(name string, n int) *Actor {
	a := &Actor{
		name:      name,
		Transform: dynamo.Identity(),
		id:        -1,
		enabled:   true,
		groups:    make(map[kernel.ConstraintType]constraint.Group),
		logger:    slog.Default().With("actor", name),
	}
	a.client = a
	a.allocLocal(n)
	return a
}

func (a *Actor) allocLocal(n int) {
	keep := min(len(a.Positions), n)

	active := make([]bool, n)
	positions := make([]r3.Vec, n)
	velocities := make([]r3.Vec, n)
	vorticities := make([]r3.Vec, n)
	invMasses := make([]float64, n)
	radii := make([]float64, n)
	phases := make([]int32, n)
	ignored := make([][]int, n)

	copy(active, a.Active[:keep])
	copy(positions, a.Positions[:keep])
	copy(velocities, a.Velocities[:keep])
	copy(vorticities, a.Vorticities[:keep])
	copy(invMasses, a.InvMasses[:keep])
	copy(radii, a.SolidRadii[:keep])
	copy(phases, a.Phases[:keep])
	copy(ignored, a.Ignored[:keep])

	for i := keep; i < n; i++ {
		active[i] = true
		invMasses[i] = 1
		radii[i] = 0.1
	}

	a.Active, a.Positions, a.Velocities, a.Vorticities = active, positions, velocities, vorticities
	a.InvMasses, a.SolidRadii, a.Phases, a.Ignored = invMasses, radii, phases, ignored
}

func (a *Actor) Name() string       { return a.name }
func (a *Actor) Base() *Actor       { return a }
func (a *Actor) ActorID() int       { return a.id }
func (a *Actor) InArena() bool      { return a.inArena }
func (a *Actor) Enabled() bool      { return a.enabled }
func (a *Actor) ParticleCount() int { return len(a.Positions) }
func (a *Actor) Host() Host         { return a.host }

// SetActorID is called by the host when the registry compacts.
func (a *Actor) SetActorID(id int) { a.id = id }

func (a *Actor) Slot(local int) int { return a.slots[local] }

func (a *Actor) Slots() []int { return append([]int(nil), a.slots...) }

func (a *Actor) Kernel() kernel.Kernel { return a.host.Arena().Kernel() }

func (a *Actor) Registry() constraint.Registry { return a.host }

func (a *Actor) SetLogger(l *slog.Logger) { a.logger = l.With("actor", a.name) }

// SetClient makes c the receiver of driver hooks. Embedding types call it
// with themselves.
func (a *Actor) SetClient(c Client) { a.client = c }

func (a *Actor) Client() Client { return a.client }

// SetHost binds the actor to a host, leaving the previous arena first.
func (a *Actor) SetHost(h Host) {
	if a.host == h {
		return
	}
	a.RemoveFromArena()
	a.host = h
}

// Resize changes the local particle count, keeping existing data.
func (a *Actor) Resize(n int) error {
	if a.inArena {
		return fmt.Errorf("resize %s: %w", a.name, ErrInArena)
	}
	a.allocLocal(n)
	return nil
}

// AddGroup attaches a constraint group. A group attached while the actor
// is in the arena is registered immediately.
func (a *Actor) AddGroup(g constraint.Group) error {
	if _, ok := a.groups[g.Type()]; ok {
		return fmt.Errorf("%s %s: %w", a.name, g.Type(), ErrDuplicateGroup)
	}
	g.Bind(a)
	a.groups[g.Type()] = g
	a.order = append(a.order, g.Type())
	if a.inArena {
		return g.AddToArena()
	}
	return nil
}

// RemoveGroup detaches the group of type t, unregistering it if needed.
func (a *Actor) RemoveGroup(t kernel.ConstraintType) error {
	g, ok := a.groups[t]
	if !ok {
		return nil
	}
	if err := g.RemoveFromArena(); err != nil {
		return err
	}
	delete(a.groups, t)
	for i, o := range a.order {
		if o == t {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return nil
}

// Group returns the attached group of type t, or nil.
func (a *Actor) Group(t kernel.ConstraintType) constraint.Group {
	return a.groups[t]
}

// Groups returns attached groups in attachment order.
func (a *Actor) Groups() []constraint.Group {
	out := make([]constraint.Group, 0, len(a.order))
	for _, t := range a.order {
		out = append(out, a.groups[t])
	}
	return out
}

func (a *Actor) OnAdded(fn func(*Actor))   { a.onAdded = append(a.onAdded, fn) }
func (a *Actor) OnRemoved(fn func(*Actor)) { a.onRemoved = append(a.onRemoved, fn) }

// AddToArena allocates slots and registers the actor. It returns false, nil
// when already registered or unbound, and false with
// ErrInsufficientCapacity when the arena cannot hold every particle.
func (a *Actor) AddToArena() (bool, error) {
	if a.inArena || a.host == nil {
		return false, nil
	}

	ar := a.host.Arena()
	n := a.ParticleCount()
	slots, ok := ar.Allocate(n)
	if !ok {
		a.logger.Warn("not enough free particles in arena", "requested", n, "free", ar.FreeCount())
		return false, fmt.Errorf("%s: %w (need %d, %d free)", a.name, ErrInsufficientCapacity, n, ar.FreeCount())
	}

	a.slots = slots
	a.inArena = true
	a.id = a.host.Register(a.client)

	a.PushFields(AllFields)
	a.pushIgnored(true)

	for _, t := range a.order {
		if err := a.groups[t].AddToArena(); err != nil {
			a.logger.Error("constraint group rejected", "type", t.String(), "err", err)
			a.leave()
			return false, err
		}
	}

	a.logger.Debug("added to arena", "id", a.id, "particles", n)
	for _, fn := range a.onAdded {
		fn(a)
	}
	return true, nil
}

// RemoveFromArena unregisters groups and frees the actor's slots.
func (a *Actor) RemoveFromArena() bool {
	if !a.inArena {
		return false
	}
	a.leave()

	a.logger.Debug("removed from arena")
	for _, fn := range a.onRemoved {
		fn(a)
	}
	return true
}

func (a *Actor) leave() {
	for i := len(a.order) - 1; i >= 0; i-- {
		if err := a.groups[a.order[i]].RemoveFromArena(); err != nil {
			a.logger.Error("constraint group removal failed", "type", a.order[i].String(), "err", err)
		}
	}

	a.pushIgnored(false)
	a.host.Arena().Free(a.slots)
	a.host.Unregister(a.id)

	a.inArena = false
	a.slots = nil
	a.id = -1
}

func (a *Actor) pushIgnored(set bool) {
	k := a.Kernel()
	for i, list := range a.Ignored {
		if len(list) == 0 {
			continue
		}
		if !set {
			k.SetIgnoredParticles(a.slots[i], nil)
			continue
		}
		slots := make([]int, 0, len(list))
		for _, j := range list {
			if j >= 0 && j < len(a.slots) {
				slots = append(slots, a.slots[j])
			}
		}
		k.SetIgnoredParticles(a.slots[i], slots)
	}
}

// ParticlePosition returns particle i in arena space whether or not the
// actor is simulated.
func (a *Actor) ParticlePosition(i int) r3.Vec {
	if a.inArena {
		return a.host.Arena().Renderable()[a.slots[i]]
	}
	return a.Transform.TransformPoint(a.Positions[i])
}

// SetEnabled pulls the actor's particles out of the active set, or restores
// them from the local active flags.
func (a *Actor) SetEnabled(on bool) {
	if a.enabled == on {
		return
	}
	a.enabled = on
	if !a.inArena {
		return
	}
	if on {
		a.PushFields(ActiveStatus)
		return
	}
	a.PullFields(Positions | Velocities)
	ar := a.host.Arena()
	for _, s := range a.slots {
		ar.SetActive(s, false)
	}
	ar.SyncActive()
}

// UpdatePhases assigns every particle to a collision group.
func (a *Actor) UpdatePhases(group int, selfCollide bool) {
	var flags dynamo.PhaseFlag
	if selfCollide {
		flags |= dynamo.PhaseSelfCollide
	}
	phase := dynamo.MakePhase(group, flags)
	for i := range a.Phases {
		a.Phases[i] = phase
	}
	a.PushFields(Phases)
}

func (a *Actor) OnFrameBegin(dt float64) {}

// OnStepBegin drives fixed particles, or every particle of a disabled
// actor, from the local data and current transform.
func (a *Actor) OnStepBegin(dt float64) {
	if !a.inArena {
		return
	}
	f := a.host.Arena().Fields()
	for i, s := range a.slots {
		if !a.enabled || a.InvMasses[i] == 0 {
			f.Positions[s] = a.Transform.TransformPoint(a.Positions[i])
			f.Velocities[s] = r3.Vec{}
		}
	}
}

func (a *Actor) OnStepEnd(dt float64)  {}
func (a *Actor) OnPreInterpolation()   {}
func (a *Actor) OnFrameEnd(dt float64) {}
