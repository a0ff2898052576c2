package actor

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/arena"
	"github.com/san-kum/pbdsim/internal/constraint"
	"github.com/san-kum/pbdsim/internal/dynamo"
	"github.com/san-kum/pbdsim/internal/kernel"
	"github.com/san-kum/pbdsim/internal/kernel/kerneltest"
)

type fakeHost struct {
	ar      *arena.Arena
	k       *kerneltest.Recorder
	clients []Client
}

func newHost(t *testing.T, capacity int) *fakeHost {
	t.Helper()
	k := kerneltest.New()
	ar, err := arena.New(capacity, k)
	if err != nil {
		t.Fatalf("arena: %v", err)
	}
	return &fakeHost{ar: ar, k: k}
}

func (h *fakeHost) Arena() *arena.Arena { return h.ar }
func (h *fakeHost) Len() int            { return len(h.clients) }

func (h *fakeHost) Register(c Client) int {
	h.clients = append(h.clients, c)
	return len(h.clients) - 1
}

func (h *fakeHost) Unregister(id int) {
	h.clients = append(h.clients[:id], h.clients[id+1:]...)
	for i := id; i < len(h.clients); i++ {
		h.clients[i].Base().SetActorID(i)
	}
}

func (h *fakeHost) Group(id int, t kernel.ConstraintType) constraint.Group {
	return h.clients[id].Base().Group(t)
}

func near(a, b r3.Vec) bool { return r3.Norm(r3.Sub(a, b)) < 1e-9 }

func TestAddToArenaCapacity(t *testing.T) {
	h := newHost(t, 10)
	a := New("A", 6)
	b := New("B", 6)
	a.SetHost(h)
	b.SetHost(h)

	if ok, err := a.AddToArena(); !ok || err != nil {
		t.Fatalf("expected A to enter, got %v %v", ok, err)
	}
	for i, s := range a.Slots() {
		if s != i {
			t.Errorf("expected slot %d, got %d", i, s)
		}
	}

	ok, err := b.AddToArena()
	if ok || !errors.Is(err, ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got %v %v", ok, err)
	}
	if b.InArena() || b.ActorID() != -1 || h.Len() != 1 {
		t.Error("failed actor must not be registered")
	}
	if h.ar.AllocatedCount() != 6 {
		t.Errorf("A's allocation changed: %d", h.ar.AllocatedCount())
	}

	a.RemoveFromArena()
	if ok, err := b.AddToArena(); !ok || err != nil {
		t.Fatalf("expected B to enter after A left, got %v %v", ok, err)
	}
}

func TestAddToArenaNoOps(t *testing.T) {
	a := New("lonely", 2)
	if ok, err := a.AddToArena(); ok || err != nil {
		t.Errorf("unbound actor: expected false, nil, got %v %v", ok, err)
	}
	if a.RemoveFromArena() {
		t.Error("remove of unregistered actor should report false")
	}

	h := newHost(t, 4)
	a.SetHost(h)
	a.AddToArena()
	if ok, err := a.AddToArena(); ok || err != nil {
		t.Errorf("second add: expected false, nil, got %v %v", ok, err)
	}
}

func TestPushTransformsIntoArena(t *testing.T) {
	h := newHost(t, 4)
	a := New("rope", 2)
	a.Transform = dynamo.Transform{Position: r3.Vec{X: 1}, Scale: 2}
	a.Positions[1] = r3.Vec{Y: 1}
	a.Velocities[1] = r3.Vec{Z: 1}
	a.InvMasses[0] = 0
	a.SetHost(h)

	before := a.ParticlePosition(1)
	a.AddToArena()

	f := h.ar.Fields()
	s := a.Slot(1)
	if !near(f.Positions[s], r3.Vec{X: 1, Y: 2}) {
		t.Errorf("unexpected arena position %v", f.Positions[s])
	}
	if !near(f.Velocities[s], r3.Vec{Z: 2}) {
		t.Errorf("velocity should be rotated and scaled only, got %v", f.Velocities[s])
	}
	if f.InvMasses[a.Slot(0)] != 0 || f.InvMasses[s] != 1 {
		t.Error("inverse masses not pushed")
	}
	if !near(a.ParticlePosition(1), before) {
		t.Errorf("position query should agree in and out of arena: %v vs %v", a.ParticlePosition(1), before)
	}
}

func TestPullFields(t *testing.T) {
	h := newHost(t, 4)
	a := New("rope", 1)
	a.Transform = dynamo.Translation(r3.Vec{Y: 10})
	a.SetHost(h)
	a.AddToArena()

	f := h.ar.Fields()
	f.Positions[a.Slot(0)] = r3.Vec{X: 3, Y: 12}
	f.SolidRadii[a.Slot(0)] = 0.7

	a.PullFields(Velocities)
	if a.Positions[0] != (r3.Vec{}) {
		t.Error("unmasked field should not be pulled")
	}

	a.PullFields(Positions | SolidRadii)
	if !near(a.Positions[0], r3.Vec{X: 3, Y: 2}) {
		t.Errorf("expected local (3,2,0), got %v", a.Positions[0])
	}
	if a.SolidRadii[0] != 0.7 {
		t.Errorf("expected radius 0.7, got %f", a.SolidRadii[0])
	}
}

func TestInactiveLocalParticles(t *testing.T) {
	h := newHost(t, 4)
	a := New("pooled", 3)
	a.Active[2] = false
	a.SetHost(h)
	a.AddToArena()

	if !h.ar.IsAllocated(a.Slot(2)) || h.ar.IsActive(a.Slot(2)) {
		t.Error("pooled particle should be allocated but inactive")
	}
	if len(h.k.ActiveParticles) != 2 {
		t.Errorf("kernel should see 2 active, got %d", len(h.k.ActiveParticles))
	}
}

func TestIgnoredCollisions(t *testing.T) {
	h := newHost(t, 8)
	filler := New("filler", 2)
	filler.SetHost(h)
	filler.AddToArena()

	a := New("rope", 3)
	a.Ignored[1] = []int{0, 2}
	a.SetHost(h)
	a.AddToArena()

	got := h.k.Ignored[a.Slot(1)]
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("expected ignores [2 4], got %v", got)
	}

	a.RemoveFromArena()
	if len(h.k.Ignored) != 0 {
		t.Errorf("ignores should be cleared, got %v", h.k.Ignored)
	}
}

func TestOnStepBeginDrivesFixedParticles(t *testing.T) {
	h := newHost(t, 4)
	a := New("rope", 2)
	a.InvMasses[0] = 0
	a.Positions[0] = r3.Vec{X: 1}
	a.Positions[1] = r3.Vec{X: 2}
	a.SetHost(h)
	a.AddToArena()

	f := h.ar.Fields()
	f.Positions[a.Slot(1)] = r3.Vec{X: 9}
	a.Transform = dynamo.Translation(r3.Vec{Y: 5})
	a.OnStepBegin(0.01)

	if !near(f.Positions[a.Slot(0)], r3.Vec{X: 1, Y: 5}) {
		t.Errorf("fixed particle should follow transform, got %v", f.Positions[a.Slot(0)])
	}
	if !near(f.Positions[a.Slot(1)], r3.Vec{X: 9}) {
		t.Errorf("free particle should be left to the kernel, got %v", f.Positions[a.Slot(1)])
	}
}

func TestSetEnabled(t *testing.T) {
	h := newHost(t, 4)
	a := New("rope", 3)
	a.Active[2] = false
	a.SetHost(h)
	a.AddToArena()

	f := h.ar.Fields()
	f.Positions[a.Slot(0)] = r3.Vec{Z: 4}

	a.SetEnabled(false)
	if len(h.k.ActiveParticles) != 0 {
		t.Errorf("disabled actor should publish no active particles, got %v", h.k.ActiveParticles)
	}
	if !near(a.Positions[0], r3.Vec{Z: 4}) {
		t.Error("disable should pull positions")
	}

	a.Transform = dynamo.Translation(r3.Vec{X: 1})
	a.OnStepBegin(0.01)
	if !near(f.Positions[a.Slot(1)], r3.Vec{X: 1}) {
		t.Errorf("disabled actor should be driven kinematically, got %v", f.Positions[a.Slot(1)])
	}

	a.SetEnabled(true)
	if !h.ar.IsActive(a.Slot(0)) || !h.ar.IsActive(a.Slot(1)) || h.ar.IsActive(a.Slot(2)) {
		t.Error("enable should restore local active flags")
	}
}

func TestRemovalRenumbersSuccessors(t *testing.T) {
	h := newHost(t, 12)
	actors := []*Actor{New("a", 2), New("b", 2), New("c", 2)}
	for _, a := range actors {
		a.SetHost(h)
		a.AddToArena()
	}

	actors[1].RemoveFromArena()
	if actors[0].ActorID() != 0 || actors[2].ActorID() != 1 {
		t.Errorf("expected ids 0 and 1, got %d and %d", actors[0].ActorID(), actors[2].ActorID())
	}
	if actors[1].ActorID() != -1 {
		t.Error("removed actor should have no id")
	}

	actors[1].AddToArena()
	if actors[1].ActorID() != 2 {
		t.Errorf("re-added actor should append, got id %d", actors[1].ActorID())
	}
}

func TestResizeRefusedInArena(t *testing.T) {
	h := newHost(t, 8)
	a := New("rope", 2)
	a.Positions[1] = r3.Vec{X: 5}
	a.SetHost(h)
	a.AddToArena()

	if err := a.Resize(4); !errors.Is(err, ErrInArena) {
		t.Errorf("expected ErrInArena, got %v", err)
	}

	a.RemoveFromArena()
	if err := a.Resize(4); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if a.ParticleCount() != 4 || a.Positions[1].X != 5 || a.InvMasses[3] != 1 {
		t.Error("resize should keep data and default new particles")
	}
}

func TestCallbacks(t *testing.T) {
	h := newHost(t, 4)
	a := New("rope", 1)
	a.SetHost(h)

	var events []string
	a.OnAdded(func(*Actor) { events = append(events, "added1") })
	a.OnAdded(func(*Actor) { events = append(events, "added2") })
	a.OnRemoved(func(x *Actor) {
		if x.InArena() {
			t.Error("removed callback should run after leaving")
		}
		events = append(events, "removed")
	})

	a.AddToArena()
	a.RemoveFromArena()

	want := []string{"added1", "added2", "removed"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("expected %v, got %v", want, events)
		}
	}
}

func TestGroupRejectionRollsBack(t *testing.T) {
	h := newHost(t, 4)
	a := New("rope", 2)
	d := constraint.NewDistance()
	d.AddConstraint(0, 5, 1, 1, 1)
	if err := a.AddGroup(d); err != nil {
		t.Fatal(err)
	}
	if err := a.AddGroup(constraint.NewDistance()); !errors.Is(err, ErrDuplicateGroup) {
		t.Errorf("expected ErrDuplicateGroup, got %v", err)
	}

	var added bool
	a.OnAdded(func(*Actor) { added = true })
	a.SetHost(h)

	ok, err := a.AddToArena()
	if ok || !errors.Is(err, constraint.ErrIndexOutOfRange) {
		t.Fatalf("expected index error, got %v %v", ok, err)
	}
	if a.InArena() || h.Len() != 0 || h.ar.FreeCount() != 4 || added {
		t.Error("failed add must leave no state behind")
	}
}

func TestGroupsFollowActor(t *testing.T) {
	h := newHost(t, 8)
	a := New("rope", 3)
	d := constraint.NewDistance()
	d.AddConstraint(0, 1, 1, 1, 1)
	d.AddConstraint(1, 2, 1, 1, 1)
	a.AddGroup(d)
	a.SetHost(h)
	a.AddToArena()

	if !d.Registered() || h.k.ConstraintCount(kernel.Distance) != 2 {
		t.Fatal("group should register with the actor")
	}

	b := constraint.NewBending()
	b.AddConstraint(0, 2, 1, 0, 0, 1)
	if err := a.AddGroup(b); err != nil {
		t.Fatal(err)
	}
	if !b.Registered() {
		t.Error("group attached in arena should register immediately")
	}

	a.RemoveFromArena()
	if d.Registered() || b.Registered() || h.k.ConstraintCount(kernel.Distance) != 0 {
		t.Error("groups should leave with the actor")
	}

	if err := a.RemoveGroup(kernel.Bending); err != nil || a.Group(kernel.Bending) != nil {
		t.Error("expected bending group detached")
	}
	if len(a.Groups()) != 1 {
		t.Errorf("expected 1 group, got %d", len(a.Groups()))
	}
}

func TestUpdatePhases(t *testing.T) {
	h := newHost(t, 4)
	a := New("rope", 2)
	a.SetHost(h)
	a.AddToArena()
	a.UpdatePhases(3, true)

	p := h.ar.Fields().Phases[a.Slot(1)]
	if dynamo.PhaseGroup(p) != 3 || !dynamo.PhaseHas(p, dynamo.PhaseSelfCollide) {
		t.Errorf("unexpected phase %x", p)
	}
}

func TestDataMaskString(t *testing.T) {
	tests := []struct {
		mask DataMask
		want string
	}{
		{0, "none"},
		{Positions, "positions"},
		{Positions | InvMasses, "positions|inv_masses"},
	}
	for _, tt := range tests {
		if got := tt.mask.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
