package constraint_test

import (
	"sort"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/constraint"
	"github.com/san-kum/pbdsim/internal/kernel"
	"github.com/san-kum/pbdsim/internal/kernel/kerneltest"
)

type fakeOwner struct {
	name    string
	id      int
	inArena bool
	slots   []int
	reg     *fakeRegistry
	groups  map[kernel.ConstraintType]constraint.Group
}

func (o *fakeOwner) Name() string                  { return o.name }
func (o *fakeOwner) ActorID() int                  { return o.id }
func (o *fakeOwner) InArena() bool                 { return o.inArena }
func (o *fakeOwner) ParticleCount() int            { return len(o.slots) }
func (o *fakeOwner) Slot(local int) int            { return o.slots[local] }
func (o *fakeOwner) Kernel() kernel.Kernel         { return o.reg.k }
func (o *fakeOwner) Registry() constraint.Registry { return o.reg }

type fakeRegistry struct {
	k      *kerneltest.Recorder
	owners []*fakeOwner
}

func (r *fakeRegistry) Len() int { return len(r.owners) }

func (r *fakeRegistry) Group(id int, t kernel.ConstraintType) constraint.Group {
	return r.owners[id].groups[t]
}

func (r *fakeRegistry) newOwner(name string, slots ...int) *fakeOwner {
	return &fakeOwner{name: name, slots: slots, reg: r, groups: map[kernel.ConstraintType]constraint.Group{}}
}

func (r *fakeRegistry) attach(o *fakeOwner, g constraint.Group) {
	g.Bind(o)
	o.groups[g.Type()] = g
}

func (r *fakeRegistry) enter(o *fakeOwner) {
	o.id = len(r.owners)
	o.inArena = true
	r.owners = append(r.owners, o)
	for _, t := range kernel.Types() {
		if g := o.groups[t]; g != nil {
			Expect(g.AddToArena()).To(Succeed())
		}
	}
}

func (r *fakeRegistry) leave(o *fakeOwner) {
	for _, g := range o.groups {
		Expect(g.RemoveFromArena()).To(Succeed())
	}
	r.owners = append(r.owners[:o.id], r.owners[o.id+1:]...)
	for i := o.id; i < len(r.owners); i++ {
		r.owners[i].id = i
	}
	o.inArena = false
}

// expectPartition checks that registered windows tile the kernel array and
// that each window holds its own group's translated records.
func (r *fakeRegistry) expectPartition() {
	for _, t := range kernel.Types() {
		var groups []constraint.Group
		for _, o := range r.owners {
			if g := o.groups[t]; g != nil && g.Registered() {
				groups = append(groups, g)
			}
		}
		sort.Slice(groups, func(i, j int) bool {
			return groups[i].Owner().ActorID() < groups[j].Owner().ActorID()
		})

		next := 0
		for _, g := range groups {
			Expect(g.Offset()).To(Equal(next), "type %s actor %s", t, g.Owner().Name())
			Expect(g.ComputeOffset()).To(Equal(g.Offset()))
			recs := r.k.Records(t)
			for i := 0; i < g.Count(); i++ {
				want := g.Particles(i)
				for j, p := range want {
					want[j] = g.Owner().Slot(p)
				}
				Expect(recs[g.Offset()+i].Particles).To(Equal(want))
			}
			next += g.Count()
		}
		Expect(r.k.ConstraintCount(t)).To(Equal(next), "type %s total", t)
	}
}

func distances(n int) *constraint.Distance {
	g := constraint.NewDistance()
	for i := 0; i < n; i++ {
		Expect(g.AddConstraint(i, i+1, 1, 1, 1)).To(Succeed())
	}
	return g
}

var _ = Describe("Group offsets", func() {
	var (
		reg     *fakeRegistry
		a, b, c *fakeOwner
	)

	BeforeEach(func() {
		reg = &fakeRegistry{k: kerneltest.New()}
		a = reg.newOwner("A", 0, 1, 2, 3)
		b = reg.newOwner("B", 4, 5, 6, 7, 8, 9)
		c = reg.newOwner("C", 10, 11, 12)
		reg.attach(a, distances(3))
		reg.attach(b, distances(5))
		reg.attach(c, distances(2))
	})

	It("places groups in actor order", func() {
		reg.enter(a)
		reg.enter(b)
		reg.enter(c)

		Expect(a.groups[kernel.Distance].Offset()).To(Equal(0))
		Expect(b.groups[kernel.Distance].Offset()).To(Equal(3))
		Expect(c.groups[kernel.Distance].Offset()).To(Equal(8))
		reg.expectPartition()
	})

	It("closes the gap when a middle actor leaves and appends on re-entry", func() {
		reg.enter(a)
		reg.enter(b)
		reg.enter(c)

		reg.leave(b)
		Expect(c.id).To(Equal(1))
		Expect(c.groups[kernel.Distance].Offset()).To(Equal(3))
		reg.expectPartition()

		reg.enter(b)
		Expect(b.groups[kernel.Distance].Offset()).To(Equal(5))
		reg.expectPartition()
	})

	It("keeps independent numbering per type", func() {
		bend := constraint.NewBending()
		Expect(bend.AddConstraint(0, 2, 1, 0, 0, 1)).To(Succeed())
		reg.attach(b, bend)

		reg.enter(a)
		reg.enter(b)
		reg.enter(c)

		Expect(bend.Offset()).To(Equal(0))
		Expect(reg.k.ConstraintCount(kernel.Bending)).To(Equal(1))
		reg.expectPartition()
	})

	It("treats empty groups as zero width", func() {
		reg.attach(b, constraint.NewDistance())
		reg.enter(a)
		reg.enter(b)
		reg.enter(c)

		Expect(b.groups[kernel.Distance].Offset()).To(Equal(3))
		Expect(c.groups[kernel.Distance].Offset()).To(Equal(3))
		reg.expectPartition()
	})

	It("holds the partition across arbitrary add and remove orders", func() {
		owners := []*fakeOwner{a, b, c}
		sequence := []struct {
			owner int
			enter bool
		}{
			{0, true}, {2, true}, {1, true}, {0, false}, {1, false},
			{0, true}, {2, false}, {1, true}, {2, true}, {0, false},
			{1, false}, {2, false},
		}
		for _, step := range sequence {
			if step.enter {
				reg.enter(owners[step.owner])
			} else {
				reg.leave(owners[step.owner])
			}
			reg.expectPartition()
		}
		Expect(reg.k.ConstraintCount(kernel.Distance)).To(BeZero())
	})

	It("shifts successors when a group joins mid-registry", func() {
		reg.enter(a)
		reg.enter(b)
		reg.enter(c)

		g := b.groups[kernel.Distance]
		Expect(g.RemoveFromArena()).To(Succeed())
		Expect(c.groups[kernel.Distance].Offset()).To(Equal(3))

		Expect(g.AddToArena()).To(Succeed())
		Expect(g.Offset()).To(Equal(3))
		Expect(c.groups[kernel.Distance].Offset()).To(Equal(8))
		reg.expectPartition()
	})
})

var _ = Describe("Group topology", func() {
	var (
		reg *fakeRegistry
		o   *fakeOwner
		g   *constraint.Distance
	)

	BeforeEach(func() {
		reg = &fakeRegistry{k: kerneltest.New()}
		o = reg.newOwner("rope", 5, 6, 7)
		g = distances(2)
		reg.attach(o, g)
	})

	It("refuses mutation while registered", func() {
		reg.enter(o)

		Expect(g.AddConstraint(0, 2, 1, 1, 1)).To(MatchError(constraint.ErrRegistered))
		Expect(g.RemoveConstraint(0)).To(MatchError(constraint.ErrRegistered))
		Expect(g.Initialize()).To(MatchError(constraint.ErrRegistered))
		Expect(g.Count()).To(Equal(2))
		Expect(reg.k.ConstraintCount(kernel.Distance)).To(Equal(2))
	})

	It("allows mutation after removal", func() {
		reg.enter(o)
		reg.leave(o)

		Expect(g.RemoveConstraint(0)).To(Succeed())
		Expect(g.Particles(0)).To(Equal([]int{1, 2}))
		Expect(g.Initialize()).To(Succeed())
		Expect(g.Count()).To(BeZero())
	})

	It("requires the owner in the arena", func() {
		Expect(g.AddToArena()).To(MatchError(constraint.ErrActorNotInArena))
		Expect(g.Registered()).To(BeFalse())
	})

	It("refuses double registration", func() {
		reg.enter(o)
		Expect(g.AddToArena()).To(MatchError(constraint.ErrAlreadyRegistered))
	})

	It("rejects out-of-range references without touching the kernel", func() {
		Expect(g.AddConstraint(2, 3, 1, 1, 1)).To(Succeed())
		o.id = 0
		o.inArena = true
		reg.owners = append(reg.owners, o)

		Expect(g.AddToArena()).To(MatchError(constraint.ErrIndexOutOfRange))
		Expect(g.Registered()).To(BeFalse())
		Expect(reg.k.ConstraintCount(kernel.Distance)).To(BeZero())
	})

	It("rejects negative particle indices", func() {
		Expect(g.AddConstraint(-1, 0, 1, 1, 1)).To(MatchError(constraint.ErrIndexOutOfRange))
		Expect(g.Count()).To(Equal(2))
	})

	It("translates local indices to slots", func() {
		reg.enter(o)
		recs := reg.k.Records(kernel.Distance)
		Expect(recs[0].Particles).To(Equal([]int{5, 6}))
		Expect(recs[1].Particles).To(Equal([]int{6, 7}))
	})

	It("finds constraints by particle", func() {
		Expect(g.ConstraintsInvolvingParticle(1)).To(Equal([]int{0, 1}))
		Expect(g.ConstraintsInvolvingParticle(2)).To(Equal([]int{1}))
		Expect(g.ConstraintsInvolvingParticle(9)).To(BeEmpty())
	})
})

var _ = Describe("Group activation", func() {
	var (
		reg  *fakeRegistry
		a, b *fakeOwner
		ga   *constraint.Distance
	)

	BeforeEach(func() {
		reg = &fakeRegistry{k: kerneltest.New()}
		a = reg.newOwner("A", 0, 1, 2, 3)
		b = reg.newOwner("B", 4, 5, 6)
		ga = distances(3)
		reg.attach(a, ga)
		reg.attach(b, distances(2))
	})

	It("deactivates the whole window of a disabled group", func() {
		ga.SetEnabled(false)
		reg.enter(a)
		reg.enter(b)

		for i := 0; i < 3; i++ {
			Expect(reg.k.Active(kernel.Distance, i)).To(BeFalse())
		}
		Expect(reg.k.Active(kernel.Distance, 3)).To(BeTrue())

		ga.SetEnabled(true)
		Expect(reg.k.Active(kernel.Distance, 0)).To(BeTrue())
	})

	It("honors per-constraint flags at the shifted offset", func() {
		reg.enter(a)
		reg.enter(b)
		gb := b.groups[kernel.Distance]

		Expect(gb.SetActive(1, false)).To(Succeed())
		Expect(reg.k.Active(kernel.Distance, 4)).To(BeFalse())
		Expect(reg.k.Active(kernel.Distance, 3)).To(BeTrue())
		Expect(gb.SetActive(7, false)).To(MatchError(constraint.ErrIndexOutOfRange))
	})
})

var _ = Describe("Group parameters", func() {
	It("pushes scaled parameters in place", func() {
		reg := &fakeRegistry{k: kerneltest.New()}
		o := reg.newOwner("rope", 0, 1, 2)

		d := distances(2)
		reg.attach(o, d)
		pin := constraint.NewPin()
		Expect(pin.AddConstraint(0, -1, r3.Vec{Y: 2}, 0.5)).To(Succeed())
		reg.attach(o, pin)
		chain := constraint.NewChain()
		Expect(chain.AddConstraint([]int{0, 1, 2}, 0.25)).To(Succeed())
		chain.Tightness = 0.5
		reg.attach(o, chain)
		reg.enter(o)

		d.Scale = 2
		Expect(d.PushData()).To(Succeed())

		Expect(reg.k.Records(kernel.Distance)[1].Params).To(Equal([]float64{2, 1, 1}))
		Expect(reg.k.Records(kernel.Pin)[0].Params).To(Equal([]float64{-1, 0, 2, 0, 0.5}))
		Expect(reg.k.Records(kernel.Chain)[0].Params).To(Equal([]float64{0.125, 0.25}))
		Expect(reg.k.Records(kernel.Chain)[0].Particles).To(Equal([]int{0, 1, 2}))
	})

	It("builds every kind by tag", func() {
		for _, t := range kernel.Types() {
			g, err := constraint.New(t)
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Type()).To(Equal(t))
			Expect(g.Enabled()).To(BeTrue())
		}
		_, err := constraint.New(kernel.ConstraintType(99))
		Expect(err).To(HaveOccurred())
	})
})
