package sim_test

import (
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pbdsim/internal/actor"
	"github.com/san-kum/pbdsim/internal/constraint"
	"github.com/san-kum/pbdsim/internal/kernel"
	"github.com/san-kum/pbdsim/internal/kernel/kerneltest"
	"github.com/san-kum/pbdsim/internal/sim"
)

// chainActor has n particles, n-1 distance constraints and, when bend is
// set, n-2 bending constraints.
func chainActor(name string, n int, bend bool) *actor.Actor {
	a := actor.New(name, n)
	d := constraint.NewDistance()
	for i := 0; i+1 < n; i++ {
		Expect(d.AddConstraint(i, i+1, 1, 1, 1)).To(Succeed())
	}
	Expect(a.AddGroup(d)).To(Succeed())
	if bend {
		b := constraint.NewBending()
		for i := 1; i+1 < n; i++ {
			Expect(b.AddConstraint(i-1, i+1, i, 0, 0, 1)).To(Succeed())
		}
		Expect(a.AddGroup(b)).To(Succeed())
	}
	return a
}

func expectConsistent(d *sim.Driver, k *kerneltest.Recorder) {
	for id := 0; id < d.Len(); id++ {
		Expect(d.Client(id).Base().ActorID()).To(Equal(id))
	}
	for _, t := range kernel.Types() {
		next := 0
		for id := 0; id < d.Len(); id++ {
			g := d.Group(id, t)
			if g == nil || !g.Registered() {
				continue
			}
			Expect(g.Offset()).To(Equal(next), "type %s actor %d", t, id)
			owner := g.Owner()
			recs := k.Records(t)
			for i := 0; i < g.Count(); i++ {
				want := g.Particles(i)
				for j, p := range want {
					want[j] = owner.Slot(p)
				}
				Expect(recs[g.Offset()+i].Particles).To(Equal(want))
			}
			next += g.Count()
		}
		Expect(k.ConstraintCount(t)).To(Equal(next), "type %s", t)
	}
}

var _ = Describe("Driver registry", func() {
	var (
		d *sim.Driver
		k *kerneltest.Recorder
	)

	BeforeEach(func() {
		k = kerneltest.New()
		var err error
		d, err = sim.New(64, k)
		Expect(err).NotTo(HaveOccurred())
	})

	It("lays out distance constraints A=0, B=3, C=8 and re-appends B", func() {
		a, b, c := chainActor("A", 4, false), chainActor("B", 6, false), chainActor("C", 3, false)
		for _, x := range []*actor.Actor{a, b, c} {
			x.SetHost(d)
			ok, err := x.AddToArena()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		}

		Expect(a.Group(kernel.Distance).Offset()).To(Equal(0))
		Expect(b.Group(kernel.Distance).Offset()).To(Equal(3))
		Expect(c.Group(kernel.Distance).Offset()).To(Equal(8))

		Expect(b.RemoveFromArena()).To(BeTrue())
		Expect(c.ActorID()).To(Equal(1))
		Expect(c.Group(kernel.Distance).Offset()).To(Equal(3))
		expectConsistent(d, k)

		_, err := b.AddToArena()
		Expect(err).NotTo(HaveOccurred())
		Expect(b.ActorID()).To(Equal(2))
		Expect(b.Group(kernel.Distance).Offset()).To(Equal(5))
		expectConsistent(d, k)
	})

	It("keeps every type partitioned through random add and remove sequences", func() {
		rng := rand.New(rand.NewSource(7))
		var actors []*actor.Actor
		for i := 0; i < 6; i++ {
			a := chainActor(fmt.Sprintf("actor%d", i), 2+rng.Intn(6), i%2 == 0)
			a.SetHost(d)
			actors = append(actors, a)
		}

		for step := 0; step < 200; step++ {
			a := actors[rng.Intn(len(actors))]
			if a.InArena() {
				Expect(a.RemoveFromArena()).To(BeTrue())
			} else {
				ok, err := a.AddToArena()
				Expect(err).NotTo(HaveOccurred())
				Expect(ok).To(BeTrue())
			}
			expectConsistent(d, k)
		}
	})

	It("never shares slots between live actors", func() {
		a, b := chainActor("A", 5, false), chainActor("B", 7, false)
		a.SetHost(d)
		b.SetHost(d)
		a.AddToArena()
		b.AddToArena()

		seen := map[int]string{}
		for _, x := range []*actor.Actor{a, b} {
			for _, s := range x.Slots() {
				Expect(seen).NotTo(HaveKey(s))
				seen[s] = x.Name()
			}
		}
	})

	It("moves groups between drivers", func() {
		other, err := sim.New(16, kerneltest.New())
		Expect(err).NotTo(HaveOccurred())

		a := chainActor("A", 4, true)
		a.SetHost(d)
		a.AddToArena()
		Expect(d.Len()).To(Equal(1))

		a.SetHost(other)
		Expect(d.Len()).To(BeZero())
		Expect(k.ConstraintCount(kernel.Distance)).To(BeZero())

		ok, err := a.AddToArena()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(other.Len()).To(Equal(1))
	})
})
