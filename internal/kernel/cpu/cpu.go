// Package cpu is a small position-based dynamics kernel used by the CLI and
// integration tests. It predicts positions under gravity, projects the
// active constraints a fixed number of times and derives velocities from
// the positional change.
package cpu

import (
	"math"
	"sort"

	"github.com/san-kum/pbdsim/internal/dynamo"
	"github.com/san-kum/pbdsim/internal/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

type Options struct {
	Gravity     r3.Vec
	Damping     float64
	Iterations  int
	Interpolate bool
}

func DefaultOptions() Options {
	return Options{
		Gravity:     r3.Vec{Y: -9.81},
		Damping:     0.1,
		Iterations:  8,
		Interpolate: true,
	}
}

type Kernel struct {
	*kernel.Table

	opts    Options
	fields  *kernel.Fields
	active  []int
	mask    []bool
	ignored map[int][]int

	prev      []r3.Vec
	predicted []r3.Vec
	render    []r3.Vec

	integrations int
}

var _ kernel.Kernel = (*Kernel)(nil)

func New(opts Options) *Kernel {
	if opts.Iterations < 1 {
		opts.Iterations = 1
	}
	return &Kernel{
		Table:   kernel.NewTable(),
		opts:    opts,
		ignored: make(map[int][]int),
	}
}

func (k *Kernel) Options() Options { return k.opts }

// Integrations is the number of completed Integrate calls.
func (k *Kernel) Integrations() int { return k.integrations }

func (k *Kernel) Bind(f *kernel.Fields) {
	k.fields = f
	n := f.Capacity()
	k.mask = make([]bool, n)
	k.prev = make([]r3.Vec, n)
	k.predicted = make([]r3.Vec, n)
	k.render = make([]r3.Vec, n)
	copy(k.prev, f.Positions)
	copy(k.render, f.Positions)
	k.active = k.active[:0]
}

func (k *Kernel) SetActiveParticles(indices []int) {
	for _, i := range k.active {
		k.mask[i] = false
	}
	k.active = append(k.active[:0], indices...)
	sort.Ints(k.active)
	for _, i := range k.active {
		if i >= 0 && i < len(k.mask) {
			k.mask[i] = true
		}
	}
}

func (k *Kernel) SetIgnoredParticles(particle int, ignored []int) {
	if len(ignored) == 0 {
		delete(k.ignored, particle)
		return
	}
	k.ignored[particle] = append([]int(nil), ignored...)
}

// Ignored returns the collision-ignore list registered for a slot.
func (k *Kernel) Ignored(particle int) []int { return k.ignored[particle] }

func (k *Kernel) weight(i int) float64 {
	if i < 0 || i >= len(k.mask) || !k.mask[i] {
		return 0
	}
	return k.fields.InvMasses[i]
}

func (k *Kernel) Integrate(dt float64) {
	if k.fields == nil || dt <= 0 {
		return
	}
	f := k.fields

	for _, i := range k.active {
		k.prev[i] = f.Positions[i]
	}

	k.applyAerodynamics(dt)

	damp := math.Max(0, 1-k.opts.Damping*dt)
	gravity := r3.Scale(dt, k.opts.Gravity)
	dynamo.ParallelFor(len(k.active), 256, func(start, end int) {
		for _, i := range k.active[start:end] {
			if f.InvMasses[i] == 0 {
				k.predicted[i] = f.Positions[i]
				continue
			}
			v := r3.Scale(damp, r3.Add(f.Velocities[i], gravity))
			f.Velocities[i] = v
			k.predicted[i] = r3.Add(f.Positions[i], r3.Scale(dt, v))
		}
	})

	for it := 0; it < k.opts.Iterations; it++ {
		k.project()
	}

	for _, i := range k.active {
		if f.InvMasses[i] != 0 {
			f.Velocities[i] = r3.Scale(1/dt, r3.Sub(k.predicted[i], f.Positions[i]))
		}
		f.Positions[i] = k.predicted[i]
	}
	k.integrations++
}

func (k *Kernel) Interpolate(alpha float64) {
	if k.fields == nil {
		return
	}
	alpha = math.Max(0, math.Min(1, alpha))
	pos := k.fields.Positions
	if !k.opts.Interpolate || k.integrations == 0 {
		copy(k.render, pos)
		return
	}
	for i := range pos {
		if k.mask[i] {
			k.render[i] = dynamo.Lerp(k.prev[i], pos[i], alpha)
		} else {
			k.render[i] = pos[i]
		}
	}
}

func (k *Kernel) RenderablePositions(dst []r3.Vec) {
	copy(dst, k.render)
}
