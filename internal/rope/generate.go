package rope

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/dynamo"
)

type Stage int

const (
	StageParticles Stage = iota
	StageDistance
	StageChain
	StageBending
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageParticles:
		return "generating particles"
	case StageDistance:
		return "generating structural constraints"
	case StageChain:
		return "generating chain constraint"
	case StageBending:
		return "adding bend constraints"
	case StageDone:
		return "done"
	}
	return "unknown"
}

type Progress struct {
	Stage    Stage
	Fraction float64
}

const (
	particleBatch   = 100
	constraintBatch = 500
)

// Generator rebuilds a rope's particles and constraints in batches. Each
// call to Next does one batch; the rope is usable once Next returns false
// with a nil Err.
type Generator struct {
	rope *Rope
	path Path

	started bool
	stage   Stage
	i       int
	total   int

	progress Progress
	err      error
}

// Generate returns a generator that rebuilds the rope along path, given in
// the rope's local space.
func (r *Rope) Generate(path Path) *Generator {
	return &Generator{rope: r, path: path}
}

func (g *Generator) Progress() Progress { return g.progress }
func (g *Generator) Err() error         { return g.err }

func (g *Generator) report(stage Stage, done, of int) {
	frac := 1.0
	if of > 0 {
		frac = float64(done) / float64(of)
	}
	g.progress = Progress{Stage: stage, Fraction: frac}
}

// Next advances one batch and reports whether more work remains.
func (g *Generator) Next() bool {
	if g.err != nil || g.stage == StageDone {
		return false
	}
	if !g.started {
		if g.err = g.start(); g.err != nil {
			return false
		}
		g.started = true
	}

	r := g.rope
	n := r.used
	switch g.stage {
	case StageParticles:
		end := min(g.i+particleBatch, g.total)
		for ; g.i < end; g.i++ {
			g.particle(g.i)
		}
		g.report(StageParticles, g.i, g.total)
		if g.i == g.total {
			g.stage, g.i = StageDistance, 0
		}

	case StageDistance:
		count := n - 1
		if r.closed {
			count = n
		}
		end := min(g.i+constraintBatch, count)
		for ; g.i < end; g.i++ {
			next := (g.i + 1) % n
			if g.err = r.Distance.AddConstraint(g.i, next, r.particleDistance, 1, 1); g.err != nil {
				return false
			}
		}
		g.report(StageDistance, g.i, count)
		if g.i == count {
			g.stage, g.i = StageChain, 0
		}

	case StageChain:
		indices := make([]int, 0, n+1)
		for i := 0; i < n; i++ {
			indices = append(indices, i)
		}
		if r.closed {
			indices = append(indices, 0)
		}
		if g.err = r.Chain.AddConstraint(indices, r.particleDistance); g.err != nil {
			return false
		}
		g.report(StageChain, 1, 1)
		g.stage = StageBending

	case StageBending:
		end := min(g.i+constraintBatch, n)
		for ; g.i < end; g.i++ {
			i := g.i
			if !r.closed && (i == 0 || i == n-1) {
				continue
			}
			prev := (i - 1 + n) % n
			next := (i + 1) % n
			if g.err = r.Bending.AddConstraint(prev, next, i, 0, 0, 1); g.err != nil {
				return false
			}
		}
		g.report(StageBending, g.i, n)
		if g.i == n {
			g.err = g.finish()
			return false
		}
	}
	return true
}

func (g *Generator) start() error {
	r := g.rope
	if !(r.Thickness > 0) || !(r.Resolution > 0) {
		return fmt.Errorf("%w: thickness %f, resolution %f", dynamo.ErrParameterBounds, r.Thickness, r.Resolution)
	}
	length := g.path.Length()
	if !(length > 0) {
		return ErrInvalidPath
	}

	r.initialized = false
	r.RemoveFromArena()

	r.closed = g.path.Closed()
	r.restLength = length
	n := int(math.Ceil(length / r.Thickness * r.Resolution))
	if !r.closed {
		n++
	}
	minimum := 2
	if r.closed {
		minimum = 3
	}
	n = max(n, minimum)

	span := n - 1
	if r.closed {
		span = n
	}
	r.used = n
	r.particleDistance = length / float64(span)
	g.total = n + max(0, r.Pooled)

	if err := r.Resize(g.total); err != nil {
		return err
	}
	for _, grp := range r.Groups() {
		if err := grp.Initialize(); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) particle(i int) {
	r := g.rope
	var flags dynamo.PhaseFlag
	if r.SelfCollide {
		flags = dynamo.PhaseSelfCollide
	}

	used := i < r.used
	r.Active[i] = used
	r.InvMasses[i] = 1
	r.SolidRadii[i] = r.particleDistance * r.Resolution
	r.Phases[i] = dynamo.MakePhase(r.PhaseGroup, flags)
	prev, next := i-1, i+1
	if r.closed && used {
		prev, next = (i-1+r.used)%r.used, (i+1)%r.used
	}
	r.Ignored[i] = []int{prev, next}
	r.Velocities[i] = r3.Vec{}
	r.Vorticities[i] = r3.Vec{}
	if used {
		r.Positions[i] = g.path.PointAt(r.particleDistance * float64(i))
	} else {
		r.Positions[i] = r.Positions[r.used-1]
	}
}

func (g *Generator) finish() error {
	r := g.rope
	r.initialized = true
	g.stage = StageDone
	g.report(StageDone, 1, 1)
	if r.Host() == nil {
		return nil
	}
	_, err := r.AddToArena()
	return err
}

// Run drives the generator to completion, reporting progress after every
// batch. A canceled context leaves the rope ungenerated.
func (g *Generator) Run(ctx context.Context, fn func(Progress)) error {
	for {
		select {
		case <-ctx.Done():
			g.err = ctx.Err()
			return g.err
		default:
		}
		more := g.Next()
		if fn != nil && g.err == nil {
			fn(g.progress)
		}
		if !more {
			return g.err
		}
	}
}
