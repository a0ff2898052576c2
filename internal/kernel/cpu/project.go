package cpu

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/kernel"
)

func (k *Kernel) project() {
	for _, t := range kernel.Types() {
		recs := k.Records(t)
		for idx, r := range recs {
			if !k.Active(t, idx) {
				continue
			}
			switch t {
			case kernel.Distance:
				k.projectDistance(r)
			case kernel.Bending:
				k.projectBending(r)
			case kernel.Tether:
				k.projectTether(r)
			case kernel.Pin:
				k.projectPin(r)
			case kernel.Chain:
				k.projectChain(r)
			}
		}
	}
}

func param(r kernel.Record, i int, def float64) float64 {
	if i < len(r.Params) {
		return r.Params[i]
	}
	return def
}

// solvePair moves i and j so their distance approaches rest.
func (k *Kernel) solvePair(i, j int, rest, stiffness float64) {
	wi, wj := k.weight(i), k.weight(j)
	w := wi + wj
	if w == 0 {
		return
	}
	d := r3.Sub(k.predicted[j], k.predicted[i])
	l := r3.Norm(d)
	if l == 0 {
		return
	}
	corr := r3.Scale(stiffness*(l-rest)/(l*w), d)
	k.predicted[i] = r3.Add(k.predicted[i], r3.Scale(wi, corr))
	k.predicted[j] = r3.Sub(k.predicted[j], r3.Scale(wj, corr))
}

func (k *Kernel) projectDistance(r kernel.Record) {
	if len(r.Particles) < 2 {
		return
	}
	i, j := r.Particles[0], r.Particles[1]
	rest := param(r, 0, 0)
	l := r3.Norm(r3.Sub(k.predicted[j], k.predicted[i]))
	stiffness := param(r, 1, 1)
	if l < rest {
		stiffness = param(r, 2, 1)
	}
	k.solvePair(i, j, rest, stiffness)
}

func (k *Kernel) projectBending(r kernel.Record) {
	if len(r.Particles) < 3 {
		return
	}
	i, j, m := r.Particles[0], r.Particles[1], r.Particles[2]
	wi, wj, wm := k.weight(i), k.weight(j), k.weight(m)
	w := wi + wj + 2*wm
	if w == 0 {
		return
	}

	center := r3.Scale(1.0/3, r3.Add(r3.Add(k.predicted[i], k.predicted[j]), k.predicted[m]))
	dir := r3.Sub(k.predicted[m], center)
	dist := r3.Norm(dir)
	limit := param(r, 0, 0) + param(r, 1, 0)
	if dist <= limit || dist == 0 {
		return
	}

	corr := r3.Scale(param(r, 2, 1)*(1-limit/dist), dir)
	k.predicted[i] = r3.Add(k.predicted[i], r3.Scale(2*wi/w, corr))
	k.predicted[j] = r3.Add(k.predicted[j], r3.Scale(2*wj/w, corr))
	k.predicted[m] = r3.Sub(k.predicted[m], r3.Scale(4*wm/w, corr))
}

func (k *Kernel) projectTether(r kernel.Record) {
	if len(r.Particles) < 2 {
		return
	}
	i, anchor := r.Particles[0], r.Particles[1]
	if k.weight(i) == 0 {
		return
	}
	maxLen := param(r, 0, 0) * param(r, 1, 1)
	d := r3.Sub(k.predicted[i], k.predicted[anchor])
	l := r3.Norm(d)
	if l <= maxLen || l == 0 {
		return
	}
	corr := r3.Scale(param(r, 2, 1)*(l-maxLen)/l, d)
	k.predicted[i] = r3.Sub(k.predicted[i], corr)
}

func (k *Kernel) projectPin(r kernel.Record) {
	if len(r.Particles) < 1 {
		return
	}
	i := r.Particles[0]
	if k.weight(i) == 0 {
		return
	}
	target := r3.Vec{X: param(r, 1, 0), Y: param(r, 2, 0), Z: param(r, 3, 0)}
	if body := int(param(r, 0, -1)); body >= 0 && body < len(k.predicted) {
		target = r3.Add(k.predicted[body], target)
	}
	delta := r3.Sub(target, k.predicted[i])
	k.predicted[i] = r3.Add(k.predicted[i], r3.Scale(param(r, 4, 1), delta))
}

func (k *Kernel) projectChain(r kernel.Record) {
	minLen, maxLen := param(r, 0, 0), param(r, 1, 0)
	for n := 0; n+1 < len(r.Particles); n++ {
		i, j := r.Particles[n], r.Particles[n+1]
		l := r3.Norm(r3.Sub(k.predicted[j], k.predicted[i]))
		switch {
		case l > maxLen:
			k.solvePair(i, j, maxLen, 1)
		case l < minLen:
			k.solvePair(i, j, minLen, 1)
		}
	}
}

// applyAerodynamics adds a drag impulse opposing motion relative to the wind
// and a lift impulse perpendicular to it.
func (k *Kernel) applyAerodynamics(dt float64) {
	f := k.fields
	for idx, r := range k.Records(kernel.Aerodynamic) {
		if !k.Active(kernel.Aerodynamic, idx) || len(r.Particles) < 1 {
			continue
		}
		i := r.Particles[0]
		w := k.weight(i)
		if w == 0 {
			continue
		}
		area, drag, lift := param(r, 0, 0), param(r, 1, 0), param(r, 2, 0)
		wind := r3.Vec{X: param(r, 3, 0), Y: param(r, 4, 0), Z: param(r, 5, 0)}
		density := param(r, 6, 1.225)

		rel := r3.Sub(wind, f.Velocities[i])
		speed := r3.Norm(rel)
		if speed == 0 {
			continue
		}
		q := 0.5 * density * area * speed
		force := r3.Scale(q*drag, rel)
		if lift != 0 {
			side := r3.Cross(rel, r3.Vec{Y: 1})
			if n := r3.Norm(side); n > 0 {
				force = r3.Add(force, r3.Scale(q*lift*speed/n, side))
			}
		}
		f.Velocities[i] = r3.Add(f.Velocities[i], r3.Scale(w*dt, force))
	}
}
