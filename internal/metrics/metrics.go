// Package metrics holds per-step observers of the arena.
package metrics

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/sim"
)

var constructors = map[string]func(gravity r3.Vec) sim.Metric{
	"energy":           func(g r3.Vec) sim.Metric { return NewEnergy(g) },
	"energy_drift":     func(g r3.Vec) sim.Metric { return NewEnergyDrift(g) },
	"kinetic_energy":   func(r3.Vec) sim.Metric { return NewKineticEnergy() },
	"stability":        func(r3.Vec) sim.Metric { return NewStability(DefaultStabilityBound) },
	"max_speed":        func(r3.Vec) sim.Metric { return NewMaxSpeed() },
	"active_particles": func(r3.Vec) sim.Metric { return NewActiveParticles() },
}

// DefaultStabilityBound is the distance from the origin past which a
// particle counts as escaped.
const DefaultStabilityBound = 1e3

func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func New(name string, gravity r3.Vec) (sim.Metric, error) {
	c, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return c(gravity), nil
}
