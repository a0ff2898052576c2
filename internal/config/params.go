package config

import (
	"fmt"
	"sort"
)

// param reads and writes one tunable value. Rope params apply to every rope.
type param struct {
	get func(*Config) float64
	set func(*Config, float64)
}

func ropeParam(field func(*RopeConfig) *float64) param {
	return param{
		get: func(c *Config) float64 {
			if len(c.Ropes) == 0 {
				return 0
			}
			return *field(&c.Ropes[0])
		},
		set: func(c *Config, v float64) {
			for i := range c.Ropes {
				*field(&c.Ropes[i]) = v
			}
		},
	}
}

var params = map[string]param{
	"fixed_dt": {
		func(c *Config) float64 { return c.Solver.FixedDt },
		func(c *Config, v float64) { c.Solver.FixedDt = v },
	},
	"frame_rate": {
		func(c *Config) float64 { return c.Solver.FrameRate },
		func(c *Config, v float64) { c.Solver.FrameRate = v },
	},
	"duration": {
		func(c *Config) float64 { return c.Solver.Duration },
		func(c *Config, v float64) { c.Solver.Duration = v },
	},
	"damping": {
		func(c *Config) float64 { return c.Solver.Damping },
		func(c *Config, v float64) { c.Solver.Damping = v },
	},
	"iterations": {
		func(c *Config) float64 { return float64(c.Solver.Iterations) },
		func(c *Config, v float64) { c.Solver.Iterations = int(v) },
	},
	"gravity": {
		func(c *Config) float64 { return c.Solver.Gravity[1] },
		func(c *Config, v float64) { c.Solver.Gravity[1] = v },
	},
	"wind_x": {
		func(c *Config) float64 { return c.Solver.Wind[0] },
		func(c *Config, v float64) { c.Solver.Wind[0] = v },
	},
	"wind_z": {
		func(c *Config) float64 { return c.Solver.Wind[2] },
		func(c *Config, v float64) { c.Solver.Wind[2] = v },
	},
	"thickness":  ropeParam(func(r *RopeConfig) *float64 { return &r.Thickness }),
	"resolution": ropeParam(func(r *RopeConfig) *float64 { return &r.Resolution }),
	"drag":       ropeParam(func(r *RopeConfig) *float64 { return &r.Drag }),
}

func ParamNames() []string {
	names := make([]string, 0, len(params))
	for n := range params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Param returns the current value of a named tunable.
func (c *Config) Param(name string) (float64, error) {
	p, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown param %q", ErrInvalidConfig, name)
	}
	return p.get(c), nil
}

// SetParam sets a named tunable. It does not validate the result.
func (c *Config) SetParam(name string, v float64) error {
	p, ok := params[name]
	if !ok {
		return fmt.Errorf("%w: unknown param %q", ErrInvalidConfig, name)
	}
	p.set(c, v)
	return nil
}

// SetParams applies every entry of values in name order.
func (c *Config) SetParams(values map[string]float64) error {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if err := c.SetParam(n, values[n]); err != nil {
			return err
		}
	}
	return nil
}
