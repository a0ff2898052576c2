package config

import (
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCapacity          = 1024
	DefaultFixedDt           = 1.0 / 60
	DefaultFrameRate         = 60.0
	DefaultMaxFrameDelta     = 1.0 / 3
	DefaultDuration          = 10.0
	DefaultDamping           = 0.1
	DefaultIterations        = 8
	DefaultReferenceInterval = 0.5
	DefaultThickness         = 0.05
	DefaultResolution        = 1.0
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Vec is a vector written as a three element YAML sequence.
type Vec [3]float64

func (v Vec) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

type Config struct {
	Solver  SolverConfig `yaml:"solver"`
	Cache   CacheConfig  `yaml:"cache"`
	Ropes   []RopeConfig `yaml:"ropes"`
	Metrics []string     `yaml:"metrics,omitempty"`
}

type SolverConfig struct {
	Capacity      int     `yaml:"capacity"`
	FixedDt       float64 `yaml:"fixed_dt"`
	FrameRate     float64 `yaml:"frame_rate"`
	MaxFrameDelta float64 `yaml:"max_frame_delta"`
	Duration      float64 `yaml:"duration"`
	Gravity       Vec     `yaml:"gravity"`
	Wind          Vec     `yaml:"wind"`
	Damping       float64 `yaml:"damping"`
	Iterations    int     `yaml:"iterations"`
	Interpolate   bool    `yaml:"interpolate"`
	Workers       int     `yaml:"workers,omitempty"`
}

type CacheConfig struct {
	ReferenceInterval float64 `yaml:"reference_interval"`
	FrameSkip         int     `yaml:"frame_skip"`
	Interpolate       bool    `yaml:"interpolate"`
	Loop              bool    `yaml:"loop"`
}

type RopeConfig struct {
	Name        string  `yaml:"name"`
	Points      []Vec   `yaml:"points"`
	Closed      bool    `yaml:"closed"`
	Thickness   float64 `yaml:"thickness"`
	Resolution  float64 `yaml:"resolution"`
	Pooled      int     `yaml:"pooled"`
	PinStart    bool    `yaml:"pin_start"`
	PinEnd      bool    `yaml:"pin_end"`
	Tethers     int     `yaml:"tethers"`
	Drag        float64 `yaml:"drag,omitempty"`
	SelfCollide bool    `yaml:"self_collide,omitempty"`
	Disabled    bool    `yaml:"disabled"`
}

func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Capacity:      DefaultCapacity,
			FixedDt:       DefaultFixedDt,
			FrameRate:     DefaultFrameRate,
			MaxFrameDelta: DefaultMaxFrameDelta,
			Duration:      DefaultDuration,
			Gravity:       Vec{0, -9.81, 0},
			Damping:       DefaultDamping,
			Iterations:    DefaultIterations,
			Interpolate:   true,
		},
		Cache: CacheConfig{
			ReferenceInterval: DefaultReferenceInterval,
			Interpolate:       true,
		},
	}
}

// DefaultRope fills zero-valued rope parameters.
func DefaultRope(r RopeConfig) RopeConfig {
	if r.Thickness == 0 {
		r.Thickness = DefaultThickness
	}
	if r.Resolution == 0 {
		r.Resolution = DefaultResolution
	}
	return r
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	for i := range cfg.Ropes {
		cfg.Ropes[i] = DefaultRope(cfg.Ropes[i])
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	s := c.Solver
	switch {
	case s.Capacity <= 0:
		return invalid("capacity must be positive, got %d", s.Capacity)
	case s.FixedDt <= 0:
		return invalid("fixed_dt must be positive, got %g", s.FixedDt)
	case s.FrameRate <= 0:
		return invalid("frame_rate must be positive, got %g", s.FrameRate)
	case s.MaxFrameDelta < 0:
		return invalid("max_frame_delta must not be negative, got %g", s.MaxFrameDelta)
	case s.Duration <= 0:
		return invalid("duration must be positive, got %g", s.Duration)
	case s.Iterations < 1:
		return invalid("iterations must be at least 1, got %d", s.Iterations)
	case s.Damping < 0 || s.Damping > 1:
		return invalid("damping must be in [0, 1], got %g", s.Damping)
	case c.Cache.ReferenceInterval <= 0:
		return invalid("reference_interval must be positive, got %g", c.Cache.ReferenceInterval)
	case c.Cache.FrameSkip < 0:
		return invalid("frame_skip must not be negative, got %d", c.Cache.FrameSkip)
	}

	names := make(map[string]bool, len(c.Ropes))
	for i, r := range c.Ropes {
		if r.Name == "" {
			return invalid("rope %d has no name", i)
		}
		if names[r.Name] {
			return invalid("duplicate rope name %q", r.Name)
		}
		names[r.Name] = true
		if len(r.Points) < 2 {
			return invalid("rope %q needs at least 2 points, got %d", r.Name, len(r.Points))
		}
		if r.Thickness <= 0 || r.Resolution <= 0 {
			return invalid("rope %q: thickness and resolution must be positive", r.Name)
		}
		if r.Pooled < 0 || r.Tethers < 0 {
			return invalid("rope %q: pooled and tethers must not be negative", r.Name)
		}
	}
	return nil
}

// FrameDelta is the variable frame time fed to the driver.
// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Ropes = make([]RopeConfig, len(c.Ropes))
	for i, r := range c.Ropes {
		r.Points = append([]Vec(nil), r.Points...)
		out.Ropes[i] = r
	}
	out.Metrics = append([]string(nil), c.Metrics...)
	return &out
}

func (c *Config) FrameDelta() float64 {
	return 1 / c.Solver.FrameRate
}
