// Package experiment assembles a runnable scene from a configuration: the
// driver and reference kernel, one rope per configured rope, the metrics
// and a baker recording into a frame cache.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/bake"
	"github.com/san-kum/pbdsim/internal/cache"
	"github.com/san-kum/pbdsim/internal/config"
	"github.com/san-kum/pbdsim/internal/dynamo"
	"github.com/san-kum/pbdsim/internal/kernel/cpu"
	"github.com/san-kum/pbdsim/internal/metrics"
	"github.com/san-kum/pbdsim/internal/rope"
	"github.com/san-kum/pbdsim/internal/sim"
)

var DefaultMetrics = []string{"energy", "max_speed", "active_particles"}

type Scene struct {
	cfg    *config.Config
	logger *slog.Logger

	Driver *sim.Driver
	Kernel *cpu.Kernel
	Cache  *cache.Cache
	Baker  *bake.Baker
	Ropes  []*rope.Rope
}

type Option func(*Scene)

// WithCache plays back or extends an existing cache instead of a new one.
func WithCache(c *cache.Cache) Option {
	return func(s *Scene) { s.Cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scene) { s.logger = l }
}

func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scene{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if cfg.Solver.Workers > 0 {
		dynamo.Workers = cfg.Solver.Workers
	}

	sv := cfg.Solver
	s.Kernel = cpu.New(cpu.Options{
		Gravity:     sv.Gravity.R3(),
		Damping:     sv.Damping,
		Iterations:  sv.Iterations,
		Interpolate: sv.Interpolate,
	})
	d, err := sim.New(sv.Capacity, s.Kernel, sim.WithFixedDelta(sv.FixedDt), sim.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	s.Driver = d

	for _, rc := range cfg.Ropes {
		r, err := s.buildRope(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("rope %s: %w", rc.Name, err)
		}
		s.Ropes = append(s.Ropes, r)
	}

	names := cfg.Metrics
	if len(names) == 0 {
		names = DefaultMetrics
	}
	for _, n := range names {
		m, err := metrics.New(n, sv.Gravity.R3())
		if err != nil {
			return nil, err
		}
		d.AddMetric(m)
	}

	if s.Cache == nil {
		s.Cache = cache.New(cfg.Cache.ReferenceInterval)
	}
	s.Baker = bake.New(d, s.Cache)
	s.Baker.FrameSkip = cfg.Cache.FrameSkip
	s.Baker.Interpolate = cfg.Cache.Interpolate
	s.Baker.Loop = cfg.Cache.Loop

	s.logger.Info("scene built", "ropes", len(s.Ropes),
		"particles", d.Arena().AllocatedCount(), "capacity", sv.Capacity)
	return s, nil
}

func (s *Scene) buildRope(ctx context.Context, rc config.RopeConfig) (*rope.Rope, error) {
	rc = config.DefaultRope(rc)
	r := rope.New(rc.Name)
	r.Thickness = rc.Thickness
	r.Resolution = rc.Resolution
	r.Pooled = rc.Pooled
	r.SelfCollide = rc.SelfCollide
	r.PhaseGroup = len(s.Ropes)
	r.SetLogger(s.logger)
	r.SetHost(s.Driver)

	points := make([]r3.Vec, len(rc.Points))
	for i, p := range rc.Points {
		points[i] = p.R3()
	}
	err := r.Generate(rope.NewPolyline(points, rc.Closed)).Run(ctx, func(p rope.Progress) {
		s.logger.Debug("generating rope", "rope", rc.Name, "stage", p.Stage.String(), "fraction", p.Fraction)
	})
	if err != nil {
		return nil, err
	}

	if rc.PinStart {
		r.Fix(0)
	}
	if rc.PinEnd && !rc.Closed {
		r.Fix(r.UsedParticles() - 1)
	}
	if err := r.GenerateTethers(rc.Tethers); err != nil {
		return nil, err
	}
	if rc.Drag > 0 {
		if err := r.SetDrag(rc.Drag, 0, s.cfg.Solver.Wind.R3()); err != nil {
			return nil, err
		}
	}
	if rc.Disabled {
		r.SetEnabled(false)
	}
	return r, nil
}

func (s *Scene) Config() *config.Config { return s.cfg }

func (s *Scene) runConfig(duration float64) sim.RunConfig {
	return sim.RunConfig{
		FrameDelta:    s.cfg.FrameDelta(),
		Duration:      duration,
		MaxFrameDelta: s.cfg.Solver.MaxFrameDelta,
		ValidateState: true,
	}
}

// Bake simulates for the configured duration, recording every frame.
func (s *Scene) Bake(ctx context.Context) (*sim.Result, error) {
	s.Baker.SetBaking(true)
	defer s.Baker.SetBaking(false)
	return s.Driver.Run(ctx, s.runConfig(s.cfg.Solver.Duration))
}

// Simulate runs without recording.
func (s *Scene) Simulate(ctx context.Context) (*sim.Result, error) {
	return s.Driver.Run(ctx, s.runConfig(s.cfg.Solver.Duration))
}

// Play replays the cache from its start.
func (s *Scene) Play(ctx context.Context) (*sim.Result, error) {
	dur := s.Cache.Duration()
	if dur <= 0 {
		dur = s.cfg.FrameDelta()
	}
	s.Baker.Playhead = 0
	s.Baker.SetPlaying(true)
	defer s.Baker.SetPlaying(false)
	return s.Driver.Run(ctx, s.runConfig(dur))
}

func (s *Scene) Close() {
	s.Baker.Close()
	for _, r := range s.Ropes {
		r.RemoveFromArena()
	}
}
