package sim

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbdsim/internal/actor"
	"github.com/san-kum/pbdsim/internal/arena"
	"github.com/san-kum/pbdsim/internal/dynamo"
	"github.com/san-kum/pbdsim/internal/kernel"
	"github.com/san-kum/pbdsim/internal/kernel/kerneltest"
)

type tracedActor struct {
	*actor.Actor
	log *[]string
}

func newTraced(name string, n int, log *[]string) *tracedActor {
	a := &tracedActor{Actor: actor.New(name, n), log: log}
	a.SetClient(a)
	return a
}

func (a *tracedActor) OnFrameBegin(dt float64) { *a.log = append(*a.log, a.Name()+".frame_begin") }
func (a *tracedActor) OnStepBegin(dt float64) {
	a.Actor.OnStepBegin(dt)
	*a.log = append(*a.log, a.Name()+".step_begin")
}
func (a *tracedActor) OnStepEnd(dt float64)  { *a.log = append(*a.log, a.Name()+".step_end") }
func (a *tracedActor) OnPreInterpolation()   { *a.log = append(*a.log, a.Name()+".pre_interpolation") }
func (a *tracedActor) OnFrameEnd(dt float64) { *a.log = append(*a.log, a.Name()+".frame_end") }

type countMetric struct{ n int }

func (m *countMetric) Name() string                       { return "count" }
func (m *countMetric) Observe(ar *arena.Arena, t float64) { m.n++ }
func (m *countMetric) Value() float64                     { return float64(m.n) }
func (m *countMetric) Reset()                             { m.n = 0 }

func newDriver(t *testing.T, capacity int, opts ...Option) (*Driver, *kerneltest.Recorder) {
	t.Helper()
	k := kerneltest.New()
	d, err := New(capacity, k, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, k
}

func TestFrameHookOrder(t *testing.T) {
	d, k := newDriver(t, 8)
	var log []string
	k.OnIntegrate = func(*kernel.Fields, float64) { log = append(log, "integrate") }

	a := newTraced("a", 2, &log)
	a.SetHost(d)
	if ok, err := a.AddToArena(); !ok || err != nil {
		t.Fatalf("add: %v %v", ok, err)
	}

	for _, kind := range []EventKind{FrameBegin, StepBegin, FixedParticlesUpdated, StepEnd, BeforeInterpolation, BeforeActorsFrameEnd, FrameEnd} {
		kind := kind
		d.On(kind, func(*Driver, float64) { log = append(log, kind.String()) })
	}

	d.Tick(0.25)
	if n := d.Step(0.125); n != 2 {
		t.Fatalf("expected 2 steps, got %d", n)
	}
	d.EndFrame(0.25)

	want := []string{
		"frame_begin", "a.frame_begin",
		"step_begin", "a.step_begin", "fixed_particles_updated", "integrate", "a.step_end", "step_end",
		"step_begin", "a.step_begin", "fixed_particles_updated", "integrate", "a.step_end", "step_end",
		"a.pre_interpolation", "before_interpolation", "before_actors_frame_end", "a.frame_end", "frame_end",
	}
	if strings.Join(log, ",") != strings.Join(want, ",") {
		t.Errorf("unexpected order:\n got  %v\n want %v", log, want)
	}
}

func TestAccumulator(t *testing.T) {
	d, k := newDriver(t, 4)

	d.Tick(0.3)
	if n := d.Step(0.125); n != 2 {
		t.Errorf("expected 2 steps, got %d", n)
	}
	if math.Abs(d.Accumulator()-0.05) > 1e-12 {
		t.Errorf("expected remainder 0.05, got %f", d.Accumulator())
	}

	d.EndFrame(0.3)
	if math.Abs(k.Alpha-0.4) > 1e-9 {
		t.Errorf("expected alpha 0.4, got %f", k.Alpha)
	}

	d.Tick(0.1)
	if n := d.Step(0.125); n != 1 {
		t.Errorf("remainder should carry, expected 1 step, got %d", n)
	}
	if d.Steps() != 3 || math.Abs(d.Time()-0.375) > 1e-12 {
		t.Errorf("unexpected steps=%d time=%f", d.Steps(), d.Time())
	}

	if n := d.Step(0); n != 0 {
		t.Error("non-positive fixed delta must not step")
	}
}

func TestNotUpdating(t *testing.T) {
	d, k := newDriver(t, 4)
	d.SetUpdating(false)
	d.Frame(1)
	if d.Accumulator() != 0 || k.Integrations != 0 {
		t.Error("driver should not accumulate while not updating")
	}
	if d.Frames() != 1 {
		t.Errorf("frame should still end, got %d frames", d.Frames())
	}
}

func TestRenderableReadBack(t *testing.T) {
	d, k := newDriver(t, 4)
	k.OnIntegrate = func(f *kernel.Fields, dt float64) {
		for i := range f.Positions {
			f.Positions[i] = r3.Add(f.Positions[i], r3.Vec{Y: -1})
		}
	}
	a := actor.New("a", 1)
	a.SetHost(d)
	a.AddToArena()

	d.Frame(DefaultFixedDelta * 1.5)
	if got := a.ParticlePosition(0); got.Y != -1 {
		t.Errorf("expected renderable y=-1, got %v", got)
	}
}

func TestOff(t *testing.T) {
	d, _ := newDriver(t, 2)
	calls := 0
	id := d.On(FrameEnd, func(*Driver, float64) { calls++ })
	other := d.On(FrameEnd, func(*Driver, float64) { calls += 10 })
	d.Frame(0.01)
	d.Off(FrameEnd, id)
	d.Frame(0.01)
	d.Off(FrameEnd, other)
	d.Frame(0.01)
	if calls != 21 {
		t.Errorf("expected 21, got %d", calls)
	}
}

func TestRebuild(t *testing.T) {
	d, _ := newDriver(t, 4)
	a := actor.New("a", 2)
	a.SetHost(d)
	a.AddToArena()

	if err := d.Rebuild(16); !errors.Is(err, ErrActorsRegistered) {
		t.Fatalf("expected ErrActorsRegistered, got %v", err)
	}
	if d.Arena().Capacity() != 4 {
		t.Error("refused rebuild must keep the arena")
	}

	a.RemoveFromArena()
	if err := d.Rebuild(16); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if d.Arena().Capacity() != 16 {
		t.Errorf("expected capacity 16, got %d", d.Arena().Capacity())
	}
	if ok, _ := a.AddToArena(); !ok {
		t.Error("actor should enter the rebuilt arena")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(0, kerneltest.New()); err == nil {
		t.Error("expected capacity error")
	}
	if _, err := New(4, kerneltest.New(), WithFixedDelta(0)); err == nil {
		t.Error("expected fixed delta error")
	}
}

func TestRunClampsFrameDelta(t *testing.T) {
	d, _ := newDriver(t, 4, WithFixedDelta(0.125))
	m := &countMetric{}
	d.AddMetric(m)

	res, err := d.Run(context.Background(), RunConfig{
		FrameDelta:    0.5,
		Duration:      2,
		MaxFrameDelta: 0.5,
		Clock:         func() float64 { return 2 },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Frames != 4 || res.Steps != 16 {
		t.Errorf("expected 4 frames and 16 steps, got %d and %d", res.Frames, res.Steps)
	}
	if res.Metrics["count"] != 16 {
		t.Errorf("expected metric 16, got %f", res.Metrics["count"])
	}
	if res.Time != 2 {
		t.Errorf("expected time 2, got %f", res.Time)
	}
}

func TestRunValidation(t *testing.T) {
	d, _ := newDriver(t, 4)
	tests := []RunConfig{
		{FrameDelta: 0, Duration: 1},
		{FrameDelta: 0.1, Duration: 0},
		{FrameDelta: 0.1, Duration: 1, MaxFrameDelta: -1},
		{FrameDelta: 0, Duration: 1, Clock: func() float64 { return 0 }},
	}
	for _, cfg := range tests {
		if _, err := d.Run(context.Background(), cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}

func TestRunStalledClockFallsBack(t *testing.T) {
	d, _ := newDriver(t, 4, WithFixedDelta(0.25))
	res, err := d.Run(context.Background(), RunConfig{
		FrameDelta: 0.25,
		Duration:   1,
		Clock:      func() float64 { return 0 },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Frames != 4 || res.Steps != 4 {
		t.Errorf("expected 4 frames and 4 steps, got %d and %d", res.Frames, res.Steps)
	}
}

func TestRunCanceled(t *testing.T) {
	d, _ := newDriver(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Run(ctx, RunConfig{FrameDelta: 0.1, Duration: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunDetectsDivergence(t *testing.T) {
	d, k := newDriver(t, 4, WithFixedDelta(0.125))
	k.OnIntegrate = func(f *kernel.Fields, dt float64) {
		f.Positions[0] = r3.Vec{X: math.NaN()}
	}
	a := actor.New("a", 1)
	a.SetHost(d)
	a.AddToArena()

	_, err := d.Run(context.Background(), RunConfig{FrameDelta: 0.25, Duration: 1, ValidateState: true})
	if !errors.Is(err, ErrDiverged) {
		t.Fatalf("expected ErrDiverged, got %v", err)
	}
	var stepErr *dynamo.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != 2 {
		t.Errorf("expected StepError at step 2, got %v", err)
	}
}
