package sim

import (
	"errors"

	"github.com/san-kum/pbdsim/internal/arena"
)

var (
	ErrActorsRegistered = errors.New("sim: remove every actor before rebuilding the arena")
	ErrDiverged         = errors.New("sim: particle state diverged (NaN or Inf detected)")
)

// Metric accumulates a scalar over the steps of a run.
type Metric interface {
	Name() string
	Observe(ar *arena.Arena, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(ar *arena.Arena, t float64)
}

// EventKind names a point in the frame where listeners run.
type EventKind int

const (
	FrameBegin EventKind = iota
	StepBegin
	// FixedParticlesUpdated fires after actors drove their fixed particles
	// and before the kernel integrates.
	FixedParticlesUpdated
	StepEnd
	BeforeInterpolation
	// BeforeActorsFrameEnd fires after renderable positions were read back,
	// so listeners may replace them.
	BeforeActorsFrameEnd
	FrameEnd
)

var eventNames = [...]string{
	FrameBegin:            "frame_begin",
	StepBegin:             "step_begin",
	FixedParticlesUpdated: "fixed_particles_updated",
	StepEnd:               "step_end",
	BeforeInterpolation:   "before_interpolation",
	BeforeActorsFrameEnd:  "before_actors_frame_end",
	FrameEnd:              "frame_end",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Handler receives the driver and the frame or step delta.
type Handler func(d *Driver, dt float64)

type ListenerID int

type listener struct {
	id ListenerID
	fn Handler
}

type RunConfig struct {
	FrameDelta    float64
	Duration      float64
	MaxFrameDelta float64
	ValidateState bool
	// Clock, when set, supplies each frame's elapsed time instead of
	// FrameDelta. Non-positive readings fall back to FrameDelta.
	Clock func() float64
}

type Result struct {
	Frames  int
	Steps   int
	Time    float64
	Metrics map[string]float64
}
