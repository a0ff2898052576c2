// Package bake records the arena's renderable output into a frame cache and
// plays it back in place of simulation.
package bake

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/pbdsim/internal/cache"
	"github.com/san-kum/pbdsim/internal/sim"
)

var ErrNotEnoughParticles = errors.New("bake: not enough allocated particles to play back the cache")

type Baker struct {
	driver *sim.Driver
	cache  *cache.Cache

	// Playhead is the cache time of the next recorded or played frame.
	Playhead float64
	// FrameSkip records one frame out of every FrameSkip+1.
	FrameSkip   int
	Interpolate bool
	Loop        bool

	baking  bool
	playing bool
	paused  bool
	frames  int

	recordID sim.ListenerID
	playID   sim.ListenerID
	logger   *slog.Logger
}

func New(d *sim.Driver, c *cache.Cache) *Baker {
	b := &Baker{
		driver:      d,
		cache:       c,
		Interpolate: true,
		logger:      d.Logger().With("component", "baker"),
	}
	b.recordID = d.On(sim.FrameEnd, b.onFrameEnd)
	b.playID = d.On(sim.BeforeActorsFrameEnd, b.onBeforeActorsFrameEnd)
	return b
}

func (b *Baker) Cache() *cache.Cache { return b.cache }
func (b *Baker) Baking() bool        { return b.baking }
func (b *Baker) Playing() bool       { return b.playing }
func (b *Baker) Paused() bool        { return b.paused }
func (b *Baker) SetPaused(on bool)   { b.paused = on }

// SetBaking starts or stops recording. Recording forces live simulation.
func (b *Baker) SetBaking(on bool) {
	b.baking = on
	if on {
		b.playing = false
		b.frames = 0
		b.driver.SetUpdating(true)
	}
}

// SetPlaying starts or stops playback. While playing the driver does not
// simulate; cached positions replace its output.
func (b *Baker) SetPlaying(on bool) {
	b.playing = on
	if on {
		b.baking = false
	}
	b.driver.SetUpdating(!on)
}

// Close detaches the baker from the driver.
func (b *Baker) Close() {
	b.driver.Off(sim.FrameEnd, b.recordID)
	b.driver.Off(sim.BeforeActorsFrameEnd, b.playID)
}

// BakeFrame records every active slot's renderable position at time t.
func (b *Baker) BakeFrame(t float64) *cache.Frame {
	ar := b.driver.Arena()
	render := ar.Renderable()
	f := cache.NewFrame(t)
	for _, i := range ar.ActiveIndices() {
		// ActiveIndices is ascending, so Append cannot fail.
		_ = f.Append(i, render[i])
	}
	b.cache.AddFrame(f)
	return f
}

// PlaybackFrame writes the cached frame at t into the arena.
func (b *Baker) PlaybackFrame(t float64) error {
	f, ok := b.cache.GetFrame(t, b.Interpolate)
	if !ok {
		return nil
	}

	ar := b.driver.Arena()
	if ar.AllocatedCount() < f.Len() {
		b.logger.Error("cache holds more particles than are allocated",
			"allocated", ar.AllocatedCount(), "frame", f.Len())
		b.SetPlaying(false)
		return fmt.Errorf("%w: %d allocated, frame has %d", ErrNotEnoughParticles, ar.AllocatedCount(), f.Len())
	}

	ar.ReplaceActive(f.Indices)
	render := ar.Renderable()
	for i, idx := range f.Indices {
		if idx >= 0 && idx < len(render) {
			render[idx] = f.Positions[i]
		}
	}
	return nil
}

func (b *Baker) onFrameEnd(d *sim.Driver, dt float64) {
	if !b.baking || b.paused {
		return
	}
	if b.FrameSkip <= 0 || b.frames%(b.FrameSkip+1) == 0 {
		b.BakeFrame(b.Playhead)
	}
	b.frames++
	b.Playhead += dt
}

func (b *Baker) onBeforeActorsFrameEnd(d *sim.Driver, dt float64) {
	if !b.playing {
		return
	}
	if err := b.PlaybackFrame(b.Playhead); err != nil {
		return
	}
	if b.paused {
		return
	}

	b.Playhead += dt
	if dur := b.cache.Duration(); b.Playhead > dur {
		if b.Loop && dur > 0 {
			b.Playhead = math.Mod(b.Playhead, dur)
		} else {
			b.Playhead = dur
		}
	}
}
