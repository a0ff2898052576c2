// Package sim drives the shared arena: a fixed-step accumulator fed by
// variable frame deltas, the actor registry and the frame events that
// recording and playback hook into.
package sim

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/pbdsim/internal/actor"
	"github.com/san-kum/pbdsim/internal/arena"
	"github.com/san-kum/pbdsim/internal/constraint"
	"github.com/san-kum/pbdsim/internal/kernel"
)

const DefaultFixedDelta = 1.0 / 60

type Driver struct {
	arena   *arena.Arena
	kernel  kernel.Kernel
	clients []actor.Client

	listeners    map[EventKind][]listener
	nextListener ListenerID
	metrics      []Metric
	observers    []Observer

	fixedDelta     float64
	lastFixedDelta float64
	accumulator    float64
	updating       bool
	frameDelta     float64
	time           float64
	steps          int
	frames         int

	logger *slog.Logger
}

var _ actor.Host = (*Driver)(nil)

type Option func(*Driver)

func WithFixedDelta(dt float64) Option {
	return func(d *Driver) { d.fixedDelta = dt }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

func New(capacity int, k kernel.Kernel, opts ...Option) (*Driver, error) {
	d := &Driver{
		kernel:     k,
		listeners:  make(map[EventKind][]listener),
		fixedDelta: DefaultFixedDelta,
		updating:   true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.fixedDelta <= 0 {
		return nil, fmt.Errorf("fixed delta must be positive, got %f", d.fixedDelta)
	}

	ar, err := arena.New(capacity, k)
	if err != nil {
		return nil, err
	}
	d.arena = ar
	return d, nil
}

func (d *Driver) AddMetric(m Metric)     { d.metrics = append(d.metrics, m) }
func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

func (d *Driver) Arena() *arena.Arena        { return d.arena }
func (d *Driver) Kernel() kernel.Kernel      { return d.kernel }
func (d *Driver) Logger() *slog.Logger       { return d.logger }
func (d *Driver) Updating() bool             { return d.updating }
func (d *Driver) SetUpdating(on bool)        { d.updating = on }
func (d *Driver) Accumulator() float64       { return d.accumulator }
func (d *Driver) FixedDelta() float64        { return d.fixedDelta }
func (d *Driver) FrameDelta() float64        { return d.frameDelta }
func (d *Driver) Time() float64              { return d.time }
func (d *Driver) Steps() int                 { return d.steps }
func (d *Driver) Frames() int                { return d.frames }
func (d *Driver) Len() int                   { return len(d.clients) }
func (d *Driver) Client(id int) actor.Client { return d.clients[id] }

// Register appends c to the registry and returns its actor id.
func (d *Driver) Register(c actor.Client) int {
	d.clients = append(d.clients, c)
	return len(d.clients) - 1
}

// Unregister removes actor id and shifts every later actor down by one.
func (d *Driver) Unregister(id int) {
	if id < 0 || id >= len(d.clients) {
		return
	}
	d.clients = append(d.clients[:id], d.clients[id+1:]...)
	for i := id; i < len(d.clients); i++ {
		d.clients[i].Base().SetActorID(i)
	}
}

func (d *Driver) Group(id int, t kernel.ConstraintType) constraint.Group {
	if id < 0 || id >= len(d.clients) {
		return nil
	}
	return d.clients[id].Base().Group(t)
}

// Rebuild replaces the arena with one of the given capacity.
func (d *Driver) Rebuild(capacity int) error {
	if len(d.clients) > 0 {
		return fmt.Errorf("rebuild with %d actors: %w", len(d.clients), ErrActorsRegistered)
	}
	ar, err := arena.New(capacity, d.kernel)
	if err != nil {
		return err
	}
	d.arena = ar
	d.accumulator = 0
	d.logger.Info("arena rebuilt", "capacity", capacity)
	return nil
}

// On registers fn for an event and returns an id for Off.
func (d *Driver) On(kind EventKind, fn Handler) ListenerID {
	d.nextListener++
	d.listeners[kind] = append(d.listeners[kind], listener{id: d.nextListener, fn: fn})
	return d.nextListener
}

func (d *Driver) Off(kind EventKind, id ListenerID) {
	ls := d.listeners[kind]
	for i, l := range ls {
		if l.id == id {
			d.listeners[kind] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

func (d *Driver) emit(kind EventKind, dt float64) {
	for _, l := range d.listeners[kind] {
		l.fn(d, dt)
	}
}

func (d *Driver) snapshot() []actor.Client {
	return append([]actor.Client(nil), d.clients...)
}

// Tick starts a frame and, while updating, feeds dt to the accumulator.
func (d *Driver) Tick(dt float64) {
	d.frameDelta = dt
	d.emit(FrameBegin, dt)
	for _, c := range d.snapshot() {
		c.OnFrameBegin(dt)
	}
	if d.updating {
		d.accumulator += dt
	}
}

// Step drains whole fixed increments from the accumulator and returns the
// number of steps taken.
func (d *Driver) Step(fixedDelta float64) int {
	if fixedDelta <= 0 {
		return 0
	}
	d.lastFixedDelta = fixedDelta

	n := 0
	for d.accumulator >= fixedDelta {
		d.stepOnce(fixedDelta)
		d.accumulator -= fixedDelta
		n++
	}
	return n
}

func (d *Driver) stepOnce(dt float64) {
	clients := d.snapshot()

	d.emit(StepBegin, dt)
	for _, c := range clients {
		c.OnStepBegin(dt)
	}
	d.emit(FixedParticlesUpdated, dt)

	d.kernel.Integrate(dt)

	for _, c := range clients {
		c.OnStepEnd(dt)
	}
	d.emit(StepEnd, dt)

	d.time += dt
	d.steps++
	for _, m := range d.metrics {
		m.Observe(d.arena, d.time)
	}
	for _, o := range d.observers {
		o.OnStep(d.arena, d.time)
	}
}

// Alpha is the leftover accumulator as a fraction of the last fixed step.
func (d *Driver) Alpha() float64 {
	dt := d.lastFixedDelta
	if dt <= 0 {
		dt = d.fixedDelta
	}
	return math.Max(0, math.Min(1, d.accumulator/dt))
}

// EndFrame interpolates, publishes renderable positions and finishes the frame.
func (d *Driver) EndFrame(dt float64) {
	clients := d.snapshot()
	for _, c := range clients {
		c.OnPreInterpolation()
	}
	d.emit(BeforeInterpolation, dt)

	d.kernel.Interpolate(d.Alpha())
	d.arena.ReadRenderable()

	d.emit(BeforeActorsFrameEnd, dt)
	for _, c := range clients {
		c.OnFrameEnd(dt)
	}
	d.emit(FrameEnd, dt)
	d.frames++
}

// Frame runs Tick, Step at the configured fixed delta and EndFrame.
func (d *Driver) Frame(dt float64) int {
	d.Tick(dt)
	n := d.Step(d.fixedDelta)
	d.EndFrame(dt)
	return n
}

func (d *Driver) MetricValues() map[string]float64 {
	out := make(map[string]float64, len(d.metrics))
	for _, m := range d.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}
