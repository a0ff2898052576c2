package stream

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/pbdsim/internal/sim"
)

// Exporter publishes a driver's metrics as Prometheus gauges. Values are
// copied at the end of each frame on the simulation goroutine.
type Exporter struct {
	registry *prometheus.Registry

	metrics   *prometheus.GaugeVec
	simTime   prometheus.Gauge
	steps     prometheus.Gauge
	frames    prometheus.Counter
	particles prometheus.Gauge
	clients   prometheus.GaugeFunc
}

// NewExporter registers the gauges on a private registry. h may be nil.
func NewExporter(h *Hub) *Exporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	e := &Exporter{
		registry: reg,
		metrics: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pbdsim_metric",
			Help: "Current value of each driver metric",
		}, []string{"name"}),
		simTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "pbdsim_sim_time_seconds",
			Help: "Simulated time",
		}),
		steps: f.NewGauge(prometheus.GaugeOpts{
			Name: "pbdsim_steps",
			Help: "Fixed steps taken",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "pbdsim_frames_total",
			Help: "Frames completed since the exporter was attached",
		}),
		particles: f.NewGauge(prometheus.GaugeOpts{
			Name: "pbdsim_active_particles",
			Help: "Active particles in the arena",
		}),
	}
	if h != nil {
		e.clients = f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "pbdsim_stream_clients",
			Help: "Connected websocket clients",
		}, func() float64 { return float64(h.Len()) })
	}
	return e
}

func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Observe copies the driver's current state into the gauges.
func (e *Exporter) Observe(d *sim.Driver) {
	for name, v := range d.MetricValues() {
		e.metrics.WithLabelValues(name).Set(v)
	}
	e.simTime.Set(d.Time())
	e.steps.Set(float64(d.Steps()))
	e.particles.Set(float64(len(d.Arena().ActiveIndices())))
	e.frames.Inc()
}

func (e *Exporter) Attach(d *sim.Driver) sim.ListenerID {
	return d.On(sim.FrameEnd, func(d *sim.Driver, dt float64) { e.Observe(d) })
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
