package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/pbdsim/internal/dynamo"
)

// Run is a headless scheduler: it feeds frames until Duration of frame time
// has elapsed, clamping each delta to MaxFrameDelta.
func (d *Driver) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	for _, m := range d.metrics {
		m.Reset()
	}

	result := &Result{Metrics: make(map[string]float64)}
	elapsed := 0.0
	const eps = 1e-9

	for elapsed < cfg.Duration-eps {
		select {
		case <-ctx.Done():
			d.fillResult(result)
			return result, ctx.Err()
		default:
		}

		dt := cfg.FrameDelta
		if cfg.Clock != nil {
			if c := cfg.Clock(); c > 0 {
				dt = c
			}
		}
		if cfg.MaxFrameDelta > 0 && dt > cfg.MaxFrameDelta {
			dt = cfg.MaxFrameDelta
		}
		result.Steps += d.Frame(dt)
		result.Frames++
		elapsed += dt

		if cfg.ValidateState && !d.stateValid() {
			d.fillResult(result)
			return result, &dynamo.StepError{Step: d.steps, Time: d.time, Wrapped: ErrDiverged}
		}
	}

	d.fillResult(result)
	return result, nil
}

func (d *Driver) fillResult(r *Result) {
	r.Time = d.time
	for k, v := range d.MetricValues() {
		r.Metrics[k] = v
	}
}

func (d *Driver) stateValid() bool {
	f := d.arena.Fields()
	for _, i := range d.arena.ActiveIndices() {
		if !dynamo.Finite(f.Positions[i]) || !dynamo.Finite(f.Velocities[i]) {
			return false
		}
	}
	return true
}

func validateConfig(cfg RunConfig) error {
	// FrameDelta is also the fallback for a Clock that reports no time.
	if cfg.FrameDelta <= 0 {
		return fmt.Errorf("frame delta must be positive, got %f", cfg.FrameDelta)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.MaxFrameDelta < 0 {
		return fmt.Errorf("max frame delta must not be negative, got %f", cfg.MaxFrameDelta)
	}
	return nil
}
