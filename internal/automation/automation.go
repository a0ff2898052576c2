// Package automation runs batches of scenes: scripted scenarios, parameter
// sweeps and Monte Carlo trials over perturbed rope shapes.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pbdsim/internal/config"
	"github.com/san-kum/pbdsim/internal/experiment"
	"github.com/san-kum/pbdsim/internal/sim"
	"github.com/san-kum/pbdsim/internal/storage"
)

// Scenario defines a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run. Config takes precedence over Preset.
type ScenarioStep struct {
	Preset   string             `yaml:"preset"`
	Config   string             `yaml:"config"`
	Duration float64            `yaml:"duration"`
	Params   map[string]float64 `yaml:"params"`
	Bake     bool               `yaml:"bake"`
	SaveAs   string             `yaml:"save_as"`
}

type StepResult struct {
	Name   string
	RunID  string
	Result *sim.Result
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

func (s ScenarioStep) config() (*config.Config, string, error) {
	var cfg *config.Config
	name := s.Preset
	switch {
	case s.Config != "":
		c, err := config.Load(s.Config)
		if err != nil {
			return nil, "", err
		}
		cfg, name = c, s.Config
	default:
		cfg = config.GetPreset(s.Preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s", s.Preset)
		}
	}
	if s.Duration > 0 {
		cfg.Solver.Duration = s.Duration
	}
	if err := cfg.SetParams(s.Params); err != nil {
		return nil, "", err
	}
	if s.SaveAs != "" {
		name = s.SaveAs
	}
	return cfg, name, nil
}

// RunScenario executes every step in order. Baked steps are saved to st when
// it is non-nil.
func RunScenario(ctx context.Context, scenario *Scenario, st *storage.Store, logger *slog.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, name, err := step.config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		logger.Info("running scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", name)

		scene, err := experiment.Build(ctx, cfg, experiment.WithLogger(logger))
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		run := scene.Simulate
		if step.Bake {
			run = scene.Bake
		}
		result, err := run(ctx)
		if err != nil {
			scene.Close()
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: name, Result: result}
		if st != nil && step.Bake {
			sr.RunID, err = st.Save(name, cfg, result, scene.Cache)
			if err != nil {
				scene.Close()
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		scene.Close()
		results = append(results, sr)
	}

	return results, nil
}

// ParameterSweep runs a scene across evenly spaced values of one parameter.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
	Duration  float64
}

type SweepResult struct {
	ParamValue float64
	Metrics    map[string]float64
	Stable     bool
}

// withMetrics returns a copy of cfg that also records the named metrics.
func withMetrics(cfg *config.Config, names ...string) *config.Config {
	cfg = cfg.Clone()
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = append(cfg.Metrics, experiment.DefaultMetrics...)
	}
	for _, n := range names {
		found := false
		for _, m := range cfg.Metrics {
			found = found || m == n
		}
		if !found {
			cfg.Metrics = append(cfg.Metrics, n)
		}
	}
	return cfg
}

func simulate(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sim.Result, error) {
	scene, err := experiment.Build(ctx, cfg, experiment.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer scene.Close()
	return scene.Simulate(ctx)
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, logger *slog.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}
	if _, err := sweep.Base.Param(sweep.ParamName); err != nil {
		return nil, err
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep

		cfg := withMetrics(sweep.Base, "energy_drift", "stability")
		if sweep.Duration > 0 {
			cfg.Solver.Duration = sweep.Duration
		}
		_ = cfg.SetParam(sweep.ParamName, paramVal)

		result, err := simulate(ctx, cfg, logger)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}

		results = append(results, SweepResult{
			ParamValue: paramVal,
			Metrics:    result.Metrics,
			Stable:     result.Metrics["stability"] == 1,
		})
		logger.Info("sweep", "step", i+1, "of", sweep.NumSteps, "param", sweep.ParamName, "value", paramVal)
	}

	return results, nil
}

// MonteCarloConfig jitters every rope control point by up to Perturbation
// on each axis.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	NumTrials    int
	Duration     float64
	Seed         int64
}

type MonteCarloResult struct {
	TrialID int
	Ropes   []config.RopeConfig
	Metrics map[string]float64
	// Stable is false when any particle escaped or went non-finite.
	Stable bool
}

// RunMonteCarlo executes NumTrials runs with random rope perturbations.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, logger *slog.Logger) ([]MonteCarloResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	results := make([]MonteCarloResult, 0, mc.NumTrials)

	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for trial := 0; trial < mc.NumTrials; trial++ {
		cfg := withMetrics(mc.Base, "stability")
		if mc.Duration > 0 {
			cfg.Solver.Duration = mc.Duration
		}
		for r := range cfg.Ropes {
			for p := range cfg.Ropes[r].Points {
				for k := 0; k < 3; k++ {
					cfg.Ropes[r].Points[p][k] += (rng.Float64() - 0.5) * 2 * mc.Perturbation
				}
			}
		}

		result, err := simulate(ctx, cfg, logger)
		if err != nil {
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}

		results = append(results, MonteCarloResult{
			TrialID: trial,
			Ropes:   cfg.Ropes,
			Metrics: result.Metrics,
			Stable:  result.Metrics["stability"] == 1,
		})

		if (trial+1)%10 == 0 {
			logger.Info("monte carlo", "done", trial+1, "of", mc.NumTrials)
		}
	}

	return results, nil
}

func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
