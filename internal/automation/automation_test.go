package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/pbdsim/internal/config"
	"github.com/san-kum/pbdsim/internal/storage"
)

const scenarioYAML = `name: smoke
description: two short runs
steps:
  - preset: hanging
    duration: 0.1
    params:
      damping: 0.2
  - preset: bridge
    duration: 0.1
    bake: true
    save_as: baked_bridge
`

func TestRunScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0644); err != nil {
		t.Fatal(err)
	}

	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.Steps) != 2 || sc.Steps[0].Params["damping"] != 0.2 {
		t.Fatalf("unexpected scenario %+v", sc)
	}

	st := storage.New(filepath.Join(dir, "runs"))
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}
	results, err := RunScenario(context.Background(), sc, st, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].RunID != "" {
		t.Error("unbaked steps are not saved")
	}
	if results[1].Name != "baked_bridge" || results[1].RunID == "" {
		t.Errorf("expected a saved bridge run, got %+v", results[1])
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Cached == 0 {
		t.Errorf("expected one stored run with cached frames, got %+v", runs)
	}
}

func TestLoadScenarioEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("name: empty\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenario(path); err == nil {
		t.Error("expected an error for a scenario without steps")
	}
}

func TestRunScenarioUnknownPreset(t *testing.T) {
	sc := &Scenario{Steps: []ScenarioStep{{Preset: "nope"}}}
	if _, err := RunScenario(context.Background(), sc, nil, nil); err == nil {
		t.Error("expected an error for an unknown preset")
	}
}

func TestRunSweep(t *testing.T) {
	sweep := &ParameterSweep{
		Base:      config.GetPreset("hanging"),
		ParamName: "damping",
		ParamMin:  0,
		ParamMax:  0.2,
		NumSteps:  3,
		Duration:  0.1,
	}
	results, err := RunSweep(context.Background(), sweep, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []float64{0, 0.1, 0.2} {
		if diff := results[i].ParamValue - want; diff > 1e-12 || diff < -1e-12 {
			t.Errorf("step %d: expected %f, got %f", i, want, results[i].ParamValue)
		}
		if !results[i].Stable {
			t.Errorf("step %d should be stable", i)
		}
		if _, ok := results[i].Metrics["energy_drift"]; !ok {
			t.Errorf("step %d missing energy_drift", i)
		}
	}
	if sweep.Base.Solver.Damping != config.DefaultDamping {
		t.Error("sweep must not modify the base config")
	}

	sweep.ParamName = "nope"
	if _, err := RunSweep(context.Background(), sweep, nil); err == nil {
		t.Error("expected an error for an unknown param")
	}
}

func TestRunMonteCarlo(t *testing.T) {
	base := config.GetPreset("hanging")
	results, err := RunMonteCarlo(context.Background(), &MonteCarloConfig{
		Base:         base,
		Perturbation: 0.01,
		NumTrials:    3,
		Duration:     0.1,
		Seed:         7,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	stable, unstable := MonteCarloStats(results)
	if stable != 3 || unstable != 0 {
		t.Errorf("expected 3 stable trials, got %d/%d", stable, unstable)
	}
	if results[0].Ropes[0].Points[0] == base.Ropes[0].Points[0] {
		t.Error("trial should perturb the rope")
	}
}
