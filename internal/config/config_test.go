package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Solver.Capacity != DefaultCapacity {
		t.Errorf("expected capacity %d, got %d", DefaultCapacity, cfg.Solver.Capacity)
	}
	if cfg.Solver.FixedDt <= 0 {
		t.Error("fixed_dt should be positive")
	}
	if cfg.Solver.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("bridge")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if len(cfg.Ropes) != 1 || !cfg.Ropes[0].PinEnd {
		t.Errorf("expected a rope pinned at both ends, got %+v", cfg.Ropes)
	}

	cfg.Ropes[0].Points[0] = Vec{9, 9, 9}
	if Presets["bridge"].Ropes[0].Points[0] == (Vec{9, 9, 9}) {
		t.Error("GetPreset must return a copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for _, name := range presets {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"capacity", func(c *Config) { c.Solver.Capacity = 0 }},
		{"fixed_dt", func(c *Config) { c.Solver.FixedDt = -1 }},
		{"frame_rate", func(c *Config) { c.Solver.FrameRate = 0 }},
		{"iterations", func(c *Config) { c.Solver.Iterations = 0 }},
		{"damping", func(c *Config) { c.Solver.Damping = 2 }},
		{"reference_interval", func(c *Config) { c.Cache.ReferenceInterval = 0 }},
		{"rope points", func(c *Config) { c.Ropes[0].Points = c.Ropes[0].Points[:1] }},
		{"rope name", func(c *Config) { c.Ropes[0].Name = "" }},
		{"duplicate rope", func(c *Config) { c.Ropes = append(c.Ropes, c.Ropes[0]) }},
		{"thickness", func(c *Config) { c.Ropes[0].Thickness = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetPreset("hanging")
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	cfg := GetPreset("pair")
	cfg.Ropes[0].Thickness = 0
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Ropes) != 2 || loaded.Ropes[1].Name != "right" {
		t.Fatalf("unexpected ropes %+v", loaded.Ropes)
	}
	if loaded.Ropes[0].Thickness != DefaultThickness {
		t.Errorf("zero thickness should load as default, got %f", loaded.Ropes[0].Thickness)
	}
	if loaded.Solver.Gravity.R3().Y != -9.81 {
		t.Errorf("gravity %v", loaded.Solver.Gravity)
	}
}

func TestParams(t *testing.T) {
	cfg := GetPreset("pair")
	if err := cfg.SetParam("thickness", 0.2); err != nil {
		t.Fatal(err)
	}
	for _, r := range cfg.Ropes {
		if r.Thickness != 0.2 {
			t.Errorf("rope %s thickness %f, expected every rope updated", r.Name, r.Thickness)
		}
	}

	if err := cfg.SetParams(map[string]float64{"iterations": 3, "gravity": -1}); err != nil {
		t.Fatal(err)
	}
	if cfg.Solver.Iterations != 3 || cfg.Solver.Gravity[1] != -1 {
		t.Errorf("unexpected solver %+v", cfg.Solver)
	}
	if v, _ := cfg.Param("iterations"); v != 3 {
		t.Errorf("expected 3, got %f", v)
	}

	if err := cfg.SetParam("nope", 1); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := cfg.Param("nope"); err == nil {
		t.Error("expected an error for an unknown param")
	}
	if len(ParamNames()) == 0 {
		t.Error("expected param names")
	}
}

func TestClone(t *testing.T) {
	cfg := GetPreset("hanging")
	cfg.Metrics = []string{"energy"}
	c := cfg.Clone()
	c.Ropes[0].Points[1] = Vec{7, 7, 7}
	c.Metrics[0] = "max_speed"
	if cfg.Ropes[0].Points[1] == (Vec{7, 7, 7}) || cfg.Metrics[0] != "energy" {
		t.Error("Clone must not share slices")
	}
}
