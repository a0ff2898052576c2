package config

import "sort"

var Presets = map[string]*Config{
	"hanging": withRopes(RopeConfig{
		Name: "rope", Points: []Vec{{0, 2, 0}, {2, 2, 0}},
		Thickness: 0.1, Resolution: 1, PinStart: true, Tethers: 1,
	}),
	"bridge": withRopes(RopeConfig{
		Name: "bridge", Points: []Vec{{-2, 1, 0}, {2, 1, 0}},
		Thickness: 0.1, Resolution: 1, PinStart: true, PinEnd: true, Tethers: 2,
	}),
	"loop": withRopes(RopeConfig{
		Name: "loop", Points: []Vec{{-1, 3, 0}, {1, 3, 0}, {1, 1, 0}, {-1, 1, 0}},
		Closed: true, Thickness: 0.2, Resolution: 1, PinStart: true,
	}),
	"pair": withRopes(
		RopeConfig{
			Name: "left", Points: []Vec{{-1, 2, 0}, {-1, 0, 0}},
			Thickness: 0.1, Resolution: 1, PinStart: true, Pooled: 4,
		},
		RopeConfig{
			Name: "right", Points: []Vec{{1, 2, 0}, {1, 0, 0}},
			Thickness: 0.1, Resolution: 1, PinStart: true, Tethers: 1, Drag: 1,
		},
	),
}

func withRopes(ropes ...RopeConfig) *Config {
	cfg := DefaultConfig()
	cfg.Ropes = ropes
	return cfg
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
