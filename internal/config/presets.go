package config

import "sort"

// Presets override the canvas, animation and gasket sections of the
// defaults. Pipeline settings always come from the defaults or the file.
var Presets = map[string]*Config{
	"quick": {
		Canvas:    CanvasConfig{Width: 256, Height: 256, Padding: 4},
		Animation: AnimationConfig{Start: 0, End: 3, FPS: 24},
		Gasket:    GasketConfig{Seed: 12, Depth: 3, MinCurvature: 3, MaxCurvature: 20},
	},
	"square": {
		Canvas:    CanvasConfig{Width: 512, Height: 512, Padding: 8},
		Animation: AnimationConfig{Start: 0, End: 10, FPS: 30},
		Gasket:    GasketConfig{Seed: 12, Depth: 4, MinCurvature: 3, MaxCurvature: 20},
	},
	"hd": {
		Canvas:    CanvasConfig{Width: 1280, Height: 720, Padding: 16},
		Animation: AnimationConfig{Start: 0, End: 12, FPS: 30},
		Gasket:    GasketConfig{Seed: 7, Depth: 5, MinCurvature: 2, MaxCurvature: 12},
	},
	"deep": {
		Canvas:    CanvasConfig{Width: 1024, Height: 1024, Padding: 8},
		Animation: AnimationConfig{Start: 0, End: 20, FPS: 30},
		Gasket:    GasketConfig{Seed: 42, Depth: 6, MinCurvature: 3, MaxCurvature: 20},
	},
	"sparse": {
		Canvas:    CanvasConfig{Width: 512, Height: 512, Padding: 8},
		Animation: AnimationConfig{Start: 0, End: 6, FPS: 15},
		Gasket:    GasketConfig{Seed: 3, Depth: 2, MinCurvature: 5, MaxCurvature: 8},
	},
}

// GetPreset returns the defaults with the named preset applied, or nil
// for an unknown name.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Canvas = p.Canvas
	cfg.Animation = p.Animation
	cfg.Gasket = p.Gasket
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
