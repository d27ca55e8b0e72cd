package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/gasket/internal/controller"
	"github.com/san-kum/gasket/internal/pipeline"
	"github.com/san-kum/gasket/internal/render"
)

const (
	DefaultDataDir         = ".gasket"
	DefaultPreviewInterval = 100 * time.Millisecond
	DefaultPreviewWidth    = 160
)

type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Canvas    CanvasConfig    `yaml:"canvas"`
	Animation AnimationConfig `yaml:"animation"`
	Gasket    GasketConfig    `yaml:"gasket"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

type CanvasConfig struct {
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	Padding float64 `yaml:"padding"`
}

type AnimationConfig struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	FPS   float64 `yaml:"fps"`
}

type GasketConfig struct {
	Seed         int64   `yaml:"seed"`
	Depth        int     `yaml:"depth"`
	MinCurvature float64 `yaml:"min_curvature"`
	MaxCurvature float64 `yaml:"max_curvature"`
}

type PipelineConfig struct {
	// Workers <= 0 means one per CPU.
	Workers         int           `yaml:"workers"`
	MaxRetries      int           `yaml:"max_retries"`
	PreviewInterval time.Duration `yaml:"preview_interval"`
	PreviewWidth    int           `yaml:"preview_width"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Canvas: CanvasConfig{
			Width:   render.DefaultWidth,
			Height:  render.DefaultHeight,
			Padding: render.DefaultPadding,
		},
		Animation: AnimationConfig{
			Start: render.DefaultStart,
			End:   render.DefaultEnd,
			FPS:   render.DefaultFPS,
		},
		Gasket: GasketConfig{
			Seed:         render.DefaultSeed,
			Depth:        render.DefaultDepth,
			MinCurvature: render.DefaultMinCurvature,
			MaxCurvature: render.DefaultMaxCurvature,
		},
		Pipeline: PipelineConfig{
			MaxRetries:      controller.DefaultMaxRetries,
			PreviewInterval: DefaultPreviewInterval,
			PreviewWidth:    DefaultPreviewWidth,
		},
	}
}

// Load reads a YAML file on top of the defaults, so a file only needs the
// keys it changes.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := LoadInto(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadInto reads a YAML file on top of cfg.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) RenderOptions() render.Options {
	return render.Options{
		Width:        c.Canvas.Width,
		Height:       c.Canvas.Height,
		Start:        c.Animation.Start,
		End:          c.Animation.End,
		FPS:          c.Animation.FPS,
		Seed:         c.Gasket.Seed,
		Depth:        c.Gasket.Depth,
		MinCurvature: c.Gasket.MinCurvature,
		MaxCurvature: c.Gasket.MaxCurvature,
		Padding:      c.Canvas.Padding,
	}
}

func (c *Config) ControllerOptions() controller.Options {
	workers := c.Pipeline.Workers
	if workers <= 0 {
		workers = pipeline.DefaultWorkers()
	}
	return controller.Options{
		Render:          c.RenderOptions(),
		Workers:         workers,
		MaxRetries:      c.Pipeline.MaxRetries,
		PreviewInterval: c.Pipeline.PreviewInterval,
		PreviewWidth:    c.Pipeline.PreviewWidth,
	}
}
