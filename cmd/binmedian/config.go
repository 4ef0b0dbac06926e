package main

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/geal-ai/binmedian"
)

// Config is a filtering job. It is read from a YAML file and then
// overridden by any flags given on the command line.
type Config struct {
	Variable      string       `yaml:"variable"`
	Weights       string       `yaml:"weights"`
	LogTransform  bool         `yaml:"log_transform"`
	Format        string       `yaml:"format"`
	OutDir        string       `yaml:"out_dir"`
	Workers       int          `yaml:"workers"`
	ParallelFiles int          `yaml:"parallel_files"`
	Bounds        BoundsConfig `yaml:"bounds"`
	ValueMax      float64      `yaml:"value_max"` // CSV rows keep values below this
	Debug         bool         `yaml:"debug"`
}

// BoundsConfig crops CSV output to a lat/lon box.
type BoundsConfig struct {
	LatMin float64 `yaml:"lat_min"`
	LatMax float64 `yaml:"lat_max"`
	LonMin float64 `yaml:"lon_min"`
	LonMax float64 `yaml:"lon_max"`
}

func defaultConfig() Config {
	w := binmedian.World
	return Config{
		Variable:      "chlor_a",
		Format:        "nc",
		OutDir:        "out",
		ParallelFiles: 2,
		Bounds: BoundsConfig{
			LatMin: w.LatMin, LatMax: w.LatMax,
			LonMin: w.LonMin, LonMax: w.LonMax,
		},
		ValueMax: math.Inf(1),
	}
}

// loadConfig reads a YAML job file on top of the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// validate checks the job after flags have been applied.
func (c *Config) validate() error {
	c.Format = strings.ToLower(c.Format)
	switch c.Format {
	case "nc", "msgpack", "csv":
	default:
		return fmt.Errorf("invalid format %q: use nc, msgpack or csv", c.Format)
	}
	if c.Variable == "" {
		return fmt.Errorf("variable name is empty")
	}
	if c.ParallelFiles < 1 {
		c.ParallelFiles = 1
	}
	if math.IsNaN(c.ValueMax) {
		return fmt.Errorf("value_max is NaN")
	}
	b := c.Bounds
	if b.LatMin > b.LatMax || b.LonMin > b.LonMax {
		return fmt.Errorf("invalid bounds %+v", b)
	}
	return nil
}

func (c *Config) bounds() binmedian.Bounds {
	return binmedian.Bounds{
		LatMin: c.Bounds.LatMin, LatMax: c.Bounds.LatMax,
		LonMin: c.Bounds.LonMin, LonMax: c.Bounds.LonMax,
	}
}
