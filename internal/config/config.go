// Package config loads and saves sweep configurations.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSamples   = 100
	DefaultThreshold = 1.0
	DefaultTolerance = 1e-6
	DefaultStart     = 0.0
	DefaultEnd       = 10.0
	DefaultSteps     = 101
	DefaultDataDir   = ".cytoflux"
)

// Timepoints describes the evenly spaced evaluation grid.
type Timepoints struct {
	Start float64 `yaml:"start"`
	End   float64 `yaml:"end"`
	Steps int     `yaml:"steps"`
}

// Vector expands the grid into the timepoint slice handed to the solver.
func (t Timepoints) Vector() []float64 {
	out := make([]float64, t.Steps)
	for i := range out {
		out[i] = t.Start + (t.End-t.Start)*float64(i)/float64(t.Steps-1)
	}
	return out
}

// Range is a closed sampling interval for one parameter or initial
// condition.
type Range struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

type Config struct {
	Seed       int64               `yaml:"seed"`
	Samples    int                 `yaml:"samples"`
	Workers    int                 `yaml:"workers"`
	Threshold  float64             `yaml:"threshold"`
	Tolerance  float64             `yaml:"tolerance"`
	Timepoints Timepoints          `yaml:"timepoints"`
	Ranges     map[string]Range    `yaml:"ranges"`
	Fixed      map[string]float64  `yaml:"fixed"`
	Pins       [][]string          `yaml:"pins"`
	Quash      map[string][]string `yaml:"quash_groups"`
	DataDir    string              `yaml:"data_dir"`
}

func DefaultConfig() *Config {
	return &Config{
		Seed:      1,
		Samples:   DefaultSamples,
		Workers:   runtime.NumCPU(),
		Threshold: DefaultThreshold,
		Tolerance: DefaultTolerance,
		Timepoints: Timepoints{
			Start: DefaultStart,
			End:   DefaultEnd,
			Steps: DefaultSteps,
		},
		DataDir: DefaultDataDir,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Samples < 1 {
		return fmt.Errorf("config: samples must be positive, got %d", c.Samples)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Workers)
	}
	if c.Timepoints.Steps < 2 {
		return fmt.Errorf("config: timepoints need at least 2 steps, got %d", c.Timepoints.Steps)
	}
	if c.Timepoints.End <= c.Timepoints.Start {
		return fmt.Errorf("config: timepoint range [%g, %g] is empty", c.Timepoints.Start, c.Timepoints.End)
	}
	for name, r := range c.Ranges {
		if r.Hi < r.Lo {
			return fmt.Errorf("config: range for %s is inverted [%g, %g]", name, r.Lo, r.Hi)
		}
	}
	return nil
}
