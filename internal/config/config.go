// Package config holds the optimization pipeline configuration.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v2"

	"github.com/you-not-fish/brilopt/internal/passes"
)

// Config describes a pipeline run.
type Config struct {
	// Passes lists the passes applied to every function, in order.
	Passes []string `yaml:"passes"`

	// DeadDefs and KilledDefs select the tdce strategies.
	DeadDefs   bool `yaml:"dead_defs"`
	KilledDefs bool `yaml:"killed_defs"`

	// MaxIterations caps both the per-block and the whole-program fixpoint.
	MaxIterations int `yaml:"max_iterations"`

	// Workers is the number of functions optimized concurrently.
	Workers int `yaml:"workers"`

	// Fixpoint re-runs the pipeline until no pass changes the program.
	Fixpoint bool `yaml:"fixpoint"`
}

// Default returns the full pipeline with both tdce strategies, run to a
// fixpoint on GOMAXPROCS workers.
func Default() *Config {
	return &Config{
		Passes:        append([]string(nil), passes.Names...),
		DeadDefs:      true,
		KilledDefs:    true,
		MaxIterations: passes.DefaultMaxIterations,
		Workers:       runtime.GOMAXPROCS(0),
		Fixpoint:      true,
	}
}

// Load reads a YAML config from path. Fields missing from the file keep
// their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config from %q: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("cannot parse config from %q: %w", path, err)
	}
	return c, nil
}

// Parse parses a YAML config. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every pass is known and every bound is positive.
func (c *Config) Validate() error {
	if len(c.Passes) == 0 {
		return fmt.Errorf("`passes` must not be empty")
	}
	for i, name := range c.Passes {
		if _, err := passes.New(name, passes.Options{}); err != nil {
			return fmt.Errorf("`passes` #%d: %w", i+1, err)
		}
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("`max_iterations` must be positive; got %d", c.MaxIterations)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("`workers` must be positive; got %d", c.Workers)
	}
	return nil
}

// PassOptions returns the options the passes are built with.
func (c *Config) PassOptions() passes.Options {
	return passes.Options{
		MaxIterations: c.MaxIterations,
		DeadDefs:      c.DeadDefs,
		KilledDefs:    c.KilledDefs,
	}
}
