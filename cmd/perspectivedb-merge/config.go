package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// outputConfig controls how perspectivedb-merge renders its output. It is
// decoded directly with gopkg.in/yaml.v3, distinct from the yaml.v2 fixture
// loader in pkg/encoding: the fixture format is a module-internal test
// artifact, while this file is user-facing tool configuration, so giving it
// its own, independently-maintained decode path keeps the two from
// accidentally sharing (and being constrained by) the same schema.
type outputConfig struct {
	// Color forces colored output on or off. A nil value means "decide based
	// on whether standard output is a terminal".
	Color *bool `yaml:"color"`
	// Verbose prints each input item's full body alongside the merge result.
	Verbose bool `yaml:"verbose"`
}

// loadConfig loads an outputConfig from path, or returns the zero value
// (auto-detected color, non-verbose) if path is empty.
func loadConfig(path string) (*outputConfig, error) {
	cfg := &outputConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration file: %w", err)
	}
	return cfg, nil
}
