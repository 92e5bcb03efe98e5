// Package config provides configuration loading and management for tedeval.
// It handles loading configuration from YAML files and provides default
// values matching the original evaluation tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Evaluation parameters
	Evaluation struct {
		// ReportTed enables the tolerant edit distance
		ReportTed bool `yaml:"reportTed"`

		// ReportRand enables the RAND index
		ReportRand bool `yaml:"reportRand"`

		// ReportVoi enables the variation of information
		ReportVoi bool `yaml:"reportVoi"`

		// ReportDetectionOverlap enables the detection overlap
		ReportDetectionOverlap bool `yaml:"reportDetectionOverlap"`

		// IgnoreBackground drops ground-truth background voxels from
		// VOI and RAND
		IgnoreBackground bool `yaml:"ignoreBackground"`

		// GrowSlices grows reconstruction slices into background
		// before VOI and RAND
		GrowSlices bool `yaml:"growSlices"`

		// HasBackground enables background handling
		HasBackground bool `yaml:"hasBackground"`

		// BackgroundLabel is the reserved background label value
		BackgroundLabel uint64 `yaml:"backgroundLabel"`

		// Tolerance is the boundary tolerance in physical units
		Tolerance float64 `yaml:"tolerance"`

		// MinOverlapRatio is the minimum fraction of a region's size a
		// non-dominant overlap must reach to count as a partner
		MinOverlapRatio float64 `yaml:"minOverlapRatio"`

		// NumWorkers bounds the number of parallel slice workers
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"evaluation"`

	// Volume parameters
	Volume struct {
		// ResolutionX, ResolutionY and ResolutionZ give the physical
		// voxel size in mm
		ResolutionX float64 `yaml:"resolutionX"`
		ResolutionY float64 `yaml:"resolutionY"`
		ResolutionZ float64 `yaml:"resolutionZ"`

		// ExtractGroundTruthLabels treats the ground truth as a
		// foreground/background mask and labels its connected
		// components
		ExtractGroundTruthLabels bool `yaml:"extractGroundTruthLabels"`

		// ExtractIn3D uses 6-connected 3D components instead of
		// 4-connected per-slice components
		ExtractIn3D bool `yaml:"extractIn3D"`
	} `yaml:"volume"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Evaluation.ReportTed = true
	cfg.Evaluation.ReportDetectionOverlap = true
	cfg.Evaluation.HasBackground = true
	cfg.Evaluation.BackgroundLabel = 0
	cfg.Evaluation.Tolerance = 1.0
	cfg.Evaluation.MinOverlapRatio = 0.0
	cfg.Evaluation.NumWorkers = runtime.NumCPU()

	cfg.Volume.ResolutionX = 1.0
	cfg.Volume.ResolutionY = 1.0
	cfg.Volume.ResolutionZ = 1.0

	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
