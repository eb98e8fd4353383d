package config

import (
	"fmt"
	"slices"
)

// Dataset sources.
const (
	SourceCSV       = "csv"
	SourceSynthetic = "synthetic"
)

// DatasetConfig describes one dataset pipeline.
type DatasetConfig struct {
	ID     string `yaml:"id"`
	Task   string `yaml:"task"`   // regression, classification
	Source string `yaml:"source"` // csv, synthetic

	// CSV sources
	Path        string            `yaml:"path,omitempty"`
	Columns     []string          `yaml:"columns,omitempty"` // header names for files without a header row
	Target      string            `yaml:"target,omitempty"`
	Categorical []string          `yaml:"categorical,omitempty"`
	Drop        []string          `yaml:"drop,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`

	// PositivePrefix marks classification targets: values starting with it are 1.
	// Empty means the target column is already numeric.
	PositivePrefix string `yaml:"positive_prefix,omitempty"`

	// Synthetic sources
	Rows int `yaml:"rows,omitempty"`
}

// DefaultDatasets returns the built-in synthetic datasets, which need no files.
func DefaultDatasets() []DatasetConfig {
	return []DatasetConfig{
		{ID: "synthetic_regression", Task: "regression", Source: SourceSynthetic, Rows: 500},
		{ID: "synthetic_classification", Task: "classification", Source: SourceSynthetic, Rows: 500},
	}
}

// ValidateDatasets checks every dataset definition.
func (c *Config) ValidateDatasets() error {
	seen := make(map[string]bool, len(c.Datasets))
	for i, ds := range c.Datasets {
		if ds.ID == "" {
			return fmt.Errorf("dataset %d: missing id", i)
		}
		if seen[ds.ID] {
			return fmt.Errorf("dataset %s: duplicate id", ds.ID)
		}
		seen[ds.ID] = true

		if ds.Task != "regression" && ds.Task != "classification" {
			return fmt.Errorf("dataset %s: invalid task %q", ds.ID, ds.Task)
		}

		switch ds.Source {
		case SourceCSV:
			if ds.Path == "" || ds.Target == "" {
				return fmt.Errorf("dataset %s: csv source needs path and target", ds.ID)
			}
			if slices.Contains(ds.Categorical, ds.Target) {
				return fmt.Errorf("dataset %s: target %q cannot be categorical", ds.ID, ds.Target)
			}
		case SourceSynthetic:
			if ds.Rows < 0 {
				return fmt.Errorf("dataset %s: rows must be >= 0", ds.ID)
			}
		default:
			return fmt.Errorf("dataset %s: invalid source %q", ds.ID, ds.Source)
		}
	}
	return nil
}
