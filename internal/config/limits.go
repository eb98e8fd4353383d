package config

import "fmt"

// Limits enforces process-wide resource constraints.
type Limits struct {
	MaxBodyBytes        int64 `yaml:"max_body_bytes" json:"max_body_bytes"`             // Request body cap for the HTTP transport
	MaxRows             int   `yaml:"max_rows" json:"max_rows"`                         // Rows read from a CSV dataset (0 = unlimited)
	GenerateConcurrency int   `yaml:"generate_concurrency" json:"generate_concurrency"` // Parallel datasets in generate-models
}

// DefaultLimits returns the default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBodyBytes:        32 << 20,
		MaxRows:             0,
		GenerateConcurrency: 2,
	}
}

// ValidateLimits checks that limits are within acceptable ranges.
func (c *Config) ValidateLimits() error {
	if c.Limits.MaxBodyBytes < 1<<10 {
		return fmt.Errorf("max_body_bytes must be >= 1024")
	}
	if c.Limits.MaxRows < 0 {
		return fmt.Errorf("max_rows must be >= 0")
	}
	if c.Limits.GenerateConcurrency < 1 {
		return fmt.Errorf("generate_concurrency must be >= 1")
	}
	return nil
}
