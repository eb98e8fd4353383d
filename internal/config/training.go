package config

import (
	"fmt"
	"slices"
)

// Model variants. Basic models only fit and export; interactive models also
// expose a mutable shape table and incremental fitting.
const (
	ModelBasic       = "basic"
	ModelInteractive = "interactive"
)

// ValidModels lists all supported model variants.
var ValidModels = []string{ModelBasic, ModelInteractive}

// TrainingConfig holds request defaults. Requests may override every field;
// the trainer clamps the result to safe ranges.
type TrainingConfig struct {
	Model         string  `yaml:"model" json:"model,omitempty"`
	Points        int     `yaml:"points" json:"points,omitempty"`
	NEstimators   int     `yaml:"n_estimators" json:"n_estimators,omitempty"`
	BoostRate     float64 `yaml:"boost_rate" json:"boost_rate,omitempty"`
	InitReg       float64 `yaml:"init_reg" json:"init_reg,omitempty"`
	ELMAlpha      float64 `yaml:"elm_alpha" json:"elm_alpha,omitempty"`
	EarlyStopping int     `yaml:"early_stopping" json:"early_stopping,omitempty"`
	MaxKnots      int     `yaml:"max_knots" json:"max_knots,omitempty"` // knots per numeric feature in the reference fitter
}

// DefaultTrainingConfig returns the built-in request defaults.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Model:         ModelInteractive,
		Points:        10,
		NEstimators:   100,
		BoostRate:     0.1,
		InitReg:       1,
		ELMAlpha:      1,
		EarlyStopping: 50,
		MaxKnots:      32,
	}
}

// Validate checks the training defaults.
func (t *TrainingConfig) Validate() error {
	if !slices.Contains(ValidModels, t.Model) {
		return fmt.Errorf("invalid training model: %s (valid: %v)", t.Model, ValidModels)
	}
	if t.Points < 1 {
		return fmt.Errorf("training points must be >= 1")
	}
	if t.NEstimators < 1 {
		return fmt.Errorf("training n_estimators must be >= 1")
	}
	if t.BoostRate <= 0 {
		return fmt.Errorf("training boost_rate must be > 0")
	}
	if t.MaxKnots < 2 {
		return fmt.Errorf("training max_knots must be >= 2")
	}
	return nil
}
