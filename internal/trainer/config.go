package trainer

import (
	"shapelab/internal/calibrate"
	"shapelab/internal/config"
	"shapelab/internal/gam"
)

// TestRatio is the held-out share of every dataset.
const TestRatio = 0.2

// Hyperparameter bounds.
const (
	MinEstimators    = 10
	MaxEstimators    = 500
	MinBoostRate     = 0.01
	MaxBoostRate     = 1.0
	MinReg           = 0.01
	MaxReg           = 10.0
	MinEarlyStopping = 5
	MaxEarlyStopping = 200
	MinPoints        = 2
	MaxPoints        = 250
)

// TrainingConfig is the fully resolved, clamped configuration of one request.
type TrainingConfig struct {
	Seed      int64
	TestRatio float64
	Points    int
	Task      calibrate.Task
	Model     string
	Params    gam.Params
}

// ClampEstimators bounds the boosting round count.
func ClampEstimators(n int) int { return min(max(n, MinEstimators), MaxEstimators) }

// ClampBoostRate bounds the learning rate.
func ClampBoostRate(r float64) float64 { return clampFloat(r, MinBoostRate, MaxBoostRate) }

// ClampReg bounds a regularization strength (init_reg, elm_alpha).
func ClampReg(r float64) float64 { return clampFloat(r, MinReg, MaxReg) }

// ClampEarlyStopping bounds the early-stopping patience.
func ClampEarlyStopping(n int) int { return min(max(n, MinEarlyStopping), MaxEarlyStopping) }

// ClampPoints bounds the resampling point count.
func ClampPoints(n int) int { return min(max(n, MinPoints), MaxPoints) }

// clampFloat maps NaN to lo.
func clampFloat(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	return min(v, hi)
}

// Resolve merges req over the defaults and clamps every numeric field.
func Resolve(req TrainRequest, defaults config.TrainingConfig, task calibrate.Task) TrainingConfig {
	points := defaults.Points
	if req.Points != nil {
		points = *req.Points
	}
	model := defaults.Model
	if req.Model != "" {
		model = req.Model
	}

	p := gam.Params{
		Task:          task,
		NEstimators:   pick(req.NEstimators, defaults.NEstimators),
		BoostRate:     pick(req.BoostRate, defaults.BoostRate),
		InitReg:       pick(req.InitReg, defaults.InitReg),
		ELMAlpha:      pick(req.ELMAlpha, defaults.ELMAlpha),
		EarlyStopping: pick(req.EarlyStopping, defaults.EarlyStopping),
		MaxKnots:      defaults.MaxKnots,
	}
	p.NEstimators = ClampEstimators(p.NEstimators)
	p.BoostRate = ClampBoostRate(p.BoostRate)
	p.InitReg = ClampReg(p.InitReg)
	p.ELMAlpha = ClampReg(p.ELMAlpha)
	p.EarlyStopping = ClampEarlyStopping(p.EarlyStopping)

	return TrainingConfig{
		Seed:      req.Seed,
		TestRatio: TestRatio,
		Points:    ClampPoints(points),
		Task:      task,
		Model:     model,
		Params:    p,
	}
}

func pick[T any](override *T, fallback T) T {
	if override != nil {
		return *override
	}
	return fallback
}
