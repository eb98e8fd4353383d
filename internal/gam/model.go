// Package gam defines the additive-model contract the training pipeline talks
// to and ships a reference fitter that satisfies it.
//
// Models are capability-tagged: every model can Fit, and callers discover
// what else it can do (export, live shape table, incremental fit, centering)
// with type assertions rather than by variant name.
package gam

import (
	"errors"
	"fmt"

	"shapelab/internal/calibrate"
	"shapelab/internal/dataset"
	"shapelab/internal/shape"
)

// Model variants.
const (
	VariantBasic       = "basic"
	VariantInteractive = "interactive"
)

var (
	// ErrNoExport is returned by Export for models that expose no shape functions.
	ErrNoExport = errors.New("model does not export shape functions")
	// ErrNotFitted is returned when an operation needs a fitted model.
	ErrNotFitted = errors.New("model has not been fitted")
)

// Model is anything that can be fitted on a feature table.
type Model interface {
	Fit(frame *dataset.Frame, y []float64) error
}

// Exporter returns the current shape functions keyed by feature.
type Exporter interface {
	ShapeFunctions() map[string]shape.Function
}

// ShapeTable is a live, mutable table of shape functions.
type ShapeTable interface {
	FeatureDict() map[string]shape.Function
	UpdateFeatureDict(updates map[string]shape.Function) error
}

// ContinueOptions controls an incremental fit.
type ContinueOptions struct {
	Rounds        int
	EarlyStopping *int // nil keeps the model's own patience
	Locked        []string
}

// ContinueFitter runs additional boosting rounds on a fitted model.
type ContinueFitter interface {
	ContinueFit(frame *dataset.Frame, y []float64, opts ContinueOptions) error
}

// Centerer moves each feature's mean contribution into the model intercept.
type Centerer interface {
	CenterShapeFunctions(exclude []string)
}

// Params are the fitter hyperparameters. Callers clamp them before use.
type Params struct {
	Task          calibrate.Task
	NEstimators   int
	BoostRate     float64
	InitReg       float64
	ELMAlpha      float64
	EarlyStopping int
	MaxKnots      int
}

// New builds a model of the given variant.
func New(variant string, p Params) (Model, error) {
	switch variant {
	case VariantInteractive:
		return NewBooster(p), nil
	case VariantBasic:
		return &Basic{booster: NewBooster(p)}, nil
	default:
		return nil, fmt.Errorf("unknown model variant %q", variant)
	}
}

// Export returns a copy of m's shape functions, preferring the direct export
// and falling back to the live shape table.
func Export(m Model) (map[string]shape.Function, error) {
	var fns map[string]shape.Function
	switch v := m.(type) {
	case Exporter:
		fns = v.ShapeFunctions()
	case ShapeTable:
		fns = v.FeatureDict()
	default:
		return nil, ErrNoExport
	}

	out := make(map[string]shape.Function, len(fns))
	for key, fn := range fns {
		out[key] = fn.Clone()
	}
	return out, nil
}

// Basic is the fit-and-export-only variant.
type Basic struct {
	booster *Booster
}

// Fit implements Model.
func (b *Basic) Fit(frame *dataset.Frame, y []float64) error {
	return b.booster.Fit(frame, y)
}

// ShapeFunctions implements Exporter.
func (b *Basic) ShapeFunctions() map[string]shape.Function {
	return b.booster.FeatureDict()
}
