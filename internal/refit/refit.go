// Package refit feeds user-edited partials back into a live model and runs
// additional boosting rounds with some features locked.
package refit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shapelab/internal/dataset"
	"shapelab/internal/gam"
	"shapelab/internal/logging"
	"shapelab/internal/partials"
	"shapelab/internal/shape"
)

// ErrUnsupportedOperation is returned when the model lacks a capability the
// operation needs.
var ErrUnsupportedOperation = errors.New("unsupported operation for this model")

// ErrInvalidEdit is returned when the model rejects an edited partial.
var ErrInvalidEdit = errors.New("invalid edit")

// Bounds for the incremental fit.
const (
	MinRounds        = 1
	MaxRounds        = 500
	MinEarlyStopping = 1
	MaxEarlyStopping = 200
)

// Edit is one refit request's user input. It is consumed once.
type Edit struct {
	Partials      []partials.Partial
	Locked        []string
	Rounds        int
	EarlyStopping *int
}

// ClampRounds bounds an additional-rounds count.
func ClampRounds(n int) int {
	return min(max(n, MinRounds), MaxRounds)
}

// ClampEarlyStopping bounds an early-stopping override; nil stays nil.
func ClampEarlyStopping(n *int) *int {
	if n == nil {
		return nil
	}
	v := min(max(*n, MinEarlyStopping), MaxEarlyStopping)
	return &v
}

// Updates converts edited partials into shape-function updates keyed by
// feature. Categorical values are padded with 0 or truncated to the category
// count; numeric knots are sorted by x. Edits with no knots are skipped.
func Updates(edits []partials.Partial, categorical dataset.CategoricalInfo) map[string]shape.Function {
	updates := make(map[string]shape.Function, len(edits))
	for _, p := range edits {
		if categories, ok := categorical[p.Key]; ok {
			ys := make([]float64, len(categories))
			copy(ys, p.EditableY)
			updates[p.Key] = shape.NewCategorical(append([]string{}, categories...), ys)
			continue
		}

		n := min(len(p.EditableX), len(p.EditableY))
		if n == 0 {
			continue
		}
		xs, ys := shape.SortPairs(p.EditableX[:n], p.EditableY[:n])
		updates[p.Key] = shape.NewNumeric(xs, ys)
	}
	return updates
}

// ApplyEdits writes the edited partials into m's shape table in one batch.
// It returns the keys that were updated.
func ApplyEdits(m gam.Model, edits []partials.Partial, categorical dataset.CategoricalInfo) ([]string, error) {
	table, ok := m.(gam.ShapeTable)
	if !ok {
		return nil, fmt.Errorf("%w: model has no mutable shape table", ErrUnsupportedOperation)
	}

	updates := Updates(edits, categorical)
	if len(updates) == 0 {
		return nil, nil
	}
	if err := table.UpdateFeatureDict(updates); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEdit, err)
	}

	keys := make([]string, 0, len(updates))
	seen := make(map[string]bool, len(updates))
	for _, p := range edits {
		if _, ok := updates[p.Key]; ok && !seen[p.Key] {
			seen[p.Key] = true
			keys = append(keys, p.Key)
		}
	}
	logging.Get(logging.CategoryTrainer).Debug("applied edits", zap.Strings("features", keys))
	return keys, nil
}

// ContinueFit runs edit.Rounds more boosting rounds when the count is positive
// and the model supports incremental fitting. It reports whether a fit ran.
func ContinueFit(m gam.Model, frame *dataset.Frame, y []float64, edit Edit) (bool, error) {
	if edit.Rounds <= 0 {
		return false, nil
	}
	fitter, ok := m.(gam.ContinueFitter)
	if !ok {
		return false, nil
	}

	opts := gam.ContinueOptions{
		Rounds:        ClampRounds(edit.Rounds),
		EarlyStopping: ClampEarlyStopping(edit.EarlyStopping),
		Locked:        edit.Locked,
	}
	if err := fitter.ContinueFit(frame, y, opts); err != nil {
		return false, fmt.Errorf("continue fit: %w", err)
	}
	return true, nil
}
