// Package partials builds the editable, UI-facing view of each feature's
// shape function.
package partials

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"shapelab/internal/dataset"
	"shapelab/internal/shape"
)

// MinGridPoints is the smallest fallback grid for a numeric feature.
const MinGridPoints = 2

// Partial is one feature's editable curve plus its observed values.
// Categorical partials use category indices as EditableX.
type Partial struct {
	Key        string    `json:"key"`
	Label      string    `json:"label"`
	Categories []string  `json:"categories,omitempty"`
	ScatterX   any       `json:"scatterX,omitempty"`
	EditableX  []float64 `json:"editableX"`
	EditableY  []float64 `json:"editableY"`
}

// IsCategorical reports whether p was built for a categorical feature.
func (p Partial) IsCategorical() bool {
	return p.Categories != nil
}

// Build returns one partial per feature of frame, in frame.Keys order. fns are
// the already resampled shape functions; a numeric feature without one gets a
// flat curve of points knots over the observed range. Scatter values come from
// frame, which is the split being rendered.
//
//	category missing from its function -> 0
//	numeric function missing or empty  -> zeros on a uniform grid
//	constant numeric column            -> grid widened to [v-1, v+1]
func Build(frame *dataset.Frame, fns map[string]shape.Function, points int) []Partial {
	out := make([]Partial, 0, len(frame.Keys))
	for _, key := range frame.Keys {
		col := frame.Column(key)
		p := Partial{Key: key, Label: frame.Label(key)}

		if frame.IsCategorical(key) {
			categories := frame.Categorical[key]
			p.Categories = append([]string{}, categories...)
			p.ScatterX = col.Strings(categories)
			p.EditableX = indexAxis(len(categories))
			p.EditableY = categoryValues(fns[key], categories)
			out = append(out, p)
			continue
		}

		p.ScatterX = scatterNumbers(col)
		fn, ok := fns[key]
		if ok && !fn.IsCategorical() && !fn.Empty() {
			p.EditableX = append([]float64{}, fn.X...)
			p.EditableY = append([]float64{}, fn.Y...)
		} else {
			p.EditableX, p.EditableY = flatCurve(col, points)
		}
		out = append(out, p)
	}
	return out
}

func indexAxis(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

// categoryValues reads fn's value for each category; categories it does not
// list get 0.
func categoryValues(fn shape.Function, categories []string) []float64 {
	lookup := make(map[string]float64, len(fn.Labels))
	for i, label := range fn.Labels {
		if i < len(fn.Y) {
			lookup[label] = fn.Y[i]
		}
	}
	ys := make([]float64, len(categories))
	for i, c := range categories {
		ys[i] = lookup[c]
	}
	return ys
}

func scatterNumbers(col *dataset.Column) []float64 {
	if col == nil {
		return []float64{}
	}
	return append([]float64{}, col.Numbers...)
}

// flatCurve spans the observed range of col with zeros, widening a
// zero-width range by 1 on each side.
func flatCurve(col *dataset.Column, points int) ([]float64, []float64) {
	points = max(points, MinGridPoints)
	lo, hi := math.Inf(1), math.Inf(-1)
	if col != nil {
		for _, v := range col.Numbers {
			if math.IsNaN(v) {
				continue
			}
			lo, hi = min(lo, v), max(hi, v)
		}
	}
	if lo > hi {
		lo, hi = 0, 0
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	return floats.Span(make([]float64, points), lo, hi), make([]float64, points)
}
