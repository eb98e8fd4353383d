// Package shape holds the per-feature shape functions of an additive model and the two
// numeric primitives built on them: resampling a curve onto a fixed number of knots and
// evaluating a curve or lookup table at observed feature values.
package shape

import (
	"encoding/json"
	"fmt"
)

// Datatype tags a shape function as a numeric curve or a categorical lookup table.
type Datatype string

const (
	Numeric     Datatype = "numeric"
	Categorical Datatype = "categorical"
)

// Function is one feature's shape function.
// Numeric functions use X as knot positions; categorical functions use Labels.
// Y always holds one contribution per knot or label.
type Function struct {
	Datatype Datatype
	X        []float64
	Labels   []string
	Y        []float64
}

// NewNumeric builds a numeric shape function. The slices are not copied.
func NewNumeric(x, y []float64) Function {
	return Function{Datatype: Numeric, X: x, Y: y}
}

// NewCategorical builds a categorical shape function. The slices are not copied.
func NewCategorical(labels []string, y []float64) Function {
	return Function{Datatype: Categorical, Labels: labels, Y: y}
}

// IsCategorical reports whether f is a lookup table.
func (f Function) IsCategorical() bool {
	return f.Datatype == Categorical
}

// Len returns the number of knots (numeric) or labels (categorical).
func (f Function) Len() int {
	if f.IsCategorical() {
		return len(f.Labels)
	}
	return len(f.X)
}

// Empty reports whether f carries no usable signal: no knots, no values,
// or mismatched knot and value counts.
func (f Function) Empty() bool {
	n := f.Len()
	return n == 0 || len(f.Y) == 0 || n != len(f.Y)
}

// Clone returns a deep copy of f.
func (f Function) Clone() Function {
	out := Function{Datatype: f.Datatype}
	if f.X != nil {
		out.X = append([]float64(nil), f.X...)
	}
	if f.Labels != nil {
		out.Labels = append([]string(nil), f.Labels...)
	}
	if f.Y != nil {
		out.Y = append([]float64(nil), f.Y...)
	}
	return out
}

type numericJSON struct {
	Datatype Datatype  `json:"datatype"`
	X        []float64 `json:"x"`
	Y        []float64 `json:"y"`
}

type categoricalJSON struct {
	Datatype Datatype  `json:"datatype"`
	X        []string  `json:"x"`
	Y        []float64 `json:"y"`
}

// MarshalJSON writes the {datatype, x, y} form shared with the frontend.
func (f Function) MarshalJSON() ([]byte, error) {
	y := f.Y
	if y == nil {
		y = []float64{}
	}
	if f.IsCategorical() {
		x := f.Labels
		if x == nil {
			x = []string{}
		}
		return json.Marshal(categoricalJSON{Datatype: Categorical, X: x, Y: y})
	}
	x := f.X
	if x == nil {
		x = []float64{}
	}
	return json.Marshal(numericJSON{Datatype: Numeric, X: x, Y: y})
}

// UnmarshalJSON reads the {datatype, x, y} form. A missing datatype means numeric.
func (f *Function) UnmarshalJSON(data []byte) error {
	var head struct {
		Datatype Datatype `json:"datatype"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Datatype {
	case Categorical:
		var c categoricalJSON
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("categorical shape function: %w", err)
		}
		*f = NewCategorical(c.X, c.Y)
	case Numeric, "":
		var n numericJSON
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("numeric shape function: %w", err)
		}
		*f = NewNumeric(n.X, n.Y)
	default:
		return fmt.Errorf("unknown shape function datatype %q", head.Datatype)
	}
	return nil
}

// Values are the observed values of one feature for one split.
// Labels takes precedence when both are set.
type Values struct {
	Numbers []float64
	Labels  []string
}

// Len returns the number of rows.
func (v Values) Len() int {
	if v.Labels != nil {
		return len(v.Labels)
	}
	return len(v.Numbers)
}
