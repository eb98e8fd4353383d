package shape

import (
	"math"
	"sort"
	"strconv"
)

// Evaluate returns one additive contribution per observed value.
//
// Degenerate input policy:
//
//	function has no knots                  -> all zeros
//	numeric knot/value count mismatch      -> all zeros
//	categorical label without a value      -> 0 for that label
//	label not in the table, index invalid  -> 0 for that row
//	NaN or unparsable numeric value        -> 0 for that row
//
// Categorical values may be given as labels or as numeric indices into
// categories. The result depends only on fn and the values, never on which
// split the values came from.
func Evaluate(fn Function, values Values, categories []string) []float64 {
	out := make([]float64, values.Len())
	if fn.Len() == 0 {
		return out
	}
	if fn.IsCategorical() {
		evaluateCategorical(fn, values, categories, out)
		return out
	}
	if len(fn.X) != len(fn.Y) {
		return out
	}

	xs, ys := SortPairs(fn.X, fn.Y)
	for i := range out {
		v, ok := values.number(i)
		if !ok {
			continue
		}
		out[i] = Interpolate(xs, ys, v)
	}
	return out
}

func evaluateCategorical(fn Function, values Values, categories []string, out []float64) {
	lookup := make(map[string]float64, len(fn.Labels))
	for i, label := range fn.Labels {
		if i < len(fn.Y) {
			lookup[label] = fn.Y[i]
		} else {
			lookup[label] = 0
		}
	}

	if values.Labels != nil {
		for i, label := range values.Labels {
			out[i] = lookup[label]
		}
		return
	}
	for i, v := range values.Numbers {
		label, ok := categoryAt(categories, v)
		if !ok {
			continue
		}
		out[i] = lookup[label]
	}
}

// categoryAt resolves a numeric category index. Halves round to even.
func categoryAt(categories []string, v float64) (string, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}
	idx := int(math.RoundToEven(v))
	if idx < 0 || idx >= len(categories) {
		return "", false
	}
	return categories[idx], true
}

func (v Values) number(i int) (float64, bool) {
	if v.Labels != nil {
		f, err := strconv.ParseFloat(v.Labels[i], 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	f := v.Numbers[i]
	return f, !math.IsNaN(f)
}

// Interpolate evaluates the piecewise-linear curve through sorted knots at v,
// clamping to the first and last value outside the knot range.
func Interpolate(xs, ys []float64, v float64) float64 {
	lo, hi, t := Bracket(xs, v)
	return ys[lo]*(1-t) + ys[hi]*t
}

// Bracket locates v among sorted knots. It returns the two knot indices
// surrounding v and the fractional position t of v between them, so the
// interpolated value is ys[lo]*(1-t) + ys[hi]*t. Outside the knot range both
// indices point at the boundary knot. xs must not be empty and v must not be NaN.
func Bracket(xs []float64, v float64) (lo, hi int, t float64) {
	last := len(xs) - 1
	if v <= xs[0] {
		return 0, 0, 0
	}
	if v >= xs[last] {
		return last, last, 0
	}
	hi = sort.SearchFloat64s(xs, v)
	lo = hi - 1
	t = (v - xs[lo]) / max(minSpan, xs[hi]-xs[lo])
	return lo, hi, t
}
