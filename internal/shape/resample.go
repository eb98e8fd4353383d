package shape

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// minSpan floors the distance between adjacent knots when interpolating,
// so coincident knots never divide by zero.
const minSpan = 1e-9

type knot struct {
	x, y float64
}

// SortPairs returns copies of xs and ys ordered by x. Duplicate x values keep
// their input order.
func SortPairs(xs, ys []float64) ([]float64, []float64) {
	knots := make([]knot, len(xs))
	for i := range xs {
		knots[i] = knot{x: xs[i], y: ys[i]}
	}
	sort.SliceStable(knots, func(i, j int) bool { return knots[i].x < knots[j].x })

	sx := make([]float64, len(knots))
	sy := make([]float64, len(knots))
	for i, k := range knots {
		sx[i], sy[i] = k.x, k.y
	}
	return sx, sy
}

// Resample evaluates the piecewise-linear curve through (xs, ys) at n evenly
// spaced positions covering [min(xs), max(xs)].
//
// Degenerate input never fails: empty xs or ys yields an empty curve, and a
// length mismatch yields a zero-filled curve over the domain of xs.
func Resample(xs, ys []float64, n int) ([]float64, []float64) {
	if len(xs) == 0 || len(ys) == 0 {
		return []float64{}, []float64{}
	}

	if len(xs) != len(ys) {
		sx := append([]float64(nil), xs...)
		sort.Float64s(sx)
		if n <= 1 {
			return []float64{sx[0]}, []float64{0}
		}
		grid := make([]float64, n)
		floats.Span(grid, sx[0], sx[len(sx)-1])
		return grid, make([]float64, n)
	}

	sx, sy := SortPairs(xs, ys)
	if n <= 1 {
		return []float64{sx[0]}, []float64{sy[0]}
	}

	grid := make([]float64, n)
	floats.Span(grid, sx[0], sx[len(sx)-1])
	out := make([]float64, n)
	for i, target := range grid {
		out[i] = scanInterpolate(sx, sy, target)
	}
	return grid, out
}

// scanInterpolate interpolates inside the first interval containing target.
// A target outside every interval clamps to the nearest boundary knot.
func scanInterpolate(sx, sy []float64, target float64) float64 {
	for j := 0; j+1 < len(sx); j++ {
		if sx[j] <= target && target <= sx[j+1] {
			t := (target - sx[j]) / max(minSpan, sx[j+1]-sx[j])
			return sy[j]*(1-t) + sy[j+1]*t
		}
	}
	if target <= sx[0] {
		return sy[0]
	}
	return sy[len(sy)-1]
}

// NormalizePointCount resamples every numeric shape function to exactly n knots
// so callers always see the same number of editable points per numeric feature.
// Categorical functions are returned untouched. The input map is not modified.
func NormalizePointCount(functions map[string]Function, n int) map[string]Function {
	out := make(map[string]Function, len(functions))
	for key, fn := range functions {
		if fn.IsCategorical() {
			out[key] = fn
			continue
		}
		x, y := Resample(fn.X, fn.Y, n)
		out[key] = NewNumeric(x, y)
	}
	return out
}
