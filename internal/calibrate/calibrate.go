// Package calibrate computes the single global intercept added to the summed
// per-feature contributions, and turns calibrated totals into predictions.
package calibrate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Task is the kind of prediction problem.
type Task string

const (
	Regression     Task = "regression"
	Classification Task = "classification"
)

// ParseTask validates a task name.
func ParseTask(s string) (Task, error) {
	switch Task(s) {
	case Regression, Classification:
		return Task(s), nil
	default:
		return "", fmt.Errorf("unknown task %q (valid: regression, classification)", s)
	}
}

// Bisection bounds for the classification intercept search.
const (
	SearchLow        = -12.0
	SearchHigh       = 12.0
	SearchIterations = 40

	// Target positive rates are clamped into [MinRate, 1-MinRate] so a
	// single-class training split still has a finite intercept.
	MinRate = 1e-4
)

// Sigmoid is the logistic function.
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Intercept returns the offset that makes aggregate predictions match the
// training targets.
//
// Regression uses the closed form mean(y - total), which zeroes the mean
// residual. Classification bisects [SearchLow, SearchHigh] for a fixed
// SearchIterations steps so that mean(sigmoid(total + b)) matches the clamped
// positive rate; only the first moment is calibrated.
//
// An empty training split yields 0 for both tasks. y and total must have the
// same length.
func Intercept(task Task, y, total []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	if task == Classification {
		return bisect(y, total)
	}

	residual := make([]float64, len(y))
	for i := range y {
		residual[i] = y[i] - total[i]
	}
	return stat.Mean(residual, nil)
}

func bisect(y, total []float64) float64 {
	target := min(max(stat.Mean(y, nil), MinRate), 1-MinRate)

	low, high := SearchLow, SearchHigh
	for range SearchIterations {
		mid := (low + high) / 2
		if meanProbability(total, mid) < target {
			low = mid
		} else {
			high = mid
		}
	}
	return (low + high) / 2
}

func meanProbability(total []float64, offset float64) float64 {
	sum := 0.0
	for _, v := range total {
		sum += Sigmoid(v + offset)
	}
	return sum / float64(len(total))
}

// Predict applies the intercept to per-row totals: identity for regression,
// logistic for classification. The result is never nil.
func Predict(task Task, total []float64, intercept float64) []float64 {
	out := make([]float64, len(total))
	for i, v := range total {
		if task == Classification {
			out[i] = Sigmoid(v + intercept)
		} else {
			out[i] = v + intercept
		}
	}
	return out
}
