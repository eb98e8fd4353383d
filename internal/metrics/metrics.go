// Package metrics scores predictions against targets for the summary panels.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"shapelab/internal/calibrate"
)

// Threshold splits probabilities and binary targets into classes.
const Threshold = 0.5

// Metrics summarises one split. Fields that do not apply to the task, and
// every field of an empty split, are nil.
type Metrics struct {
	RMSE     *float64 `json:"rmse"`
	R2       *float64 `json:"r2"`
	Accuracy *float64 `json:"acc"`
	Count    int      `json:"count"`
}

// Score computes accuracy for classification, or RMSE and R² for regression.
// yTrue and yPred must have the same length.
//
//	empty split          -> all fields nil, Count 0
//	constant regression  -> R2 = 0
func Score(task calibrate.Task, yTrue, yPred []float64) Metrics {
	n := len(yTrue)
	if n == 0 {
		return Metrics{}
	}

	if task == calibrate.Classification {
		hits := 0
		for i := range yTrue {
			if (yTrue[i] >= Threshold) == (yPred[i] >= Threshold) {
				hits++
			}
		}
		acc := float64(hits) / float64(n)
		return Metrics{Accuracy: &acc, Count: n}
	}

	dist := floats.Distance(yTrue, yPred, 2)
	ssRes := dist * dist
	rmse := math.Sqrt(ssRes / float64(n))

	mean := stat.Mean(yTrue, nil)
	ssTot := 0.0
	for _, v := range yTrue {
		d := v - mean
		ssTot += d * d
	}
	r2 := 0.0
	if ssTot != 0 {
		r2 = 1 - ssRes/ssTot
	}
	return Metrics{RMSE: &rmse, R2: &r2, Count: n}
}
