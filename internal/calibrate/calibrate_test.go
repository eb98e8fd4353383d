package calibrate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestIntercept_RegressionMeansMatch(t *testing.T) {
	y := []float64{3, 7, 1.5, 10, -2, 4.25}
	total := []float64{0.5, 2, -1, 6, 0, 1.25}

	b := Intercept(Regression, y, total)
	preds := Predict(Regression, total, b)

	assert.InDelta(t, stat.Mean(y, nil), stat.Mean(preds, nil), 1e-12)
}

func TestIntercept_ClassificationMatchesRate(t *testing.T) {
	y := []float64{1, 0, 0, 1, 0, 0, 0, 1, 0, 0}
	total := []float64{0.8, -0.3, 0.1, 1.2, -2, 0.4, -0.7, 0.9, 0, -1.1}

	b := Intercept(Classification, y, total)
	preds := Predict(Classification, total, b)

	bound := math.Pow(2, -40) * 24
	assert.InDelta(t, 0.3, stat.Mean(preds, nil), bound)
	for _, p := range preds {
		assert.True(t, p > 0 && p < 1)
	}
}

func TestIntercept_ClassificationDegenerateRate(t *testing.T) {
	total := []float64{0, 0, 0}

	allNegative := Intercept(Classification, []float64{0, 0, 0}, total)
	require.False(t, math.IsNaN(allNegative))
	assert.InDelta(t, MinRate, Sigmoid(allNegative), 1e-9)

	allPositive := Intercept(Classification, []float64{1, 1, 1}, total)
	assert.InDelta(t, 1-MinRate, Sigmoid(allPositive), 1e-9)
	assert.LessOrEqual(t, allPositive, SearchHigh)
}

func TestIntercept_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Intercept(Regression, nil, nil))
	assert.Equal(t, 0.0, Intercept(Classification, []float64{}, []float64{}))
}

func TestPredict(t *testing.T) {
	assert.Equal(t, []float64{1.5, -0.5}, Predict(Regression, []float64{1, -1}, 0.5))
	assert.InDeltaSlice(t, []float64{0.5, Sigmoid(2)}, Predict(Classification, []float64{-1, 1}, 1), 1e-12)
	assert.NotNil(t, Predict(Regression, nil, 3))
}

func TestParseTask(t *testing.T) {
	task, err := ParseTask("classification")
	require.NoError(t, err)
	assert.Equal(t, Classification, task)

	_, err = ParseTask("ranking")
	assert.Error(t, err)
}
