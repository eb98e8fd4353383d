package gam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"shapelab/internal/calibrate"
	"shapelab/internal/dataset"
	"shapelab/internal/metrics"
	"shapelab/internal/shape"
)

func testParams(task calibrate.Task) Params {
	return Params{
		Task:          task,
		NEstimators:   100,
		BoostRate:     0.1,
		InitReg:       1,
		ELMAlpha:      1,
		EarlyStopping: 50,
		MaxKnots:      8,
	}
}

func synthetic(t *testing.T, task calibrate.Task, rows int) *dataset.Frame {
	t.Helper()
	frame, err := (&dataset.Synthetic{Task: task, Rows: rows}).Load(11)
	require.NoError(t, err)
	return frame
}

// rawScores evaluates the exported shape functions plus the internal bias.
func rawScores(b *Booster, frame *dataset.Frame) []float64 {
	fns := b.FeatureDict()
	out := make([]float64, frame.Rows())
	for i := range out {
		out[i] = b.Intercept()
	}
	for _, key := range frame.Keys {
		contribs := shape.Evaluate(fns[key], frame.Column(key).Values(), frame.Categorical[key])
		for i, c := range contribs {
			out[i] += c
		}
	}
	return out
}

func TestBooster_FitRegression(t *testing.T) {
	frame := synthetic(t, calibrate.Regression, 300)
	b := NewBooster(testParams(calibrate.Regression))
	require.NoError(t, b.Fit(frame, frame.Target))

	m := metrics.Score(calibrate.Regression, frame.Target, rawScores(b, frame))
	require.NotNil(t, m.R2)
	assert.Greater(t, *m.R2, 0.5)
	assert.InDelta(t, stat.Mean(frame.Target, nil), stat.Mean(rawScores(b, frame), nil), 1.0)
}

func TestBooster_FitClassification(t *testing.T) {
	frame := synthetic(t, calibrate.Classification, 400)
	b := NewBooster(testParams(calibrate.Classification))
	require.NoError(t, b.Fit(frame, frame.Target))

	raw := rawScores(b, frame)
	m := metrics.Score(calibrate.Classification, frame.Target, calibrate.Predict(calibrate.Classification, raw, 0))
	require.NotNil(t, m.Accuracy)

	rate := stat.Mean(frame.Target, nil)
	baseline := max(rate, 1-rate)
	assert.Greater(t, *m.Accuracy, baseline)
}

func TestBooster_Knots(t *testing.T) {
	frame := synthetic(t, calibrate.Regression, 200)
	b := NewBooster(testParams(calibrate.Regression))
	require.NoError(t, b.Fit(frame, frame.Target))

	fns := b.FeatureDict()
	require.Len(t, fns, 3)

	temp := fns["Temperature"]
	assert.Equal(t, shape.Numeric, temp.Datatype)
	assert.LessOrEqual(t, temp.Len(), 8)
	assert.Len(t, temp.Y, temp.Len())
	values := frame.Column("Temperature").Numbers
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	assert.Equal(t, lo, temp.X[0])
	assert.Equal(t, hi, temp.X[len(temp.X)-1])

	weather := fns["Weathersituation"]
	assert.True(t, weather.IsCategorical())
	assert.Equal(t, frame.Categorical["Weathersituation"], weather.Labels)
}

func TestQuantileKnots(t *testing.T) {
	knots := quantileKnots(shape.Values{Numbers: []float64{3, 1, 2, 2, 1}}, 8)
	assert.Equal(t, []float64{1, 2, 3}, knots)

	knots = quantileKnots(shape.Values{Labels: []string{"4", "x", "2"}}, 8)
	assert.Equal(t, []float64{2, 4}, knots)

	many := make([]float64, 100)
	for i := range many {
		many[i] = float64(i)
	}
	knots = quantileKnots(shape.Values{Numbers: many}, 5)
	assert.Len(t, knots, 5)
	assert.Equal(t, 0.0, knots[0])
	assert.Equal(t, 99.0, knots[4])
}

func TestBooster_LockedFeatureUnchanged(t *testing.T) {
	frame := synthetic(t, calibrate.Regression, 200)
	b := NewBooster(testParams(calibrate.Regression))
	require.NoError(t, b.Fit(frame, frame.Target))

	edit := shape.NewNumeric([]float64{-8, 10, 39}, []float64{-5, 0, 5})
	require.NoError(t, b.UpdateFeatureDict(map[string]shape.Function{"Temperature": edit}))
	before := b.FeatureDict()

	require.NoError(t, b.ContinueFit(frame, frame.Target, ContinueOptions{
		Rounds: 20,
		Locked: []string{"Temperature"},
	}))

	after := b.FeatureDict()
	assert.Equal(t, edit.X, after["Temperature"].X)
	assert.Equal(t, edit.Y, after["Temperature"].Y)
	assert.NotEqual(t, before["Humidity"].Y, after["Humidity"].Y)
}

func TestBooster_ContinueFitEarlyStopping(t *testing.T) {
	frame := synthetic(t, calibrate.Regression, 100)
	b := NewBooster(testParams(calibrate.Regression))
	require.NoError(t, b.Fit(frame, frame.Target))

	patience := 1
	require.NoError(t, b.ContinueFit(frame, frame.Target, ContinueOptions{Rounds: 5, EarlyStopping: &patience}))
}

func TestBooster_Center(t *testing.T) {
	frame := synthetic(t, calibrate.Regression, 200)
	b := NewBooster(testParams(calibrate.Regression))
	require.NoError(t, b.Fit(frame, frame.Target))

	before := rawScores(b, frame)
	humidity := b.FeatureDict()["Humidity"]
	b.CenterShapeFunctions([]string{"Humidity"})
	after := rawScores(b, frame)

	assert.InDeltaSlice(t, before, after, 1e-9)
	assert.Equal(t, humidity.Y, b.FeatureDict()["Humidity"].Y)

	fns := b.FeatureDict()
	for _, key := range []string{"Temperature", "Weathersituation"} {
		contribs := shape.Evaluate(fns[key], frame.Column(key).Values(), frame.Categorical[key])
		assert.InDelta(t, 0, stat.Mean(contribs, nil), 1e-9, key)
	}
}

func TestBooster_UpdateErrors(t *testing.T) {
	b := NewBooster(testParams(calibrate.Regression))
	assert.ErrorIs(t, b.UpdateFeatureDict(nil), ErrNotFitted)

	frame := synthetic(t, calibrate.Regression, 50)
	assert.ErrorIs(t, b.ContinueFit(frame, frame.Target, ContinueOptions{Rounds: 1}), ErrNotFitted)
	require.NoError(t, b.Fit(frame, frame.Target))

	err := b.UpdateFeatureDict(map[string]shape.Function{"Wind": shape.NewNumeric([]float64{1}, []float64{1})})
	assert.ErrorContains(t, err, "unknown feature")

	err = b.UpdateFeatureDict(map[string]shape.Function{
		"Weathersituation": shape.NewNumeric([]float64{1}, []float64{1}),
	})
	assert.ErrorContains(t, err, "datatype")

	err = b.UpdateFeatureDict(map[string]shape.Function{
		"Temperature": shape.NewNumeric([]float64{1, 2}, []float64{1}),
	})
	assert.Error(t, err)
}

func TestBooster_UpdateSortsNumeric(t *testing.T) {
	frame := synthetic(t, calibrate.Regression, 50)
	b := NewBooster(testParams(calibrate.Regression))
	require.NoError(t, b.Fit(frame, frame.Target))

	require.NoError(t, b.UpdateFeatureDict(map[string]shape.Function{
		"Humidity": shape.NewNumeric([]float64{80, 20, 50}, []float64{3, 1, 2}),
	}))
	fn := b.FeatureDict()["Humidity"]
	assert.Equal(t, []float64{20, 50, 80}, fn.X)
	assert.Equal(t, []float64{1, 2, 3}, fn.Y)
}

func TestBooster_FitRejectsMismatchedTarget(t *testing.T) {
	frame := synthetic(t, calibrate.Regression, 20)
	b := NewBooster(testParams(calibrate.Regression))
	assert.Error(t, b.Fit(frame, frame.Target[:5]))
	assert.Error(t, b.Fit(nil, nil))
}

type fitOnly struct{}

func (fitOnly) Fit(*dataset.Frame, []float64) error { return nil }

func TestExport(t *testing.T) {
	frame := synthetic(t, calibrate.Regression, 50)

	basic, err := New(VariantBasic, testParams(calibrate.Regression))
	require.NoError(t, err)
	require.NoError(t, basic.Fit(frame, frame.Target))
	_, isTable := basic.(ShapeTable)
	_, canContinue := basic.(ContinueFitter)
	assert.False(t, isTable)
	assert.False(t, canContinue)

	fns, err := Export(basic)
	require.NoError(t, err)
	assert.Len(t, fns, 3)

	interactive, err := New(VariantInteractive, testParams(calibrate.Regression))
	require.NoError(t, err)
	require.NoError(t, interactive.Fit(frame, frame.Target))
	fns, err = Export(interactive)
	require.NoError(t, err)

	// Exported functions are copies.
	fns["Humidity"].Y[0] = 1e6
	again, err := Export(interactive)
	require.NoError(t, err)
	assert.NotEqual(t, 1e6, again["Humidity"].Y[0])

	_, err = Export(fitOnly{})
	assert.ErrorIs(t, err, ErrNoExport)

	_, err = New("gbm", testParams(calibrate.Regression))
	assert.Error(t, err)
}
