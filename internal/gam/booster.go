package gam

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"shapelab/internal/calibrate"
	"shapelab/internal/dataset"
	"shapelab/internal/logging"
	"shapelab/internal/shape"
)

// DefaultMaxKnots bounds the knots of a numeric term when Params.MaxKnots is unset.
const DefaultMaxKnots = 32

// minImprovement is the loss decrease that resets the early-stopping counter.
const minImprovement = 1e-9

// term is one feature's linear spline or lookup table.
type term struct {
	key         string
	categorical bool
	knots       []float64
	labels      []string
	y           []float64
}

func (t *term) function() shape.Function {
	y := slices.Clone(t.y)
	if t.categorical {
		return shape.NewCategorical(slices.Clone(t.labels), y)
	}
	return shape.NewNumeric(slices.Clone(t.knots), y)
}

// basis holds, per row, the two knots a value falls between and its weight
// on the upper one. Categorical rows use lo only; lo < 0 means the row does
// not touch the term.
type basis struct {
	lo, hi []int
	t      []float64
}

func (b *basis) contribution(y []float64, i int) float64 {
	lo := b.lo[i]
	if lo < 0 {
		return 0
	}
	return y[lo]*(1-b.t[i]) + y[b.hi[i]]*b.t[i]
}

// Booster is a cyclic gradient-boosting fitter over piecewise-linear shape
// functions. Each round visits every unlocked feature once and moves its knot
// values by a regularized, hat-weighted mean of the current residuals.
//
// Booster implements Model, ShapeTable, ContinueFitter and Centerer.
type Booster struct {
	params Params

	mu        sync.Mutex
	terms     []*term
	index     map[string]*term
	intercept float64

	// Basis of the most recent fit, used for centering.
	lastBasis map[string]*basis
	lastRows  int
}

// NewBooster returns an unfitted booster.
func NewBooster(p Params) *Booster {
	if p.MaxKnots <= 0 {
		p.MaxKnots = DefaultMaxKnots
	}
	return &Booster{params: p}
}

// Intercept returns the model's internal bias.
func (b *Booster) Intercept() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.intercept
}

// Fit implements Model. Knots are placed from frame and every term starts at zero.
func (b *Booster) Fit(frame *dataset.Frame, y []float64) error {
	if err := checkInput(frame, y); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.terms = make([]*term, 0, len(frame.Keys))
	b.index = make(map[string]*term, len(frame.Keys))
	for _, key := range frame.Keys {
		t := b.newTerm(frame, key)
		b.terms = append(b.terms, t)
		b.index[key] = t
	}
	b.intercept = initialIntercept(b.params.Task, y)

	rounds := b.boost(frame, y, b.params.NEstimators, b.params.EarlyStopping, nil, true)
	logging.Get(logging.CategoryFitter).Debug("fit finished",
		zap.Int("rows", len(y)),
		zap.Int("features", len(b.terms)),
		zap.Int("rounds", rounds))
	return nil
}

// ContinueFit implements ContinueFitter. Locked features keep their current values.
func (b *Booster) ContinueFit(frame *dataset.Frame, y []float64, opts ContinueOptions) error {
	if err := checkInput(frame, y); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.terms == nil {
		return ErrNotFitted
	}
	for _, key := range frame.Keys {
		if b.index[key] == nil {
			return fmt.Errorf("feature %q was not part of the fit", key)
		}
	}

	patience := b.params.EarlyStopping
	if opts.EarlyStopping != nil {
		patience = *opts.EarlyStopping
	}
	locked := make(map[string]bool, len(opts.Locked))
	for _, key := range opts.Locked {
		locked[key] = true
	}

	rounds := b.boost(frame, y, opts.Rounds, patience, locked, false)
	logging.Get(logging.CategoryFitter).Debug("continue fit finished",
		zap.Int("rows", len(y)),
		zap.Int("rounds", rounds),
		zap.Strings("locked", opts.Locked))
	return nil
}

// FeatureDict implements ShapeTable. The returned functions are copies.
func (b *Booster) FeatureDict() map[string]shape.Function {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]shape.Function, len(b.terms))
	for _, t := range b.terms {
		out[t.key] = t.function()
	}
	return out
}

// UpdateFeatureDict implements ShapeTable. All updates are validated before any
// is applied.
func (b *Booster) UpdateFeatureDict(updates map[string]shape.Function) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.terms == nil {
		return ErrNotFitted
	}
	for key, fn := range updates {
		t := b.index[key]
		if t == nil {
			return fmt.Errorf("unknown feature %q", key)
		}
		if t.categorical != fn.IsCategorical() {
			return fmt.Errorf("feature %q: datatype %s does not match the model", key, fn.Datatype)
		}
		if fn.Empty() {
			return fmt.Errorf("feature %q: shape function needs matching, non-empty x and y", key)
		}
	}

	for key, fn := range updates {
		t := b.index[key]
		if t.categorical {
			t.labels = slices.Clone(fn.Labels)
			t.y = slices.Clone(fn.Y)
			continue
		}
		t.knots, t.y = shape.SortPairs(fn.X, fn.Y)
	}
	b.lastBasis = nil
	return nil
}

// CenterShapeFunctions implements Centerer. Means are taken over the rows of the
// most recent fit; excluded features are left as they are.
func (b *Booster) CenterShapeFunctions(exclude []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastRows == 0 || b.lastBasis == nil {
		return
	}
	for _, t := range b.terms {
		if slices.Contains(exclude, t.key) {
			continue
		}
		bs := b.lastBasis[t.key]
		if bs == nil {
			continue
		}
		sum := 0.0
		for i := range b.lastRows {
			sum += bs.contribution(t.y, i)
		}
		mean := sum / float64(b.lastRows)
		for k := range t.y {
			t.y[k] -= mean
		}
		b.intercept += mean
	}
}

// boost runs up to rounds cyclic passes and returns how many ran. firstReg
// selects InitReg for the first pass. Caller holds b.mu.
func (b *Booster) boost(frame *dataset.Frame, y []float64, rounds, patience int, locked map[string]bool, firstReg bool) int {
	n := len(y)
	bases := make(map[string]*basis, len(b.terms))
	for _, t := range b.terms {
		bases[t.key] = t.basis(frame.Column(t.key), frame.Categorical[t.key])
	}
	b.lastBasis, b.lastRows = bases, n

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = b.intercept
	}
	for _, t := range b.terms {
		bs := bases[t.key]
		for i := range raw {
			raw[i] += bs.contribution(t.y, i)
		}
	}
	if n == 0 {
		return 0
	}

	best := loss(b.params.Task, y, raw)
	stall := 0
	grad := make([]float64, n)
	done := 0
	for round := range rounds {
		reg := b.params.ELMAlpha
		if firstReg && round == 0 {
			reg = b.params.InitReg
		}
		for _, t := range b.terms {
			if locked[t.key] {
				continue
			}
			residuals(b.params.Task, y, raw, grad)
			t.step(bases[t.key], grad, raw, b.params.BoostRate, reg)
		}
		done++

		current := loss(b.params.Task, y, raw)
		if current < best-minImprovement {
			best, stall = current, 0
			continue
		}
		stall++
		if patience > 0 && stall >= patience {
			break
		}
	}
	return done
}

// step applies one boosting update to t and folds it into raw.
func (t *term) step(bs *basis, grad, raw []float64, rate, reg float64) {
	num := make([]float64, len(t.y))
	den := make([]float64, len(t.y))
	for i, g := range grad {
		lo := bs.lo[i]
		if lo < 0 {
			continue
		}
		w := bs.t[i]
		num[lo] += (1 - w) * g
		den[lo] += 1 - w
		num[bs.hi[i]] += w * g
		den[bs.hi[i]] += w
	}

	delta := make([]float64, len(t.y))
	for k := range delta {
		delta[k] = rate * num[k] / (den[k] + reg)
		t.y[k] += delta[k]
	}
	for i := range raw {
		raw[i] += bs.contribution(delta, i)
	}
}

func (b *Booster) newTerm(frame *dataset.Frame, key string) *term {
	col := frame.Column(key)
	if frame.IsCategorical(key) {
		labels := slices.Clone(frame.Categorical[key])
		if len(labels) == 0 {
			labels = distinct(col.Strings(nil))
		}
		return &term{key: key, categorical: true, labels: labels, y: make([]float64, len(labels))}
	}
	knots := quantileKnots(col.Values(), b.params.MaxKnots)
	return &term{key: key, knots: knots, y: make([]float64, len(knots))}
}

// basis locates every row of col on t. Missing or unknown values get lo = -1.
func (t *term) basis(col *dataset.Column, categories []string) *basis {
	n := col.Len()
	bs := &basis{lo: make([]int, n), hi: make([]int, n), t: make([]float64, n)}

	if t.categorical {
		pos := make(map[string]int, len(t.labels))
		for k, l := range t.labels {
			pos[l] = k
		}
		for i, label := range col.Strings(categories) {
			k, ok := pos[label]
			if !ok {
				k = -1
			}
			bs.lo[i], bs.hi[i] = k, max(k, 0)
		}
		return bs
	}

	values := col.Values()
	for i := range n {
		v, ok := numberAt(values, i)
		if !ok || len(t.knots) == 0 {
			bs.lo[i] = -1
			continue
		}
		bs.lo[i], bs.hi[i], bs.t[i] = shape.Bracket(t.knots, v)
	}
	return bs
}

// quantileKnots places at most maxKnots knots at empirical quantiles of the
// distinct observed values. Both extremes are always knots.
func quantileKnots(values shape.Values, maxKnots int) []float64 {
	var uniq []float64
	for i := range values.Len() {
		if v, ok := numberAt(values, i); ok {
			uniq = append(uniq, v)
		}
	}
	sort.Float64s(uniq)
	uniq = slices.Compact(uniq)
	if len(uniq) <= maxKnots {
		return uniq
	}

	knots := make([]float64, 0, maxKnots)
	for j := range maxKnots {
		p := float64(j) / float64(maxKnots-1)
		knots = append(knots, stat.Quantile(p, stat.Empirical, uniq, nil))
	}
	knots[0], knots[len(knots)-1] = uniq[0], uniq[len(uniq)-1]
	return slices.Compact(knots)
}

func numberAt(values shape.Values, i int) (float64, bool) {
	if values.Labels != nil {
		v, err := strconv.ParseFloat(values.Labels[i], 64)
		return v, err == nil && !math.IsNaN(v) && !math.IsInf(v, 0)
	}
	v := values.Numbers[i]
	return v, !math.IsNaN(v) && !math.IsInf(v, 0)
}

func distinct(labels []string) []string {
	out := slices.Clone(labels)
	sort.Strings(out)
	return slices.Compact(out)
}

func checkInput(frame *dataset.Frame, y []float64) error {
	if frame == nil {
		return fmt.Errorf("nil frame")
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	if len(y) != frame.Rows() {
		return fmt.Errorf("target has %d rows, frame has %d", len(y), frame.Rows())
	}
	return nil
}

func initialIntercept(task calibrate.Task, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	mean := stat.Mean(y, nil)
	if task == calibrate.Classification {
		p := min(max(mean, calibrate.MinRate), 1-calibrate.MinRate)
		return math.Log(p / (1 - p))
	}
	return mean
}

// residuals writes the negative loss gradient into grad.
func residuals(task calibrate.Task, y, raw, grad []float64) {
	for i := range y {
		if task == calibrate.Classification {
			grad[i] = y[i] - calibrate.Sigmoid(raw[i])
			continue
		}
		grad[i] = y[i] - raw[i]
	}
}

// loss is mean squared error for regression and mean log loss for classification.
func loss(task calibrate.Task, y, raw []float64) float64 {
	sum := 0.0
	for i := range y {
		if task == calibrate.Classification {
			p := min(max(calibrate.Sigmoid(raw[i]), 1e-12), 1-1e-12)
			sum -= y[i]*math.Log(p) + (1-y[i])*math.Log(1-p)
			continue
		}
		d := y[i] - raw[i]
		sum += d * d
	}
	return sum / float64(len(y))
}
