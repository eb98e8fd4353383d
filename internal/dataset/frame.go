// Package dataset provides the preprocessing collaborators: pipelines that turn
// a seed into a feature table, a target vector, categorical metadata and
// display labels.
package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"shapelab/internal/shape"
)

// Kind distinguishes numeric from categorical columns.
type Kind string

const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
)

// CategoricalInfo maps a categorical feature key to its ordered, de-duplicated
// category labels.
type CategoricalInfo map[string][]string

// Column holds one feature's values. Categorical columns carry labels, or
// category indices in Numbers when Labels is nil.
type Column struct {
	Key     string
	Kind    Kind
	Numbers []float64
	Labels  []string
}

// Len returns the number of rows.
func (c *Column) Len() int {
	return c.Values().Len()
}

// Values returns the column in the form the contribution evaluator reads.
func (c *Column) Values() shape.Values {
	return shape.Values{Numbers: c.Numbers, Labels: c.Labels}
}

// Strings returns the values as strings, the scatter form of categorical
// features. Category indices are resolved through categories when possible.
func (c *Column) Strings(categories []string) []string {
	if c.Labels != nil {
		return append([]string{}, c.Labels...)
	}
	out := make([]string, len(c.Numbers))
	for i, v := range c.Numbers {
		idx := int(math.RoundToEven(v))
		if c.Kind == Categorical && !math.IsNaN(v) && idx >= 0 && idx < len(categories) {
			out[i] = categories[idx]
			continue
		}
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func (c *Column) subset(rows []int) *Column {
	out := &Column{Key: c.Key, Kind: c.Kind}
	if c.Labels != nil {
		out.Labels = make([]string, len(rows))
		for i, r := range rows {
			out.Labels[i] = c.Labels[r]
		}
		return out
	}
	out.Numbers = make([]float64, len(rows))
	for i, r := range rows {
		out.Numbers[i] = c.Numbers[r]
	}
	return out
}

// Frame is a feature table plus its target. Keys fixes the feature order that
// every downstream stage preserves.
type Frame struct {
	Keys        []string
	Columns     map[string]*Column
	Target      []float64
	Categorical CategoricalInfo
	Labels      map[string]string
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	return len(f.Target)
}

// Column returns the column for key, or nil.
func (f *Frame) Column(key string) *Column {
	return f.Columns[key]
}

// Label returns the display label for key, falling back to the key itself.
func (f *Frame) Label(key string) string {
	if l, ok := f.Labels[key]; ok && l != "" {
		return l
	}
	return key
}

// IsCategorical reports whether key has categorical metadata.
func (f *Frame) IsCategorical(key string) bool {
	_, ok := f.Categorical[key]
	return ok
}

// Validate checks that every key has a column of the target's length.
func (f *Frame) Validate() error {
	if len(f.Keys) == 0 {
		return fmt.Errorf("frame has no features")
	}
	seen := make(map[string]bool, len(f.Keys))
	for _, key := range f.Keys {
		if seen[key] {
			return fmt.Errorf("duplicate feature %q", key)
		}
		seen[key] = true
		col := f.Columns[key]
		if col == nil {
			return fmt.Errorf("feature %q has no column", key)
		}
		if col.Len() != f.Rows() {
			return fmt.Errorf("feature %q has %d rows, target has %d", key, col.Len(), f.Rows())
		}
	}
	return nil
}

// Subset returns a new frame holding the given rows in the given order.
// Metadata maps are shared.
func (f *Frame) Subset(rows []int) *Frame {
	out := &Frame{
		Keys:        f.Keys,
		Columns:     make(map[string]*Column, len(f.Columns)),
		Target:      make([]float64, len(rows)),
		Categorical: f.Categorical,
		Labels:      f.Labels,
	}
	for i, r := range rows {
		out.Target[i] = f.Target[r]
	}
	for key, col := range f.Columns {
		out.Columns[key] = col.subset(rows)
	}
	return out
}

// Split shuffles rows with a generator seeded by seed and holds out
// ceil(ratio*n) rows for testing. At least one row stays in the training
// split whenever the frame is non-empty.
func (f *Frame) Split(seed int64, ratio float64) (train, test *Frame) {
	n := f.Rows()
	rng := rand.New(rand.NewPCG(uint64(seed), 0x5eed))
	perm := rng.Perm(n)

	nTest := int(math.Ceil(ratio * float64(n)))
	nTest = max(0, min(nTest, n-1))
	return f.Subset(perm[nTest:]), f.Subset(perm[:nTest])
}
