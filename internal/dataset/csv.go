package dataset

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

var missingTokens = map[string]bool{
	"": true, "?": true, "-": true, "NA": true, "NaN": true, "nan": true,
}

// CSVPipeline loads a feature table from a CSV file. Every column that is not
// the target, dropped, or listed as categorical is parsed as numeric. Missing
// numeric cells, and non-finite ones, are imputed with the column mean and
// missing categorical cells with the most frequent label; rows with a missing
// or non-finite target are dropped.
type CSVPipeline struct {
	Path        string
	Columns     []string // names for files without a header row
	Target      string
	Categorical []string
	Drop        []string
	Labels      map[string]string

	// PositivePrefix turns a string target into 0/1: values starting with it are 1.
	PositivePrefix string

	MaxRows int // 0 = unlimited
	Cache   *Cache
}

// Load implements Pipeline. The seed is unused; the file fully determines the frame.
func (p *CSVPipeline) Load(seed int64) (*Frame, error) {
	table, err := p.table()
	if err != nil {
		return nil, err
	}

	header := table.Header
	if len(p.Columns) > 0 {
		header = p.Columns
	}
	targetIdx := slices.Index(header, p.Target)
	if targetIdx < 0 {
		return nil, fmt.Errorf("target column %q not found in %s", p.Target, p.Path)
	}

	var keys []string
	var keyIdx []int
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == targetIdx || name == "" || slices.Contains(p.Drop, name) {
			continue
		}
		keys = append(keys, name)
		keyIdx = append(keyIdx, i)
	}
	for _, cat := range p.Categorical {
		if !slices.Contains(keys, cat) {
			return nil, fmt.Errorf("categorical column %q not found in %s", cat, p.Path)
		}
	}

	var target []float64
	raw := make([][]string, len(keys))
	for rowNum, row := range table.Rows {
		if p.MaxRows > 0 && len(target) >= p.MaxRows {
			break
		}
		cell := strings.TrimSpace(field(row, targetIdx))
		if missingTokens[cell] {
			continue
		}
		y, err := p.parseTarget(cell)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", p.Path, rowNum+1, err)
		}
		if math.IsInf(y, 0) || math.IsNaN(y) {
			continue
		}
		target = append(target, y)
		for k, idx := range keyIdx {
			raw[k] = append(raw[k], strings.TrimSpace(field(row, idx)))
		}
	}

	frame := &Frame{
		Keys:        keys,
		Columns:     make(map[string]*Column, len(keys)),
		Target:      target,
		Categorical: make(CategoricalInfo),
		Labels:      make(map[string]string, len(keys)),
	}
	for k, key := range keys {
		frame.Labels[key] = key
		if l, ok := p.Labels[key]; ok {
			frame.Labels[key] = l
		}

		if slices.Contains(p.Categorical, key) {
			labels, categories := imputeCategorical(raw[k])
			frame.Columns[key] = &Column{Key: key, Kind: Categorical, Labels: labels}
			frame.Categorical[key] = categories
			continue
		}
		values, err := imputeNumeric(raw[k])
		if err != nil {
			return nil, fmt.Errorf("%s column %q: %w", p.Path, key, err)
		}
		frame.Columns[key] = &Column{Key: key, Kind: Numeric, Numbers: values}
	}

	return frame, frame.Validate()
}

func (p *CSVPipeline) table() (*Table, error) {
	header := len(p.Columns) == 0
	if p.Cache != nil {
		return p.Cache.Table(p.Path, header)
	}
	return ReadTable(p.Path, header)
}

func (p *CSVPipeline) parseTarget(cell string) (float64, error) {
	if p.PositivePrefix != "" {
		if strings.HasPrefix(cell, p.PositivePrefix) {
			return 1, nil
		}
		return 0, nil
	}
	y, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("target %q is not numeric", cell)
	}
	return y, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func imputeNumeric(cells []string) ([]float64, error) {
	values := make([]float64, len(cells))
	sum, count := 0.0, 0
	for i, cell := range cells {
		if missingTokens[cell] {
			values[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not numeric; mark the column categorical or drop it", cell)
		}
		if math.IsInf(v, 0) || math.IsNaN(v) {
			// Imputed like a missing cell.
			values[i] = math.NaN()
			continue
		}
		values[i] = v
		sum += v
		count++
	}

	mean := 0.0
	if count > 0 {
		mean = sum / float64(count)
	}
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = mean
		}
	}
	return values, nil
}

// imputeCategorical fills missing labels with the most frequent one (ties go
// to the smallest label) and returns the sorted distinct categories.
func imputeCategorical(cells []string) ([]string, []string) {
	counts := make(map[string]int)
	for _, cell := range cells {
		if !missingTokens[cell] {
			counts[cell]++
		}
	}

	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	mode := ""
	for _, c := range categories {
		if counts[c] > counts[mode] || mode == "" {
			mode = c
		}
	}

	labels := make([]string, len(cells))
	for i, cell := range cells {
		if missingTokens[cell] {
			labels[i] = mode
			continue
		}
		labels[i] = cell
	}
	if mode == "" && len(cells) > 0 {
		// Entirely missing column: a single empty category.
		categories = []string{""}
	}
	return labels, categories
}
