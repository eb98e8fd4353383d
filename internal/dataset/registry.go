package dataset

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"shapelab/internal/calibrate"
	"shapelab/internal/config"
)

// ErrUnknownDataset is returned for dataset IDs that have no pipeline.
var ErrUnknownDataset = errors.New("unsupported dataset")

// Pipeline produces a preprocessed frame. Implementations own imputation,
// encoding and column selection; seed is passed through for pipelines that
// sample.
type Pipeline interface {
	Load(seed int64) (*Frame, error)
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(seed int64) (*Frame, error)

// Load calls fn.
func (fn PipelineFunc) Load(seed int64) (*Frame, error) { return fn(seed) }

// Entry is a registered dataset.
type Entry struct {
	ID       string
	Task     calibrate.Task
	Pipeline Pipeline
}

// Registry maps dataset IDs to pipelines. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a pipeline. IDs must be unique.
func (r *Registry) Register(id string, task calibrate.Task, p Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("dataset %s already registered", id)
	}
	r.entries[id] = Entry{ID: id, Task: task, Pipeline: p}
	return nil
}

// Lookup returns the entry for id or ErrUnknownDataset.
func (r *Registry) Lookup(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownDataset, id)
	}
	return e, nil
}

// IDs returns the registered IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FromConfig builds a registry from dataset definitions. CSV pipelines read
// through cache, which may be nil. maxRows caps CSV rows (0 = unlimited).
func FromConfig(defs []config.DatasetConfig, cache *Cache, maxRows int) (*Registry, error) {
	r := NewRegistry()
	for _, def := range defs {
		task, err := calibrate.ParseTask(def.Task)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", def.ID, err)
		}

		var p Pipeline
		switch def.Source {
		case config.SourceCSV:
			p = &CSVPipeline{
				Path:           def.Path,
				Columns:        def.Columns,
				Target:         def.Target,
				Categorical:    def.Categorical,
				Drop:           def.Drop,
				Labels:         def.Labels,
				PositivePrefix: def.PositivePrefix,
				MaxRows:        maxRows,
				Cache:          cache,
			}
		case config.SourceSynthetic:
			p = &Synthetic{Task: task, Rows: def.Rows}
		default:
			return nil, fmt.Errorf("dataset %s: invalid source %q", def.ID, def.Source)
		}

		if err := r.Register(def.ID, task, p); err != nil {
			return nil, err
		}
	}
	return r, nil
}
