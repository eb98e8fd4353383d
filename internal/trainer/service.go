// Package trainer runs the train and refit pipelines: fit, resample the
// exported shape functions, score both splits, calibrate the intercept and
// package the editable partials.
package trainer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"shapelab/internal/calibrate"
	"shapelab/internal/config"
	"shapelab/internal/dataset"
	"shapelab/internal/gam"
	"shapelab/internal/logging"
	"shapelab/internal/metrics"
	"shapelab/internal/partials"
	"shapelab/internal/refit"
	"shapelab/internal/shape"
)

// Source identifies the fitter in responses.
const Source = "booster"

// Service runs train and refit requests. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	datasets *dataset.Registry
	defaults config.TrainingConfig
	logger   *zap.Logger
}

// NewService creates a service over the given datasets.
func NewService(datasets *dataset.Registry, defaults config.TrainingConfig) *Service {
	return &Service{
		datasets: datasets,
		defaults: defaults,
		logger:   logging.Get(logging.CategoryTrainer),
	}
}

// Datasets returns the registered dataset IDs.
func (s *Service) Datasets() []string {
	return s.datasets.IDs()
}

// run is one prepared request: resolved config, split data and a fresh model.
type run struct {
	cfg   TrainingConfig
	train *dataset.Frame
	test  *dataset.Frame
	model gam.Model
}

func (s *Service) prepare(ctx context.Context, req TrainRequest) (*run, error) {
	entry, err := s.datasets.Lookup(req.Dataset)
	if err != nil {
		return nil, err
	}
	cfg := Resolve(req, s.defaults, entry.Task)
	if !slices.Contains(config.ValidModels, cfg.Model) {
		return nil, fmt.Errorf("%w: %q (valid: %v)", ErrUnknownModel, cfg.Model, config.ValidModels)
	}
	model, err := gam.New(cfg.Model, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownModel, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame, err := entry.Pipeline.Load(cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", req.Dataset, err)
	}
	train, test := frame.Split(cfg.Seed, cfg.TestRatio)
	return &run{cfg: cfg, train: train, test: test, model: model}, nil
}

func (s *Service) fit(ctx context.Context, r *run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.model.Fit(r.train, r.train.Target); err != nil {
		return fmt.Errorf("fit failed: %w", err)
	}
	if c, ok := r.model.(gam.Centerer); ok {
		c.CenterShapeFunctions(nil)
	}
	return nil
}

// Train fits a fresh model and returns its editable view.
func (s *Service) Train(ctx context.Context, req TrainRequest) (*Response, error) {
	start := time.Now()
	r, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.fit(ctx, r); err != nil {
		return nil, err
	}

	resp, err := s.respond(r, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("train complete",
		zap.String("dataset", req.Dataset),
		zap.String("model", r.cfg.Model),
		zap.Int("train_rows", r.train.Rows()),
		zap.Int("test_rows", r.test.Rows()),
		zap.Duration("elapsed", time.Since(start)))
	logging.Audit(logging.AuditTrainComplete,
		zap.String("dataset", req.Dataset),
		zap.Int64("seed", req.Seed))
	return resp, nil
}

// Refit fits the same model Train would, writes the edited partials into it,
// runs the requested extra rounds with the locked features frozen and returns
// the recalibrated view. Models without a mutable shape table are rejected
// before any fitting.
func (s *Service) Refit(ctx context.Context, req RefitRequest) (*Response, error) {
	start := time.Now()
	r, err := s.prepare(ctx, req.TrainRequest)
	if err != nil {
		return nil, err
	}
	if _, ok := r.model.(gam.ShapeTable); !ok {
		return nil, fmt.Errorf("%w: refit needs the %s model", refit.ErrUnsupportedOperation, config.ModelInteractive)
	}
	if err := s.fit(ctx, r); err != nil {
		return nil, err
	}

	edited, err := refit.ApplyEdits(r.model, req.Partials, r.train.Categorical)
	if err != nil {
		return nil, err
	}

	edit := refit.Edit{
		Partials:      req.Partials,
		Locked:        req.Locked,
		Rounds:        req.Rounds,
		EarlyStopping: req.RefitEarlyStopping,
	}
	ran, err := refit.ContinueFit(r.model, r.train, r.train.Target, edit)
	if err != nil {
		return nil, err
	}
	if c, ok := r.model.(gam.Centerer); ran && ok {
		c.CenterShapeFunctions(req.Locked)
	}

	resp, err := s.respond(r, req.TrainRequest)
	if err != nil {
		return nil, err
	}
	resp.EditedFeatures = edited
	resp.LockedFeatures = req.Locked

	s.logger.Info("refit complete",
		zap.String("dataset", req.Dataset),
		zap.Strings("edited", edited),
		zap.Strings("locked", req.Locked),
		zap.Bool("continued", ran),
		zap.Duration("elapsed", time.Since(start)))
	logging.Audit(logging.AuditRefitApplied,
		zap.String("dataset", req.Dataset),
		zap.Strings("edited", edited),
		zap.Strings("locked", req.Locked),
		zap.Int("rounds", req.Rounds))
	return resp, nil
}

// respond turns a fitted model into a response.
func (s *Service) respond(r *run, req TrainRequest) (*Response, error) {
	fns, err := gam.Export(r.model)
	if err != nil || len(fns) == 0 {
		return nil, fmt.Errorf("%w (dataset %s)", ErrEmptyExport, req.Dataset)
	}

	var knotCounts map[string]int
	if _, ok := r.model.(gam.ShapeTable); ok {
		knotCounts = make(map[string]int, len(fns))
		for key, fn := range fns {
			knotCounts[key] = fn.Len()
		}
	}
	fns = shape.NormalizePointCount(fns, r.cfg.Points)

	task := r.cfg.Task
	totalTrain := totals(fns, r.train)
	totalTest := totals(fns, r.test)
	intercept := calibrate.Intercept(task, r.train.Target, totalTrain)
	preds := calibrate.Predict(task, totalTrain, intercept)
	testPreds := calibrate.Predict(task, totalTest, intercept)

	s.logger.Debug("calibrated",
		zap.String("task", string(task)),
		zap.Float64("intercept", intercept),
		zap.Int("features", len(fns)))

	return &Response{
		Dataset:      req.Dataset,
		Model:        r.cfg.Model,
		Task:         task,
		Source:       Source,
		Seed:         r.cfg.Seed,
		Bandwidth:    req.Bandwidth,
		Points:       r.cfg.Points,
		Intercept:    intercept,
		Partials:     partials.Build(r.train, fns, r.cfg.Points),
		Predictions:  preds,
		Y:            append([]float64{}, r.train.Target...),
		TestPreds:    testPreds,
		TestY:        append([]float64{}, r.test.Target...),
		TrainMetrics: metrics.Score(task, r.train.Target, preds),
		TestMetrics:  metrics.Score(task, r.test.Target, testPreds),
		KnotCounts:   knotCounts,
	}, nil
}

// totals sums every feature's contribution per row of frame. The same shape
// functions score every split.
func totals(fns map[string]shape.Function, frame *dataset.Frame) []float64 {
	out := make([]float64, frame.Rows())
	for _, key := range frame.Keys {
		contribs := shape.Evaluate(fns[key], frame.Column(key).Values(), frame.Categorical[key])
		for i, c := range contribs {
			out[i] += c
		}
	}
	return out
}
