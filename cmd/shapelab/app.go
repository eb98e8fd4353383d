package main

import (
	"errors"
	"fmt"

	"shapelab/internal/dataset"
	"shapelab/internal/store"
	"shapelab/internal/trainer"
)

// app wires the collaborators every command needs.
type app struct {
	cache   *dataset.Cache
	trainer *trainer.Service
	models  store.Store
	saved   store.Store
}

func newApp() (*app, error) {
	a := &app{}
	var err error

	a.cache, err = dataset.NewCache()
	if err != nil {
		return nil, err
	}
	registry, err := dataset.FromConfig(cfg.Datasets, a.cache, cfg.Limits.MaxRows)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("datasets: %w", err)
	}
	a.trainer = trainer.NewService(registry, cfg.Training)

	if a.models, err = store.Open(cfg.Store, store.CollectionModels); err != nil {
		a.Close()
		return nil, err
	}
	if a.saved, err = store.Open(cfg.Store, store.CollectionSavedModels); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.saved != nil {
		errs = append(errs, a.saved.Close())
	}
	if a.models != nil {
		errs = append(errs, a.models.Close())
	}
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	return errors.Join(errs...)
}
