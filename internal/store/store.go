// Package store persists JSON model snapshots by name. Two backends are
// available: one file per snapshot in a directory, or rows in a SQLite table.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"shapelab/internal/config"
)

// Collections.
const (
	CollectionModels      = "models"
	CollectionSavedModels = "saved-models"
)

var (
	// ErrNotFound is returned by Read for names that were never written.
	ErrNotFound = errors.New("model not found")
	// ErrMissingName is returned when a name is empty after sanitizing.
	ErrMissingName = errors.New("missing model name")
)

// Store reads and writes named payloads. Writes are atomic per name and the
// last write wins.
type Store interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
	Write(ctx context.Context, name string, payload []byte) error
	Close() error
}

// SanitizeName reduces name to a bare base name without a .json suffix, so
// callers can never address anything outside the collection.
func SanitizeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	base = strings.TrimSuffix(base, ".json")
	switch base {
	case "", ".", "..", "/":
		return "", ErrMissingName
	}
	return base, nil
}

// Open returns the store for one collection of the configured backend.
func Open(cfg config.StoreConfig, collection string) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		dir := cfg.ModelsDir
		if collection == CollectionSavedModels {
			dir = cfg.SavedModelsDir
		}
		return NewFileStore(dir), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.Driver, cfg.DatabasePath, collection)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
