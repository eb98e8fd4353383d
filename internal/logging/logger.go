// Package logging provides config-driven categorized logging for shapelab.
// Every category is a named child of one zap root logger; categories disabled
// in the logging config get a no-op logger.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"shapelab/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config, shutdown
	CategoryHTTP    Category = "http"    // Request transport
	CategoryTrainer Category = "trainer" // Train/refit pipeline stages
	CategoryFitter  Category = "fitter"  // Reference additive fitter
	CategoryDataset Category = "dataset" // Dataset pipelines and the CSV cache
	CategoryStore   Category = "store"   // Model snapshot storage
	CategoryAudit   Category = "audit"   // Audit trail of edits and saves
)

var (
	root      = zap.NewNop()
	cfg       config.LoggingConfig
	loggers   = make(map[Category]*zap.Logger)
	loggersMu sync.RWMutex
)

// Build creates a zap logger from the logging config. verbose forces debug level.
func Build(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Format == "console" {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if lc.Level != "" {
		parsed, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
		}
		level = parsed
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	if lc.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, lc.File)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Initialize builds the root logger and installs it for every category.
// Should be called once at startup.
func Initialize(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	logger, err := Build(lc, verbose)
	if err != nil {
		return nil, err
	}
	Install(logger, lc)
	return logger, nil
}

// Install replaces the root logger and category toggles. Tests use it to
// capture output with an observer core.
func Install(logger *zap.Logger, lc config.LoggingConfig) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger == nil {
		logger = zap.NewNop()
	}
	root = logger
	cfg = lc
	loggers = make(map[Category]*zap.Logger)
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	return cfg.IsCategoryEnabled(string(category))
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *zap.Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	l := zap.NewNop()
	if cfg.IsCategoryEnabled(string(category)) {
		l = root.Named(string(category))
	}
	loggers[category] = l
	return l
}

// Sync flushes the root logger. Call at shutdown.
func Sync() {
	loggersMu.RLock()
	defer loggersMu.RUnlock()
	_ = root.Sync()
}
