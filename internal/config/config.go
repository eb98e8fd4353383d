package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all shapelab configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// HTTP transport
	Server ServerConfig `yaml:"server"`

	// Model snapshot storage
	Store StoreConfig `yaml:"store"`

	// Default hyperparameters for train and refit requests
	Training TrainingConfig `yaml:"training"`

	// Batch snapshot generation (generate-models)
	Generate GenerateConfig `yaml:"generate"`

	// Dataset pipelines, keyed by ID
	Datasets []DatasetConfig `yaml:"datasets"`

	// Resource limits
	Limits Limits `yaml:"limits"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	H2C            bool     `yaml:"h2c"` // serve HTTP/2 without TLS
	AllowedOrigins []string `yaml:"allowed_origins"`
	ReadTimeout    string   `yaml:"read_timeout"`
	WriteTimeout   string   `yaml:"write_timeout"`
	ShutdownGrace  string   `yaml:"shutdown_grace"`
}

// StoreConfig configures where model snapshots and saved edits live.
type StoreConfig struct {
	Backend        string `yaml:"backend"` // file, sqlite
	ModelsDir      string `yaml:"models_dir"`
	SavedModelsDir string `yaml:"saved_models_dir"`
	DatabasePath   string `yaml:"database_path"`
	Driver         string `yaml:"driver"` // sqlite (pure Go), sqlite3 (cgo)
}

// GenerateConfig configures batch generation of stored model snapshots.
type GenerateConfig struct {
	Seed     int64    `yaml:"seed"`
	Points   int      `yaml:"points"`
	Datasets []string `yaml:"datasets"` // empty = every configured dataset
}

// Store backends and SQL drivers.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "shapelab",
		Version: "0.4.0",

		Server: ServerConfig{
			Addr:           ":8000",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    "30s",
			WriteTimeout:   "10m",
			ShutdownGrace:  "15s",
		},

		Store: StoreConfig{
			Backend:        BackendFile,
			ModelsDir:      "models",
			SavedModelsDir: "saved_models",
			DatabasePath:   "data/shapelab.db",
			Driver:         DriverModernc,
		},

		Training: DefaultTrainingConfig(),

		Generate: GenerateConfig{
			Seed:   3,
			Points: 250,
		},

		Datasets: DefaultDatasets(),

		Limits: DefaultLimits(),

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	// Relative dataset paths resolve against the config file.
	cfg.resolveDatasetPaths(filepath.Dir(path))

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("SHAPELAB_ADDR"); addr != "" {
		c.Server.Addr = addr
	}

	if backend := os.Getenv("SHAPELAB_STORE_BACKEND"); backend != "" {
		c.Store.Backend = backend
	}
	if path := os.Getenv("SHAPELAB_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if dir := os.Getenv("SHAPELAB_MODELS_DIR"); dir != "" {
		c.Store.ModelsDir = dir
	}
	if dir := os.Getenv("SHAPELAB_SAVED_MODELS_DIR"); dir != "" {
		c.Store.SavedModelsDir = dir
	}

	// Data directory re-roots relative CSV paths.
	if dir := os.Getenv("SHAPELAB_DATA_DIR"); dir != "" {
		for i := range c.Datasets {
			if c.Datasets[i].Path != "" && !filepath.IsAbs(c.Datasets[i].Path) {
				c.Datasets[i].Path = filepath.Join(dir, filepath.Base(c.Datasets[i].Path))
			}
		}
	}

	if level := os.Getenv("SHAPELAB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func (c *Config) resolveDatasetPaths(base string) {
	for i := range c.Datasets {
		p := c.Datasets[i].Path
		if p != "" && !filepath.IsAbs(p) {
			c.Datasets[i].Path = filepath.Join(base, p)
		}
	}
}

// GetReadTimeout returns the server read timeout as a duration.
func (c *Config) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWriteTimeout returns the server write timeout as a duration.
// Fits are slow, so the default is generous.
func (c *Config) GetWriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.WriteTimeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetShutdownGrace returns how long serve waits for in-flight requests.
func (c *Config) GetShutdownGrace() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownGrace)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// ValidBackends lists all supported store backends.
var ValidBackends = []string{BackendFile, BackendSQLite}

// ValidDrivers lists the SQL drivers the sqlite backend can use.
var ValidDrivers = []string{DriverModernc, DriverCgo}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr not configured")
	}

	if !slices.Contains(ValidBackends, c.Store.Backend) {
		return fmt.Errorf("invalid store backend: %s (valid: %v)", c.Store.Backend, ValidBackends)
	}
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.ModelsDir == "" || c.Store.SavedModelsDir == "" {
			return fmt.Errorf("file store needs models_dir and saved_models_dir")
		}
	case BackendSQLite:
		if c.Store.DatabasePath == "" {
			return fmt.Errorf("sqlite store needs database_path")
		}
		if !slices.Contains(ValidDrivers, c.Store.Driver) {
			return fmt.Errorf("invalid sqlite driver: %s (valid: %v)", c.Store.Driver, ValidDrivers)
		}
	}

	if err := c.Training.Validate(); err != nil {
		return err
	}
	if err := c.ValidateDatasets(); err != nil {
		return err
	}
	return c.ValidateLimits()
}

// Dataset returns the dataset definition with the given ID.
func (c *Config) Dataset(id string) (DatasetConfig, bool) {
	for _, ds := range c.Datasets {
		if ds.ID == id {
			return ds, true
		}
	}
	return DatasetConfig{}, false
}
