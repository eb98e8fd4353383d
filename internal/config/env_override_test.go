package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Server(t *testing.T) {
	t.Setenv("SHAPELAB_ADDR", "127.0.0.1:8123")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "127.0.0.1:8123", cfg.Server.Addr)
}

func TestEnvOverrides_Store(t *testing.T) {
	t.Run("backend and database", func(t *testing.T) {
		t.Setenv("SHAPELAB_STORE_BACKEND", "sqlite")
		t.Setenv("SHAPELAB_DB", "/var/lib/shapelab/models.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, BackendSQLite, cfg.Store.Backend)
		assert.Equal(t, "/var/lib/shapelab/models.db", cfg.Store.DatabasePath)
	})

	t.Run("directories", func(t *testing.T) {
		t.Setenv("SHAPELAB_MODELS_DIR", "/srv/models")
		t.Setenv("SHAPELAB_SAVED_MODELS_DIR", "/srv/saved")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/srv/models", cfg.Store.ModelsDir)
		assert.Equal(t, "/srv/saved", cfg.Store.SavedModelsDir)
	})

	t.Run("unset leaves defaults", func(t *testing.T) {
		t.Setenv("SHAPELAB_STORE_BACKEND", "")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, BackendFile, cfg.Store.Backend)
	})
}

func TestEnvOverrides_DataDir(t *testing.T) {
	t.Setenv("SHAPELAB_DATA_DIR", "/data")

	cfg := &Config{Datasets: []DatasetConfig{
		{ID: "rel", Path: "csv/bike.csv"},
		{ID: "abs", Path: "/opt/adult.data"},
		{ID: "synthetic"},
	}}
	cfg.applyEnvOverrides()

	assert.Equal(t, filepath.Join("/data", "bike.csv"), cfg.Datasets[0].Path)
	assert.Equal(t, "/opt/adult.data", cfg.Datasets[1].Path)
	assert.Equal(t, "", cfg.Datasets[2].Path)
}

func TestEnvOverrides_LogLevel(t *testing.T) {
	t.Setenv("SHAPELAB_LOG_LEVEL", "debug")
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.Equal(t, "debug", cfg.Logging.Level)
}
