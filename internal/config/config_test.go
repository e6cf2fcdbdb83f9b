package config_test

import (
	"path/filepath"
	"testing"

	"github.com/cachegrid/assetcache/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "memory", cfg.Engine.Backend)
	assert.EqualValues(t, 1<<20, cfg.Engine.PageSize)
	assert.Equal(t, "noop", cfg.Persistence.Adapter)
	assert.Equal(t, ":8080", cfg.API.Addr)
}

func TestValidateRejectsFSBackendWithoutCachePath(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Backend = "fs"

	err := config.Validate(cfg)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownPersistenceAdapter(t *testing.T) {
	cfg := config.Default()
	cfg.Persistence.Adapter = "unknown"

	err := config.Validate(cfg)
	assert.Error(t, err)
}

func TestLoadFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Engine.Backend)
}
