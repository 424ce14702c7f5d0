package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// resetViper clears the global viper instance between tests. The loader
// shares the global instance so state leaks otherwise.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestNewLoader(t *testing.T) {
	resetViper(t)

	loader := NewLoader()
	require.NotNil(t, loader)
	require.NotNil(t, loader.v)
}

func TestLoadWithNoConfigFile(t *testing.T) {
	resetViper(t)

	tmpDir := t.TempDir()
	originalWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(originalWd) })
	require.NoError(t, os.Chdir(tmpDir))

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	defaults := DefaultConfig()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, defaults.Pipeline.NumWorkers, cfg.Pipeline.NumWorkers)
	assert.Equal(t, defaults.Matching.MaxHammingDistance, cfg.Matching.MaxHammingDistance)
	assert.InDelta(t, defaults.Estimation.Confidence, cfg.Estimation.Confidence, 1e-12)
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	resetViper(t)

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "parallax.yaml")

	yamlContent := `
log_level: debug
verbose: true
pipeline:
  num_workers: 3
  max_num_features: 2500
matching:
  lowe_ratio: 0.7
estimation:
  max_iterations: 500
`
	require.NoError(t, os.WriteFile(configFile, []byte(yamlContent), 0o644))

	cfg, err := NewLoader().LoadWithFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 3, cfg.Pipeline.NumWorkers)
	assert.Equal(t, 2500, cfg.Pipeline.MaxNumFeatures)
	assert.InDelta(t, 0.7, cfg.Matching.LoweRatio, 1e-12)
	assert.Equal(t, 500, cfg.Estimation.MaxIterations)

	// Unset keys keep their defaults.
	defaults := DefaultConfig()
	assert.Equal(t, defaults.Matching.MaxHammingDistance, cfg.Matching.MaxHammingDistance)
	assert.Equal(t, defaults.Estimation.MinIterations, cfg.Estimation.MinIterations)
}

func TestLoadFullConfigRoundTrip(t *testing.T) {
	resetViper(t)

	want := DefaultConfig()
	want.LogLevel = "error"
	want.Pipeline.NumWorkers = 5
	want.Pipeline.FeatureCacheDir = "/var/cache/parallax"
	want.Matching.CrossCheck = false
	want.Estimation.Seed = 91

	data, err := yaml.Marshal(want)
	require.NoError(t, err)

	configFile := filepath.Join(t.TempDir(), "parallax.yaml")
	require.NoError(t, os.WriteFile(configFile, data, 0o644))

	got, err := NewLoader().LoadWithFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestLoadWithMissingFile(t *testing.T) {
	resetViper(t)

	_, err := NewLoader().LoadWithFile("/nonexistent/parallax.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadWithInvalidYAML(t *testing.T) {
	resetViper(t)

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "parallax.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("log_level: [unterminated"), 0o644))

	_, err := NewLoader().LoadWithFile(configFile)
	require.Error(t, err)
}

func TestLoadValidationFailure(t *testing.T) {
	resetViper(t)

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "parallax.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("log_level: chatty"), 0o644))

	_, err := NewLoader().LoadWithFile(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	cfg, err := NewLoader().LoadWithFileWithoutValidation(configFile)
	require.NoError(t, err)
	assert.Equal(t, "chatty", cfg.LogLevel)
}

func TestLoadWithEnvironmentVariable(t *testing.T) {
	resetViper(t)

	t.Setenv("PARALLAX_LOG_LEVEL", "warn")
	t.Setenv("PARALLAX_PIPELINE_NUM_WORKERS", "7")

	tmpDir := t.TempDir()
	originalWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(originalWd) })
	require.NoError(t, os.Chdir(tmpDir))

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Pipeline.NumWorkers)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	resetViper(t)

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(configFile))

	viper.Reset()
	cfg, err := NewLoader().LoadWithFile(configFile)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	paths := GetConfigSearchPaths()
	assert.Contains(t, paths, ".")
	assert.Contains(t, paths, "/etc/parallax")
}
