package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "chatty" },
			wantErr: "invalid log level",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Pipeline.NumWorkers = 0 },
			wantErr: "pipeline workers",
		},
		{
			name:    "negative feature cap",
			mutate:  func(c *Config) { c.Pipeline.MaxNumFeatures = -1 },
			wantErr: "max feature count",
		},
		{
			name:    "zero FAST threshold",
			mutate:  func(c *Config) { c.Extractor.FASTThreshold = 0 },
			wantErr: "FAST threshold",
		},
		{
			name:    "lowe ratio above one",
			mutate:  func(c *Config) { c.Matching.LoweRatio = 1.5 },
			wantErr: "lowe_ratio",
		},
		{
			name:    "confidence of one",
			mutate:  func(c *Config) { c.Estimation.Confidence = 1.0 },
			wantErr: "confidence",
		},
		{
			name:    "negative sampson error",
			mutate:  func(c *Config) { c.Estimation.MaxSampsonErrorPixels = -2 },
			wantErr: "sampson",
		},
		{
			name: "max iterations below min",
			mutate: func(c *Config) {
				c.Estimation.MinIterations = 100
				c.Estimation.MaxIterations = 50
			},
			wantErr: "maximum iterations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToPipelineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.NumWorkers = 2
	cfg.Pipeline.MaxNumFeatures = 1234
	cfg.Pipeline.OnlyCalibratedViews = true
	cfg.Pipeline.FeatureCacheDir = "/tmp/features"
	cfg.Extractor.FASTThreshold = 30

	opts := cfg.ToPipelineOptions()
	assert.Equal(t, 2, opts.NumWorkers)
	assert.Equal(t, 1234, opts.MaxNumFeatures)
	assert.True(t, opts.OnlyCalibratedViews)
	assert.Equal(t, "/tmp/features", opts.FeatureCacheDir)
	assert.Equal(t, 30, opts.Extractor.FAST.Threshold)
}

func TestToMatcherConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Matching.MaxHammingDistance = 48
	cfg.Matching.LoweRatio = 0.75
	cfg.Matching.CrossCheck = false
	cfg.Matching.MinNumMatches = 8

	mc := cfg.ToMatcherConfig()
	assert.Equal(t, 48, mc.MaxHammingDistance)
	assert.InDelta(t, 0.75, mc.LoweRatio, 1e-12)
	assert.False(t, mc.CrossCheck)
	assert.Equal(t, 8, mc.MinNumMatches)
}

func TestToEstimationOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Estimation.MaxSampsonErrorPixels = 4.0
	cfg.Estimation.MinIterations = 20
	cfg.Estimation.MaxIterations = 200

	opts := cfg.ToEstimationOptions()
	assert.InDelta(t, 4.0, opts.MaxSampsonErrorPixels, 1e-12)
	assert.Equal(t, 20, opts.MinRansacIterations)
	assert.Equal(t, 200, opts.MaxRansacIterations)
	assert.Nil(t, opts.Rand)

	cfg.Estimation.Seed = 42
	assert.NotNil(t, cfg.ToEstimationOptions().Rand)
}
