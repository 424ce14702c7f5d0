package config

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/parallax-vision/parallax/internal/feature"
	"github.com/parallax-vision/parallax/internal/matcher"
	"github.com/parallax-vision/parallax/internal/pipeline"
	"github.com/parallax-vision/parallax/internal/twoview"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:   "info",
		Verbose:    false,
		Pipeline:   defaultPipelineConfig(),
		Extractor:  defaultExtractorConfig(),
		Matching:   defaultMatchingConfig(),
		Estimation: defaultEstimationConfig(),
	}
}

// defaultPipelineConfig returns default pipeline configuration.
func defaultPipelineConfig() PipelineConfig {
	opts := pipeline.DefaultOptions()
	return PipelineConfig{
		NumWorkers:          opts.NumWorkers,
		MaxNumFeatures:      opts.MaxNumFeatures,
		OnlyCalibratedViews: opts.OnlyCalibratedViews,
	}
}

// defaultExtractorConfig returns default extractor configuration.
func defaultExtractorConfig() ExtractorConfig {
	cfg := feature.DefaultConfig()
	return ExtractorConfig{
		FASTThreshold:     cfg.FAST.Threshold,
		MinArcLength:      cfg.FAST.MinArcLength,
		NonMaxSuppression: cfg.FAST.NonMaxSuppression,
		NumPairs:          cfg.BRIEF.NumPairs,
		PatchSize:         cfg.BRIEF.PatchSize,
		Seed:              cfg.BRIEF.Seed,
	}
}

// defaultMatchingConfig returns default matching configuration.
func defaultMatchingConfig() MatchingConfig {
	cfg := matcher.DefaultConfig()
	return MatchingConfig{
		MaxHammingDistance: cfg.MaxHammingDistance,
		LoweRatio:          cfg.LoweRatio,
		CrossCheck:         cfg.CrossCheck,
		MinNumMatches:      cfg.MinNumMatches,
	}
}

// defaultEstimationConfig returns default estimation configuration.
func defaultEstimationConfig() EstimationConfig {
	opts := twoview.DefaultOptions()
	return EstimationConfig{
		MaxSampsonErrorPixels: opts.MaxSampsonErrorPixels,
		Confidence:            opts.ExpectedConfidence,
		MinIterations:         opts.MinRansacIterations,
		MaxIterations:         opts.MaxRansacIterations,
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Pipeline.NumWorkers <= 0 {
		return fmt.Errorf("invalid pipeline workers: %d (must be positive)", c.Pipeline.NumWorkers)
	}
	if c.Pipeline.MaxNumFeatures <= 0 {
		return fmt.Errorf("invalid max feature count: %d (must be positive)", c.Pipeline.MaxNumFeatures)
	}

	if c.Extractor.FASTThreshold <= 0 {
		return fmt.Errorf("invalid FAST threshold: %d (must be positive)", c.Extractor.FASTThreshold)
	}
	if c.Extractor.PatchSize <= 0 {
		return fmt.Errorf("invalid patch size: %d (must be positive)", c.Extractor.PatchSize)
	}

	if c.Matching.MaxHammingDistance <= 0 {
		return fmt.Errorf("invalid max hamming distance: %d (must be positive)", c.Matching.MaxHammingDistance)
	}
	if err := validateRatio(c.Matching.LoweRatio, "matching.lowe_ratio"); err != nil {
		return err
	}
	if c.Matching.MinNumMatches <= 0 {
		return fmt.Errorf("invalid minimum match count: %d (must be positive)", c.Matching.MinNumMatches)
	}

	if c.Estimation.MaxSampsonErrorPixels <= 0 {
		return fmt.Errorf("invalid max sampson error: %.2f (must be positive)", c.Estimation.MaxSampsonErrorPixels)
	}
	if err := validateRatio(c.Estimation.Confidence, "estimation.confidence"); err != nil {
		return err
	}
	if c.Estimation.MinIterations <= 0 {
		return fmt.Errorf("invalid minimum iterations: %d (must be positive)", c.Estimation.MinIterations)
	}
	if c.Estimation.MaxIterations < c.Estimation.MinIterations {
		return fmt.Errorf("invalid maximum iterations: %d (must be at least minimum iterations %d)",
			c.Estimation.MaxIterations, c.Estimation.MinIterations)
	}

	return nil
}

// ToPipelineOptions converts the config to pipeline options.
func (c *Config) ToPipelineOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.NumWorkers = c.Pipeline.NumWorkers
	opts.MaxNumFeatures = c.Pipeline.MaxNumFeatures
	opts.OnlyCalibratedViews = c.Pipeline.OnlyCalibratedViews
	opts.FeatureCacheDir = c.Pipeline.FeatureCacheDir
	opts.Extractor = c.ToExtractorConfig()
	return opts
}

// ToExtractorConfig converts the config to feature extractor configuration.
func (c *Config) ToExtractorConfig() feature.Config {
	cfg := feature.DefaultConfig()
	cfg.FAST.Threshold = c.Extractor.FASTThreshold
	cfg.FAST.MinArcLength = c.Extractor.MinArcLength
	cfg.FAST.NonMaxSuppression = c.Extractor.NonMaxSuppression
	cfg.BRIEF.NumPairs = c.Extractor.NumPairs
	cfg.BRIEF.PatchSize = c.Extractor.PatchSize
	cfg.BRIEF.Seed = c.Extractor.Seed
	return cfg
}

// ToMatcherConfig converts the config to matcher configuration.
func (c *Config) ToMatcherConfig() matcher.Config {
	return matcher.Config{
		MaxHammingDistance: c.Matching.MaxHammingDistance,
		LoweRatio:          c.Matching.LoweRatio,
		CrossCheck:         c.Matching.CrossCheck,
		MinNumMatches:      c.Matching.MinNumMatches,
	}
}

// ToEstimationOptions converts the config to two-view estimation options.
func (c *Config) ToEstimationOptions() twoview.Options {
	opts := twoview.DefaultOptions()
	opts.MaxSampsonErrorPixels = c.Estimation.MaxSampsonErrorPixels
	opts.ExpectedConfidence = c.Estimation.Confidence
	opts.MinRansacIterations = c.Estimation.MinIterations
	opts.MaxRansacIterations = c.Estimation.MaxIterations
	if c.Estimation.Seed != 0 {
		opts.Rand = rand.New(rand.NewSource(c.Estimation.Seed))
	}
	return opts
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateRatio validates that a value is between 0.0 and 1.0.
func validateRatio(value float64, name string) error {
	if value <= 0.0 || value >= 1.0 {
		return fmt.Errorf("invalid %s: %.4f (must be between 0.0 and 1.0 exclusive)", name, value)
	}
	return nil
}
