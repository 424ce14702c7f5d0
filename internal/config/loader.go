package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "parallax"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PARALLAX"
)

// Loader handles loading configuration from files, environment variables
// and defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader. It uses the global viper
// instance so that command-line flag bindings are visible.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load loads configuration from the standard search paths, environment
// variables and defaults, then validates it. A missing configuration file
// is not an error.
func (l *Loader) Load() (*Config, error) {
	return l.load(true)
}

// LoadWithoutValidation is Load without the final validation step. It is
// useful when flags applied after loading may fix an incomplete file.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load(false)
}

func (l *Loader) load(validate bool) (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file means defaults and environment variables only.
	}

	return l.unmarshal(validate)
}

// LoadWithFile loads configuration from a specific file path. An empty
// path falls back to the standard search behaviour of Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.loadWithFile(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without the final
// validation step.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.loadWithFile(configFile, false)
}

func (l *Loader) loadWithFile(configFile string, validate bool) (*Config, error) {
	if configFile == "" {
		return l.load(validate)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	return l.unmarshal(validate)
}

func (l *Loader) unmarshal(validate bool) (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}

	l.v.AddConfigPath("/etc/parallax")

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		l.v.AddConfigPath(filepath.Join(configDir, "parallax"))
	} else if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(filepath.Join(home, ".config", "parallax"))
	}
}

// setupEnvironmentVariables configures environment variable handling.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	defaults := DefaultConfig()

	l.v.SetDefault("log_level", defaults.LogLevel)
	l.v.SetDefault("verbose", defaults.Verbose)

	l.v.SetDefault("pipeline.num_workers", defaults.Pipeline.NumWorkers)
	l.v.SetDefault("pipeline.max_num_features", defaults.Pipeline.MaxNumFeatures)
	l.v.SetDefault("pipeline.only_calibrated_views", defaults.Pipeline.OnlyCalibratedViews)
	l.v.SetDefault("pipeline.feature_cache_dir", defaults.Pipeline.FeatureCacheDir)
	l.v.SetDefault("pipeline.calibration_file", defaults.Pipeline.CalibrationFile)

	l.v.SetDefault("extractor.fast_threshold", defaults.Extractor.FASTThreshold)
	l.v.SetDefault("extractor.min_arc_length", defaults.Extractor.MinArcLength)
	l.v.SetDefault("extractor.non_max_suppression", defaults.Extractor.NonMaxSuppression)
	l.v.SetDefault("extractor.num_pairs", defaults.Extractor.NumPairs)
	l.v.SetDefault("extractor.patch_size", defaults.Extractor.PatchSize)
	l.v.SetDefault("extractor.seed", defaults.Extractor.Seed)

	l.v.SetDefault("matching.max_hamming_distance", defaults.Matching.MaxHammingDistance)
	l.v.SetDefault("matching.lowe_ratio", defaults.Matching.LoweRatio)
	l.v.SetDefault("matching.cross_check", defaults.Matching.CrossCheck)
	l.v.SetDefault("matching.min_num_matches", defaults.Matching.MinNumMatches)

	l.v.SetDefault("estimation.max_sampson_error_pixels", defaults.Estimation.MaxSampsonErrorPixels)
	l.v.SetDefault("estimation.confidence", defaults.Estimation.Confidence)
	l.v.SetDefault("estimation.min_iterations", defaults.Estimation.MinIterations)
	l.v.SetDefault("estimation.max_iterations", defaults.Estimation.MaxIterations)
	l.v.SetDefault("estimation.seed", defaults.Estimation.Seed)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile generates a default configuration file.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoader()
	loader.setDefaults()

	if filename == "" {
		filename = "parallax.yaml"
	}

	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are
// searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
		paths = append(paths, filepath.Join(home, ".config", "parallax"))
	}

	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "parallax"))
	}

	paths = append(paths, "/etc/parallax")

	return paths
}
