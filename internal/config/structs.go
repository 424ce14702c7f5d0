package config

// Config is the complete configuration of the parallax tool. It can be
// populated from configuration files, environment variables and
// command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Extractor  ExtractorConfig  `mapstructure:"extractor" yaml:"extractor" json:"extractor"`
	Matching   MatchingConfig   `mapstructure:"matching" yaml:"matching" json:"matching"`
	Estimation EstimationConfig `mapstructure:"estimation" yaml:"estimation" json:"estimation"`
}

// PipelineConfig controls the feature extraction pipeline.
type PipelineConfig struct {
	NumWorkers          int    `mapstructure:"num_workers" yaml:"num_workers" json:"num_workers"`
	MaxNumFeatures      int    `mapstructure:"max_num_features" yaml:"max_num_features" json:"max_num_features"`
	OnlyCalibratedViews bool   `mapstructure:"only_calibrated_views" yaml:"only_calibrated_views" json:"only_calibrated_views"`
	FeatureCacheDir     string `mapstructure:"feature_cache_dir" yaml:"feature_cache_dir" json:"feature_cache_dir"`
	CalibrationFile     string `mapstructure:"calibration_file" yaml:"calibration_file" json:"calibration_file"`
}

// ExtractorConfig controls keypoint detection and description.
type ExtractorConfig struct {
	FASTThreshold     int   `mapstructure:"fast_threshold" yaml:"fast_threshold" json:"fast_threshold"`
	MinArcLength      int   `mapstructure:"min_arc_length" yaml:"min_arc_length" json:"min_arc_length"`
	NonMaxSuppression bool  `mapstructure:"non_max_suppression" yaml:"non_max_suppression" json:"non_max_suppression"`
	NumPairs          int   `mapstructure:"num_pairs" yaml:"num_pairs" json:"num_pairs"`
	PatchSize         int   `mapstructure:"patch_size" yaml:"patch_size" json:"patch_size"`
	Seed              int64 `mapstructure:"seed" yaml:"seed" json:"seed"`
}

// MatchingConfig controls descriptor matching.
type MatchingConfig struct {
	MaxHammingDistance int     `mapstructure:"max_hamming_distance" yaml:"max_hamming_distance" json:"max_hamming_distance"`
	LoweRatio          float64 `mapstructure:"lowe_ratio" yaml:"lowe_ratio" json:"lowe_ratio"`
	CrossCheck         bool    `mapstructure:"cross_check" yaml:"cross_check" json:"cross_check"`
	MinNumMatches      int     `mapstructure:"min_num_matches" yaml:"min_num_matches" json:"min_num_matches"`
}

// EstimationConfig controls robust two-view geometry estimation.
type EstimationConfig struct {
	MaxSampsonErrorPixels float64 `mapstructure:"max_sampson_error_pixels" yaml:"max_sampson_error_pixels" json:"max_sampson_error_pixels"`
	Confidence            float64 `mapstructure:"confidence" yaml:"confidence" json:"confidence"`
	MinIterations         int     `mapstructure:"min_iterations" yaml:"min_iterations" json:"min_iterations"`
	MaxIterations         int     `mapstructure:"max_iterations" yaml:"max_iterations" json:"max_iterations"`
	Seed                  int64   `mapstructure:"seed" yaml:"seed" json:"seed"`
}
