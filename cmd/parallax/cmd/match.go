package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parallax-vision/parallax/internal/camera"
	"github.com/parallax-vision/parallax/internal/common"
	"github.com/parallax-vision/parallax/internal/config"
	"github.com/parallax-vision/parallax/internal/matcher"
	"github.com/parallax-vision/parallax/internal/pipeline"
	"github.com/parallax-vision/parallax/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

// pairSummary is the JSON shape for one matched image pair.
type pairSummary struct {
	Image1     string `json:"image1"`
	Image2     string `json:"image2"`
	NumMatches int    `json:"num_matches"`
}

// matchCmd represents the match command.
var matchCmd = &cobra.Command{
	Use:   "match [images...]",
	Short: "Extract features and match them across images",
	Long: `Extract ORB features from the given images and match descriptors
across every candidate pair.

Supported formats: JPEG, PNG, BMP

Examples:
  parallax match *.jpg
  parallax match photos/a.jpg photos/b.jpg --format json
  parallax match *.png --cache-dir .features`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	// Rebind on every run: match and reconstruct share flag names, so the
	// executing command must own the viper bindings.
	PreRun: func(cmd *cobra.Command, args []string) {
		bindPipelineFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input images provided")
		}

		cfg := GetConfig()
		format := viper.GetString("output.format")
		outputFile := viper.GetString("output.file")
		if format != outputFormatText && format != outputFormatJSON {
			return fmt.Errorf("invalid output format: %s (must be text or json)", format)
		}

		matches, err := runPipeline(cmd, cfg, args)
		if err != nil {
			return err
		}

		summaries := make([]pairSummary, len(matches))
		for i, m := range matches {
			summaries[i] = pairSummary{
				Image1:     m.Image1,
				Image2:     m.Image2,
				NumMatches: len(m.Correspondences),
			}
		}

		var final string
		if format == outputFormatJSON {
			bts, err := json.MarshalIndent(summaries, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			final = string(bts)
		} else {
			var sb strings.Builder
			fmt.Fprintf(&sb, "Matched %d image pair(s)\n", len(summaries))
			for _, s := range summaries {
				fmt.Fprintf(&sb, "%s <-> %s: %d matches\n", s.Image1, s.Image2, s.NumMatches)
			}
			final = sb.String()
		}

		return writeOutput(cmd, outputFile, final)
	},
}

// runPipeline builds the matcher and pipeline from the configuration and
// runs extraction and matching over the given images.
func runPipeline(cmd *cobra.Command, cfg *config.Config, images []string) ([]matcher.ImagePairMatch, error) {
	var provider matcher.FeatureProvider
	if cfg.Pipeline.FeatureCacheDir != "" {
		cache, err := pipeline.NewFeatureCache(cfg.Pipeline.FeatureCacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open feature cache: %w", err)
		}
		provider = cache
	}

	bf := matcher.NewBruteForceMatcher(cfg.ToMatcherConfig(), provider)

	opts := cfg.ToPipelineOptions()
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		opts.Progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Extracting features")
	}

	var calibration map[string]camera.IntrinsicsPrior
	if cfg.Pipeline.CalibrationFile != "" {
		loaded, err := pipeline.LoadCalibration(cfg.Pipeline.CalibrationFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load calibration: %w", err)
		}
		calibration = loaded
	}

	p, err := pipeline.New(opts, bf)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	for _, path := range images {
		prior, ok := calibration[filepath.Base(path)]
		if !ok {
			prior, ok = calibration[utils.BaseName(path)]
		}
		if ok {
			p.AddImageWithPrior(path, prior)
			continue
		}
		p.AddImage(path)
	}

	timer := common.StartTimer(opts.Logger, "extraction and matching")
	_, matches, err := p.ExtractAndMatchFeatures(cmd.Context())
	timer.Stop()
	if err != nil {
		return nil, err
	}

	return matches, nil
}

// writeOutput writes the result to the output file, or stdout when no
// file is set.
func writeOutput(cmd *cobra.Command, outputFile, content string) error {
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile)
		return err
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), content)
	return err
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Int("workers", 0, "number of extraction workers (0=all CPUs)")
	cmd.Flags().Int("max-features", 0, "maximum keypoints kept per image (0=default)")
	cmd.Flags().String("cache-dir", "", "directory for the out-of-core feature cache")
	cmd.Flags().String("calibration-file", "", "YAML file with known intrinsics per image")
	cmd.Flags().Bool("only-calibrated", false, "skip images without a recoverable focal length")
	cmd.Flags().Bool("quiet", false, "suppress the progress bar")
}

func bindPipelineFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"pipeline.num_workers", "workers"},
		{"pipeline.max_num_features", "max-features"},
		{"pipeline.feature_cache_dir", "cache-dir"},
		{"pipeline.calibration_file", "calibration-file"},
		{"pipeline.only_calibrated_views", "only-calibrated"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(matchCmd)

	addPipelineFlags(matchCmd)
}

// GetMatchCommand returns the match command for testing purposes.
func GetMatchCommand() *cobra.Command {
	return matchCmd
}
