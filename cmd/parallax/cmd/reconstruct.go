package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/parallax-vision/parallax/internal/common"
	"github.com/parallax-vision/parallax/internal/ncut"
	"github.com/parallax-vision/parallax/internal/scene"
	"github.com/parallax-vision/parallax/internal/twoview"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// twoViewSummary is the JSON shape for one verified image pair.
type twoViewSummary struct {
	Image1             string     `json:"image1"`
	Image2             string     `json:"image2"`
	Rotation           [3]float64 `json:"rotation_angle_axis"`
	Position           [3]float64 `json:"position"`
	FocalLength1       float64    `json:"focal_length1"`
	FocalLength2       float64    `json:"focal_length2"`
	NumVerifiedMatches int        `json:"num_verified_matches"`
	VisibilityScore    int        `json:"visibility_score"`
}

// reconstructSummary is the JSON shape of the reconstruct command output.
type reconstructSummary struct {
	NumViews  int              `json:"num_views"`
	NumTracks int              `json:"num_tracks"`
	Pairs     []twoViewSummary `json:"pairs"`
	Partition *partitionResult `json:"partition,omitempty"`
}

// partitionResult describes a normalized cut of the view graph.
type partitionResult struct {
	Subgraph1 []string `json:"subgraph1"`
	Subgraph2 []string `json:"subgraph2"`
	Cost      float64  `json:"cost"`
}

// reconstructCmd represents the reconstruct command.
var reconstructCmd = &cobra.Command{
	Use:   "reconstruct [images...]",
	Short: "Estimate two-view geometry and build a scene graph",
	Long: `Extract and match features across the given images, estimate the
relative pose of every matched pair, and assemble the verified pairs
into a scene graph of views and feature tracks.

Examples:
  parallax reconstruct photos/*.jpg
  parallax reconstruct *.png --format json --output scene.json
  parallax reconstruct *.jpg --partition`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindPipelineFlags(cmd)
		_ = viper.BindPFlag("estimation.max_sampson_error_pixels", cmd.Flags().Lookup("max-sampson-error"))
		_ = viper.BindPFlag("estimation.seed", cmd.Flags().Lookup("seed"))
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
		if len(matches) == 0 {
			return errors.New("no image pairs survived matching")
		}

		timer := common.StartTimer(slog.Default(), "two-view estimation")
		recon := scene.New()
		estOpts := cfg.ToEstimationOptions()
		estOpts.Logger = slog.Default()

		var pairs []twoViewSummary
		var cutEdges []ncut.Edge[string]
		for _, m := range matches {
			info, inliers, err := twoview.Estimate(estOpts, m.Prior1, m.Prior2, m.Correspondences)
			if err != nil {
				slog.Warn("Two-view estimation failed, dropping pair",
					"image1", m.Image1, "image2", m.Image2, "error", err)
				continue
			}

			id1 := addViewOnce(recon, m.Image1)
			id2 := addViewOnce(recon, m.Image2)
			recon.View(id1).Camera().SetFromPrior(m.Prior1)
			recon.View(id2).Camera().SetFromPrior(m.Prior2)

			for _, idx := range inliers {
				c := m.Correspondences[idx]
				recon.AddTrack([]scene.Observation{
					{ViewID: id1, Feature: c.F1},
					{ViewID: id2, Feature: c.F2},
				})
			}

			pairs = append(pairs, twoViewSummary{
				Image1:             m.Image1,
				Image2:             m.Image2,
				Rotation:           [3]float64{info.Rotation.X, info.Rotation.Y, info.Rotation.Z},
				Position:           [3]float64{info.Position.X, info.Position.Y, info.Position.Z},
				FocalLength1:       info.FocalLength1,
				FocalLength2:       info.FocalLength2,
				NumVerifiedMatches: info.NumVerifiedMatches,
				VisibilityScore:    info.VisibilityScore,
			})
			cutEdges = append(cutEdges, ncut.Edge[string]{
				Node1:  m.Image1,
				Node2:  m.Image2,
				Weight: float64(info.NumVerifiedMatches),
			})
		}
		timer.Stop()

		summary := reconstructSummary{
			NumViews:  recon.NumViews(),
			NumTracks: recon.NumTracks(),
			Pairs:     pairs,
		}

		if partition, _ := cmd.Flags().GetBool("partition"); partition {
			cut, err := ncut.ComputeCut(ncut.DefaultOptions(), cutEdges)
			if err != nil {
				slog.Warn("View graph partitioning failed", "error", err)
			} else {
				summary.Partition = &partitionResult{
					Subgraph1: sortedNodes(cut.Subgraph1),
					Subgraph2: sortedNodes(cut.Subgraph2),
					Cost:      cut.Cost,
				}
			}
		}

		var final string
		if format == outputFormatJSON {
			bts, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			final = string(bts)
		} else {
			final = formatReconstructText(summary)
		}

		return writeOutput(cmd, outputFile, final)
	},
}

// addViewOnce adds the named view unless it is already registered.
func addViewOnce(recon *scene.Reconstruction, name string) scene.ViewID {
	if id := recon.ViewIDFromName(name); id != scene.InvalidViewID {
		return id
	}
	return recon.AddView(name)
}

func sortedNodes(nodes map[string]struct{}) []string {
	out := make([]string, 0, len(nodes))
	for n := range nodes {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func formatReconstructText(s reconstructSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Scene graph: %d views, %d tracks, %d verified pairs\n",
		s.NumViews, s.NumTracks, len(s.Pairs))
	for _, p := range s.Pairs {
		fmt.Fprintf(&sb, "%s <-> %s: %d inliers, visibility %d, focals %.1f/%.1f\n",
			p.Image1, p.Image2, p.NumVerifiedMatches, p.VisibilityScore,
			p.FocalLength1, p.FocalLength2)
	}
	if s.Partition != nil {
		fmt.Fprintf(&sb, "Partition (cost %.4f): %v | %v\n",
			s.Partition.Cost, s.Partition.Subgraph1, s.Partition.Subgraph2)
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(reconstructCmd)

	addPipelineFlags(reconstructCmd)

	reconstructCmd.Flags().Bool("partition", false, "partition the view graph with a normalized cut")
	reconstructCmd.Flags().Float64("max-sampson-error", 0, "maximum sampson error in pixels (0=default)")
	reconstructCmd.Flags().Int64("seed", 0, "random seed for deterministic estimation (0=time-seeded)")
}

// GetReconstructCommand returns the reconstruct command for testing purposes.
func GetReconstructCommand() *cobra.Command {
	return reconstructCmd
}
