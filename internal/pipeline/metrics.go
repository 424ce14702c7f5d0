package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parallax_images_processed_total",
			Help: "Total number of images processed by the extraction pipeline",
		},
		[]string{"source"}, // source: extracted, cached
	)

	imagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parallax_images_skipped_total",
			Help: "Total number of images skipped by the extraction pipeline",
		},
		[]string{"reason"}, // reason: missing_file, uncalibrated, extraction_failed
	)

	featuresExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parallax_features_extracted_total",
			Help: "Total number of keypoints extracted across all images",
		},
	)

	matchedPairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parallax_matched_pairs_total",
			Help: "Total number of image pairs with verified matches",
		},
	)
)
