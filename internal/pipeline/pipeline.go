// Package pipeline orchestrates concurrent feature extraction across
// images and hands the results to a matcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/parallax-vision/parallax/internal/camera"
	"github.com/parallax-vision/parallax/internal/exif"
	"github.com/parallax-vision/parallax/internal/feature"
	"github.com/parallax-vision/parallax/internal/matcher"
	"github.com/parallax-vision/parallax/internal/utils"
)

const maskThreshold = 0.5

// Options configures the extraction and matching pipeline.
type Options struct {
	// NumWorkers bounds the extraction worker pool; the effective pool
	// size is the smaller of this and the number of registered images.
	NumWorkers int
	// MaxNumFeatures caps the keypoints kept per image. Keypoints are
	// ranked by response, so the cap keeps the strongest ones.
	MaxNumFeatures int
	// OnlyCalibratedViews skips images for which no focal length could
	// be recovered from priors or EXIF.
	OnlyCalibratedViews bool
	// FeatureCacheDir enables the out-of-core feature cache: extracted
	// features are stored as <name>.features files and extraction is
	// skipped for images already cached.
	FeatureCacheDir string

	Extractor feature.Config
	Progress  ProgressCallback
	Logger    *slog.Logger
}

// DefaultOptions returns pipeline settings suitable for typical photo
// collections.
func DefaultOptions() Options {
	return Options{
		NumWorkers:     runtime.NumCPU(),
		MaxNumFeatures: 4000,
		Extractor:      feature.DefaultConfig(),
	}
}

// Pipeline extracts features for registered images concurrently, fills
// in calibration priors from EXIF data, then runs the matcher over all
// candidate pairs. Registration methods are not safe for concurrent use;
// ExtractAndMatchFeatures may only be called once registration is done.
type Pipeline struct {
	opts    Options
	matcher matcher.Matcher
	exif    *exif.Reader
	logger  *slog.Logger
	cache   *FeatureCache

	imagePaths []string
	priors     map[string]camera.IntrinsicsPrior
	masks      map[string]string

	// priorsMu guards priors, which workers update after EXIF parsing.
	// matcherMu serializes matcher registration calls.
	priorsMu  sync.Mutex
	matcherMu sync.Mutex
}

// New creates a pipeline feeding the given matcher.
func New(opts Options, m matcher.Matcher) (*Pipeline, error) {
	if m == nil {
		return nil, errors.New("pipeline: matcher must not be nil")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = runtime.NumCPU()
	}
	if opts.MaxNumFeatures <= 0 {
		opts.MaxNumFeatures = DefaultOptions().MaxNumFeatures
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	p := &Pipeline{
		opts:    opts,
		matcher: m,
		exif:    exif.NewReader(),
		logger:  opts.Logger,
		priors:  make(map[string]camera.IntrinsicsPrior),
		masks:   make(map[string]string),
	}
	if opts.FeatureCacheDir != "" {
		cache, err := NewFeatureCache(opts.FeatureCacheDir)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}
	return p, nil
}

// FeatureCache returns the out-of-core cache, or nil when caching is
// disabled. The matcher uses it to load features on demand.
func (p *Pipeline) FeatureCache() *FeatureCache { return p.cache }

// AddImage registers an image file for processing.
func (p *Pipeline) AddImage(path string) {
	p.imagePaths = append(p.imagePaths, path)
}

// AddImageWithPrior registers an image with a known calibration prior.
func (p *Pipeline) AddImageWithPrior(path string, prior camera.IntrinsicsPrior) {
	p.AddImage(path)
	p.priors[path] = prior
}

// AddMask associates a mask image with an image file. Keypoints falling
// on dark mask pixels are discarded.
func (p *Pipeline) AddMask(imagePath, maskPath string) {
	p.masks[imagePath] = maskPath
	p.logger.Debug("Registered extraction mask", "image", imagePath, "mask", maskPath)
}

// SetPairsToMatch restricts matching to the given image path pairs.
func (p *Pipeline) SetPairsToMatch(pairs [][2]string) {
	named := make([][2]string, len(pairs))
	for i, pair := range pairs {
		named[i] = [2]string{utils.BaseName(pair[0]), utils.BaseName(pair[1])}
	}
	p.matcher.SetImagePairsToMatch(named)
}

// ExtractAndMatchFeatures runs feature extraction over all registered
// images with a bounded worker pool, then matches the candidate pairs.
// Extraction failures are isolated per image: the image is logged and
// skipped, never aborting the batch. The returned priors are index
// aligned with the registration order.
func (p *Pipeline) ExtractAndMatchFeatures(ctx context.Context) ([]camera.IntrinsicsPrior, []matcher.ImagePairMatch, error) {
	if len(p.imagePaths) == 0 {
		return nil, nil, errors.New("pipeline: no images registered")
	}

	if p.opts.Progress != nil {
		p.opts.Progress.OnStart(len(p.imagePaths))
		defer p.opts.Progress.OnComplete()
	}

	numWorkers := p.opts.NumWorkers
	if len(p.imagePaths) < numWorkers {
		numWorkers = len(p.imagePaths)
	}

	jobs := make(chan int, len(p.imagePaths))
	done := make(chan int, len(p.imagePaths))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go p.worker(ctx, jobs, done, &wg)
	}

	go func() {
		defer close(jobs)
		for i, path := range p.imagePaths {
			if !utils.FileExists(path) {
				p.logger.Error("Image file not found, skipping", "path", path)
				imagesSkipped.WithLabelValues("missing_file").Inc()
				continue
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	processed := 0
	for range done {
		processed++
		if p.opts.Progress != nil {
			p.opts.Progress.OnProgress(processed, len(p.imagePaths))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p.logger.Info("Feature extraction complete, matching images", "images", processed)
	matches := p.matcher.MatchImages()
	matchedPairs.Add(float64(len(matches)))

	priors := make([]camera.IntrinsicsPrior, len(p.imagePaths))
	p.priorsMu.Lock()
	for i, path := range p.imagePaths {
		priors[i] = p.priors[path]
	}
	p.priorsMu.Unlock()
	return priors, matches, nil
}

// worker drains the job channel, processing one image per job with a
// worker-local extractor. Extractor state is not shared across workers.
func (p *Pipeline) worker(ctx context.Context, jobs <-chan int, done chan<- int, wg *sync.WaitGroup) {
	defer wg.Done()

	extractor, err := feature.NewORBExtractor(p.opts.Extractor)
	if err != nil {
		p.logger.Error("Failed to create extractor", "error", err)
		return
	}

	for {
		select {
		case i, ok := <-jobs:
			if !ok {
				return
			}
			p.processImage(i, extractor)
			select {
			case done <- i:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) processImage(i int, extractor feature.Extractor) {
	path := p.imagePaths[i]

	// A panic while decoding or extracting loses one image, not the batch.
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic while processing image, skipping", "path", path, "panic", r)
			imagesSkipped.WithLabelValues("extraction_failed").Inc()
		}
	}()

	p.priorsMu.Lock()
	prior := p.priors[path]
	p.priorsMu.Unlock()

	if !prior.FocalLength.IsSet {
		if err := p.exif.ExtractMetadata(path, &prior); err != nil {
			p.logger.Warn("EXIF extraction failed", "path", path, "error", err)
		}
	}
	if prior.ImageWidth == 0 || prior.ImageHeight == 0 {
		if w, h, err := decodeDimensions(path); err == nil {
			prior.ImageWidth = w
			prior.ImageHeight = h
		}
	}
	if !prior.FocalLength.IsSet && !p.opts.OnlyCalibratedViews {
		prior.FocalLength.Value = camera.MedianViewingAngleFocalLength(prior.ImageWidth, prior.ImageHeight)
		prior.FocalLength.IsSet = true
		p.logger.Debug("No EXIF focal length, using median viewing angle guess",
			"path", path, "focal_length_px", prior.FocalLength.Value)
	}
	prior.Normalize()
	p.priorsMu.Lock()
	p.priors[path] = prior
	p.priorsMu.Unlock()

	if p.opts.OnlyCalibratedViews && !prior.FocalLength.IsSet {
		p.logger.Info("Image has no focal length and calibrated-only mode is set, skipping", "path", path)
		imagesSkipped.WithLabelValues("uncalibrated").Inc()
		return
	}
	p.logger.Debug("Processing image", "path", path, "focal_length_px", prior.FocalLength.Value)

	name := utils.BaseName(path)

	// Cached features short-circuit extraction; the matcher loads them
	// on demand through the cache.
	if p.cache != nil && p.cache.Has(name) {
		p.matcherMu.Lock()
		p.matcher.AddImageWithoutFeatures(name, prior)
		p.matcherMu.Unlock()
		imagesProcessed.WithLabelValues("cached").Inc()
		return
	}

	keypoints, descriptors, err := p.extractFeatures(path, extractor)
	if err != nil {
		p.logger.Error("Feature extraction failed, skipping image", "path", path, "error", err)
		imagesSkipped.WithLabelValues("extraction_failed").Inc()
		return
	}
	featuresExtracted.Add(float64(len(keypoints)))

	if p.cache != nil {
		if err := p.cache.Store(name, keypoints, descriptors); err != nil {
			p.logger.Warn("Failed to write feature cache", "name", name, "error", err)
		}
	}

	p.matcherMu.Lock()
	p.matcher.AddImage(name, keypoints, descriptors, prior)
	p.matcherMu.Unlock()
	imagesProcessed.WithLabelValues("extracted").Inc()
}

func (p *Pipeline) extractFeatures(path string, extractor feature.Extractor) ([]feature.Keypoint, []feature.Descriptor, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, nil, err
	}

	keypoints, descriptors, err := extractor.DetectAndExtract(img)
	if err != nil {
		return nil, nil, fmt.Errorf("extracting descriptors: %w", err)
	}

	if maskPath, ok := p.masks[path]; ok {
		keypoints, descriptors, err = p.applyMask(img, maskPath, keypoints, descriptors)
		if err != nil {
			return nil, nil, err
		}
		p.logger.Debug("Extracted features with mask", "path", path, "features", len(keypoints))
	} else {
		p.logger.Debug("Extracted features", "path", path, "features", len(keypoints))
	}

	if len(keypoints) > p.opts.MaxNumFeatures {
		keypoints = keypoints[:p.opts.MaxNumFeatures]
		descriptors = descriptors[:p.opts.MaxNumFeatures]
	}
	return keypoints, descriptors, nil
}

// applyMask drops keypoints whose mask value, sampled bilinearly, falls
// below the mask threshold. The mask must have the image's dimensions.
func (p *Pipeline) applyMask(img image.Image, maskPath string, keypoints []feature.Keypoint, descriptors []feature.Descriptor) ([]feature.Keypoint, []feature.Descriptor, error) {
	mask, _, err := utils.LoadImage(maskPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading mask: %w", err)
	}
	if !mask.Bounds().Size().Eq(img.Bounds().Size()) {
		return nil, nil, fmt.Errorf("mask size %v does not match image size %v",
			mask.Bounds().Size(), img.Bounds().Size())
	}

	gray := utils.ToGray(mask)
	keptKeypoints := keypoints[:0]
	keptDescriptors := descriptors[:0]
	for i, kp := range keypoints {
		if utils.BilinearGray(gray, kp.X, kp.Y) >= maskThreshold {
			keptKeypoints = append(keptKeypoints, kp)
			keptDescriptors = append(keptDescriptors, descriptors[i])
		}
	}
	return keptKeypoints, keptDescriptors, nil
}

// decodeDimensions reads only the image header to recover its size.
func decodeDimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
