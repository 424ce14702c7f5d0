package pipeline

import (
	"io"
	"log/slog"
	"testing"

	"github.com/parallax-vision/parallax/internal/feature"
	"github.com/parallax-vision/parallax/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}

func extractFromTestImage(t *testing.T) ([]feature.Keypoint, []feature.Descriptor, error) {
	t.Helper()
	extractor, err := feature.NewORBExtractor(feature.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}
	return extractor.DetectAndExtract(testutil.NoisyCheckerboardImage(200, 160, 20, 7))
}
