package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress updates while the pipeline works
// through its image set.
type ProgressCallback interface {
	// OnStart is called once before extraction begins.
	OnStart(total int)

	// OnProgress is called after each image finishes.
	OnProgress(current, total int)

	// OnComplete is called when extraction and matching are done.
	OnComplete()
}

// NoOpProgressCallback discards all progress updates.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(total int)             {}
func (NoOpProgressCallback) OnProgress(current, total int) {}
func (NoOpProgressCallback) OnComplete()                   {}

// ConsoleProgressCallback renders a progress bar to a terminal.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	lastUpdate     time.Time
	updateInterval time.Duration
	startTime      time.Time
	mu             sync.Mutex
}

// NewConsoleProgressCallback creates a console progress reporter. A nil
// writer defaults to stderr.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d images\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now

	if total == 0 {
		return
	}
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	percent := float64(current) / float64(total) * 100
	_, _ = fmt.Fprintf(c.writer, "\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, percent)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.startTime)
	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, elapsed.Round(time.Millisecond))
}

// LogProgressCallback reports progress through structured logging, every
// interval images.
type LogProgressCallback struct {
	logger    *slog.Logger
	interval  int
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback creates a log-based progress reporter. A nil
// logger defaults to slog.Default().
func NewLogProgressCallback(logger *slog.Logger, interval int) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10
	}
	return &LogProgressCallback{logger: logger, interval: interval}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Info("Starting feature extraction", "total_images", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	elapsed := time.Since(l.startTime)
	l.logger.Info("Extraction progress",
		"current", current,
		"total", total,
		"elapsed", elapsed.Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Info("Extraction and matching complete",
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}
