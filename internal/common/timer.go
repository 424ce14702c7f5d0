// Package common provides shared utilities including stage timing.
package common

import (
	"log/slog"
	"time"
)

// Timer measures how long a pipeline stage takes and reports the elapsed
// time through structured logging when stopped.
type Timer struct {
	logger  *slog.Logger
	name    string
	start   time.Time
	elapsed time.Duration
	stopped bool
}

// StartTimer begins timing a named stage. A nil logger falls back to the
// default slog logger.
func StartTimer(logger *slog.Logger, name string) *Timer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timer{logger: logger, name: name, start: time.Now()}
}

// Stop ends the timing, logs the elapsed time and returns it. Calls after
// the first return the duration recorded by the first.
func (t *Timer) Stop() time.Duration {
	if !t.stopped {
		t.stopped = true
		t.elapsed = time.Since(t.start)
		t.logger.Info("Stage finished", "stage", t.name, "duration", t.elapsed)
	}
	return t.elapsed
}

// Duration returns the recorded duration, or the time elapsed so far when
// the timer is still running.
func (t *Timer) Duration() time.Duration {
	if t.stopped {
		return t.elapsed
	}
	return time.Since(t.start)
}

// Name returns the stage name.
func (t *Timer) Name() string { return t.name }
