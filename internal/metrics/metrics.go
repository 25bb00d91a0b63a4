// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics aggregates conversion outcomes across many conversions.
//
// A Tracker is owned by the caller and outlives individual conversions. It is
// not safe for concurrent use: a single goroutine records at a time, or the
// caller wraps the tracker in Locked.
package metrics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pdiddy/docconvert/pkg/types"
)

// Timing holds the wall-clock bounds of the successful attempt for one file.
type Timing struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Duration returns End minus Start.
func (t Timing) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// SizeSample records input and output sizes for one file.
type SizeSample struct {
	Original  int64   `json:"original" yaml:"original"`
	Converted int64   `json:"converted" yaml:"converted"`
	Ratio     float64 `json:"ratio" yaml:"ratio"`
}

// Success is everything recorded about a conversion that passed validation.
type Success struct {
	// File is the key used for the timing and size samples (the source filename).
	File       string
	Start, End time.Time
	InputSize  int64
	OutputSize int64
}

// Recorder receives exactly one outcome per conversion call. The outcome is
// delivered before the call returns; a panic in RecordSuccess is logged and
// the call still reports success.
type Recorder interface {
	RecordSuccess(s Success, cfg types.MetricsConfig)
	RecordFailure(sourcePath, message string)
}

// Tracker is the mutable aggregate of conversion outcomes.
type Tracker struct {
	Successful int
	Failed     int

	// Errors maps a source path to its most recent failure message.
	Errors map[string]string

	Times map[string]Timing
	Sizes map[string]SizeSample

	logger *slog.Logger
}

// NewTracker returns an empty tracker that logs samples to logger. A nil
// logger uses slog.Default.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		Errors: make(map[string]string),
		Times:  make(map[string]Timing),
		Sizes:  make(map[string]SizeSample),
		logger: logger,
	}
}

// RecordSuccess counts one successful conversion and stores the samples
// enabled by cfg. A nil tracker ignores the call.
func (t *Tracker) RecordSuccess(s Success, cfg types.MetricsConfig) {
	if t == nil {
		return
	}
	t.init()

	if cfg.TrackConversionTime {
		t.Times[s.File] = Timing{Start: s.Start, End: s.End}
		t.logger.Info("conversion time",
			"file", s.File,
			"seconds", s.End.Sub(s.Start).Seconds())
	}

	if cfg.TrackFileSizes {
		sample := SizeSample{Original: s.InputSize, Converted: s.OutputSize}
		if s.InputSize > 0 {
			sample.Ratio = float64(s.OutputSize) / float64(s.InputSize)
		}
		t.Sizes[s.File] = sample
		t.logger.Info("file size change",
			"file", s.File,
			"original", humanize.Bytes(uint64(max(s.InputSize, 0))),
			"converted", humanize.Bytes(uint64(max(s.OutputSize, 0))))
	}

	t.Successful++
}

// RecordFailure counts one failed conversion and remembers its message,
// replacing any earlier message for the same source path.
func (t *Tracker) RecordFailure(sourcePath, message string) {
	if t == nil {
		return
	}
	t.init()
	t.Failed++
	t.Errors[sourcePath] = message
}

// Total returns the number of conversions recorded.
func (t *Tracker) Total() int {
	if t == nil {
		return 0
	}
	return t.Successful + t.Failed
}

// HasFailures reports whether any conversion failed.
func (t *Tracker) HasFailures() bool {
	return t != nil && t.Failed > 0
}

// init makes a zero-value Tracker usable.
func (t *Tracker) init() {
	if t.Errors == nil {
		t.Errors = make(map[string]string)
	}
	if t.Times == nil {
		t.Times = make(map[string]Timing)
	}
	if t.Sizes == nil {
		t.Sizes = make(map[string]SizeSample)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
}

// Locked serialises access to a Tracker shared between goroutines.
type Locked struct {
	mu sync.Mutex
	t  *Tracker
}

// NewLocked wraps t.
func NewLocked(t *Tracker) *Locked {
	return &Locked{t: t}
}

func (l *Locked) RecordSuccess(s Success, cfg types.MetricsConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.t.RecordSuccess(s, cfg)
}

func (l *Locked) RecordFailure(sourcePath, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.t.RecordFailure(sourcePath, message)
}

// Report returns a snapshot of the wrapped tracker.
func (l *Locked) Report() Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.t.Report()
}
