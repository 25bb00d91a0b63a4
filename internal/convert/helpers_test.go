// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docconvert/internal/metrics"
	"github.com/pdiddy/docconvert/pkg/types"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeEngine implements Engine. Attempt i (1-based) returns errs[i-1] when
// set, otherwise writes outputs[i-1] (the last output repeats).
type fakeEngine struct {
	outputs []string
	errs    []error
	// panics is the number of leading calls that panic.
	panics int

	calls int
	jobs  []types.ConversionJob
	ctxs  []context.Context
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Convert(ctx context.Context, job types.ConversionJob) error {
	f.calls++
	f.jobs = append(f.jobs, job)
	f.ctxs = append(f.ctxs, ctx)
	if f.calls <= f.panics {
		panic("engine exploded")
	}
	if i := f.calls - 1; i < len(f.errs) && f.errs[i] != nil {
		return f.errs[i]
	}
	var content string
	if len(f.outputs) > 0 {
		content = f.outputs[min(f.calls-1, len(f.outputs)-1)]
	}
	return os.WriteFile(job.OutputPath, []byte(content), 0o644)
}

// testConfig returns a policy where size and ratio are the only output checks.
func testConfig() types.ConversionConfig {
	cfg := types.DefaultConversionConfig()
	cfg.Validation = types.ValidationConfig{
		MinFileSize:              100,
		ConversionRatioThreshold: 0.5,
	}
	cfg.Retry = types.RetryConfig{MaxConversionRetries: 3, ConversionRetryDelay: time.Second}
	cfg.AddFrontmatter = false
	return cfg
}

// sleepRecorder captures requested sleeps instead of sleeping.
type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) { s.delays = append(s.delays, d) }

// stepClock advances by step on every call.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newOrchestrator(cfg types.ConversionConfig, eng Engine, opts ...Option) (*Orchestrator, *sleepRecorder) {
	sr := &sleepRecorder{}
	all := append([]Option{WithLogger(quiet), WithSleep(sr.sleep)}, opts...)
	return New(cfg, eng, all...), sr
}

func writeSource(t *testing.T, dir, name string, size int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("a", size-1)+"\n"), 0o644))
	return p
}

func newTracker() *metrics.Tracker {
	return metrics.NewTracker(quiet)
}

// countingRecorder counts calls and can panic on success.
type countingRecorder struct {
	successes, failures int
	panicOnSuccess      bool
}

func (r *countingRecorder) RecordSuccess(metrics.Success, types.MetricsConfig) {
	r.successes++
	if r.panicOnSuccess {
		panic("recorder broke")
	}
}

func (r *countingRecorder) RecordFailure(string, string) {
	r.failures++
}
