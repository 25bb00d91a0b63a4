// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert runs one document conversion to completion: it validates
// the source, invokes an Engine, validates the produced artifact, and retries
// failed attempts up to the configured budget. Every call records exactly one
// outcome with the caller's metrics recorder.
package convert

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/docconvert/internal/metrics"
	"github.com/pdiddy/docconvert/internal/pandoc"
	"github.com/pdiddy/docconvert/internal/validate"
	"github.com/pdiddy/docconvert/pkg/types"
)

// Engine performs a single conversion attempt. Implementations write the
// artifact to job.OutputPath and return an error on any failure. They never
// retry.
type Engine interface {
	Name() string
	Convert(ctx context.Context, job types.ConversionJob) error
}

// ArgsFunc builds the engine arguments for a route.
type ArgsFunc func(cfg types.ConversionConfig, from, to types.Format, source string) []string

// Orchestrator converts documents with a fixed configuration and engine.
// It holds no per-call state and may be reused.
type Orchestrator struct {
	cfg       types.ConversionConfig
	engine    Engine
	validator *validate.Validator
	logger    *slog.Logger
	args      ArgsFunc
	sleep     func(time.Duration)
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. A nil logger uses slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithValidator replaces the output validator built from the config.
func WithValidator(v *validate.Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// WithArgs replaces pandoc.BuildArgs as the source of engine arguments.
func WithArgs(fn ArgsFunc) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.args = fn
		}
	}
}

// WithSleep replaces time.Sleep for the pause between attempts.
func WithSleep(fn func(time.Duration)) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.sleep = fn
		}
	}
}

// WithClock replaces time.Now for attempt timing.
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.now = fn
		}
	}
}

// New returns an Orchestrator for cfg and engine. The config should already
// have passed Validate; a retry budget below one is treated as one.
func New(cfg types.ConversionConfig, engine Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		engine: engine,
		logger: slog.Default(),
		args:   pandoc.BuildArgs,
		sleep:  time.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.validator == nil {
		o.validator = validate.New(cfg.Validation, validate.WithLogger(o.logger))
	}
	return o
}

// Config returns the configuration the orchestrator was built with.
func (o *Orchestrator) Config() types.ConversionConfig {
	return o.cfg
}

// Convert converts src to dst, inferring both formats from the file
// extensions. rec may be nil.
func (o *Orchestrator) Convert(ctx context.Context, src, dst string, rec metrics.Recorder) Outcome {
	return o.Run(ctx, types.ConversionJob{InputPath: src, OutputPath: dst}, rec)
}

// Run converts job.InputPath to job.OutputPath. Empty job formats are
// inferred from the file extensions; job.Args are appended to the
// configured engine arguments. Run never panics: a panic raised by the
// engine or a validator fails that attempt and is retried like any other
// failure; a panic while recording a failure ends the call.
func (o *Orchestrator) Run(ctx context.Context, job types.ConversionJob, rec metrics.Recorder) (out Outcome) {
	c := &call{o: o, job: job, rec: rec}

	defer func() {
		if r := recover(); r != nil {
			err := &UnexpectedError{Value: r}
			o.logger.Error("conversion aborted", "source", job.InputPath, "error", err)
			out = c.fail(err)
		}
	}()

	if err := resolveFormats(&c.job); err != nil {
		o.logger.Error("input validation failed", "source", job.InputPath, "error", err)
		return c.fail(err)
	}
	return c.run(ctx)
}

func resolveFormats(job *types.ConversionJob) error {
	if job.From == "" {
		from, err := types.FormatFromPath(job.InputPath)
		if err != nil {
			return &InputError{Kind: UnreadableInput, Path: job.InputPath, Cause: err}
		}
		job.From = from
	}
	if job.To == "" {
		to, err := types.FormatFromPath(job.OutputPath)
		if err != nil {
			return &InputError{Kind: UnreadableInput, Path: job.InputPath, Format: string(job.From), Cause: err}
		}
		job.To = to
	}
	return nil
}

// call is the state of one Run.
type call struct {
	o        *Orchestrator
	job      types.ConversionJob
	rec      metrics.Recorder
	recorded bool
}

func (c *call) run(ctx context.Context) Outcome {
	o := c.o

	inputSize, err := o.validateSource(c.job)
	if err != nil {
		o.logger.Error("input validation failed", "source", c.job.InputPath, "error", err)
		return c.fail(err)
	}

	maxAttempts := max(o.cfg.Retry.MaxConversionRetries, 1)
	for attempt := 1; ; attempt++ {
		res, err := c.try(ctx, inputSize)
		if err == nil {
			c.succeed(res, inputSize)
			return successOutcome(c.job.OutputPath, types.ConversionDetails{
				SourceFormat:   c.job.From,
				TargetFormat:   c.job.To,
				ConversionTime: res.end.Sub(res.start),
				OutputSize:     res.outputSize,
				InputSize:      inputSize,
			})
		}

		o.logger.Warn("conversion attempt failed",
			"source", c.job.InputPath,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err)

		if attempt >= maxAttempts || !Retryable(err) {
			return c.fail(err)
		}
		o.sleep(o.cfg.Retry.ConversionRetryDelay)
	}
}

// attemptResult is the timing and output size of a passing attempt.
type attemptResult struct {
	start, end time.Time
	outputSize int64
}

// try runs one attempt and checks its output. A panic in the engine or a
// validator fails the attempt with an UnexpectedError.
func (c *call) try(ctx context.Context, inputSize int64) (res attemptResult, err error) {
	o := c.o
	defer func() {
		if r := recover(); r != nil {
			err = &UnexpectedError{Value: r}
		}
	}()

	res.start = o.now()
	err = o.attempt(ctx, c.job)
	res.end = o.now()
	if err != nil {
		return res, err
	}
	if err = o.validateOutput(c.job, inputSize); err != nil {
		return res, err
	}
	res.outputSize, err = outputFileSize(c.job.OutputPath)
	return res, err
}

// succeed records the success once. A panicking recorder is logged and
// does not turn the conversion into a failure.
func (c *call) succeed(res attemptResult, inputSize int64) {
	c.recorded = true
	if c.rec == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.o.logger.Error("recording conversion success failed",
				"source", c.job.InputPath, "error", &UnexpectedError{Value: r})
		}
	}()
	c.rec.RecordSuccess(metrics.Success{
		File:       filepath.Base(c.job.InputPath),
		Start:      res.start,
		End:        res.end,
		InputSize:  inputSize,
		OutputSize: res.outputSize,
	}, c.o.cfg.Metrics)
}

// fail records err once and returns the failure outcome. A panic inside the
// recorder after the first record does not record a second time.
func (c *call) fail(err error) Outcome {
	if !c.recorded {
		c.recorded = true
		if c.rec != nil {
			c.rec.RecordFailure(c.job.InputPath, err.Error())
		}
	}
	return failureOutcome(err, c.job)
}

// validateSource checks the source file and returns its size. HTML sources
// are also parsed when structure verification is enabled.
func (o *Orchestrator) validateSource(job types.ConversionJob) (int64, error) {
	size, text, err := readInput(job.InputPath, o.cfg.InputEncoding)
	if err != nil {
		return size, err
	}

	policy := o.validator.Policy()
	if job.From == types.FormatHTML && policy.VerifyStructure {
		if problems := validate.CheckHTMLInput([]byte(text), policy.CheckLinks); len(problems) > 0 {
			return size, &InputError{
				Kind:     UnreadableInput,
				Path:     job.InputPath,
				Format:   string(job.From),
				Problems: problems,
			}
		}
	}
	return size, nil
}

func (o *Orchestrator) validateOutput(job types.ConversionJob, inputSize int64) error {
	problems := o.validator.Output(job.OutputPath, job.InputPath, inputSize, job.To)
	if len(problems) == 0 {
		return nil
	}
	err := &ValidationError{Output: job.OutputPath, Problems: problems}
	o.logger.Error("conversion validation failed", "output", job.OutputPath, "problems", err.Error())
	return err
}

func outputFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &UnexpectedError{Value: err}
	}
	return max(info.Size(), 0), nil
}
