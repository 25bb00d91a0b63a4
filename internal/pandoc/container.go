// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pandoc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pdiddy/docconvert/internal/container"
	"github.com/pdiddy/docconvert/pkg/types"
)

// Container converts with pandoc inside a container image. The source is
// piped to the container's stdin and the artifact is read from its stdout,
// so no host directories are mounted.
type Container struct {
	rt      container.Runtime
	image   string
	timeout time.Duration
}

// NewContainer returns an engine running image with rt.
func NewContainer(rt container.Runtime, image string, timeout time.Duration) *Container {
	return &Container{rt: rt, image: image, timeout: timeout}
}

// Name returns "pandoc".
func (c *Container) Name() string { return defaultBinary }

// Runtime returns the container runtime the engine uses.
func (c *Container) Runtime() container.Runtime { return c.rt }

// Convert runs the container once for job. A partial output is removed when
// the run fails.
func (c *Container) Convert(ctx context.Context, job types.ConversionJob) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	in, err := os.Open(job.InputPath)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(job.OutputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	args := make([]string, 0, len(job.Args)+3)
	args = append(args, "--from="+string(job.From), "--to="+string(job.To), "--output=-")
	args = append(args, job.Args...)

	runErr := c.rt.Run(ctx, c.image, args, in, out)
	closeErr := out.Close()
	if runErr != nil {
		os.Remove(job.OutputPath)
		return runError(ctx, c.timeout, runErr)
	}
	if closeErr != nil {
		os.Remove(job.OutputPath)
		return fmt.Errorf("writing output: %w", closeErr)
	}
	return nil
}

// detectRuntime is replaced in tests.
var detectRuntime = container.DetectRuntime

// Engine is a pandoc-backed conversion engine.
type Engine interface {
	Name() string
	Convert(ctx context.Context, job types.ConversionJob) error
}

// Detect returns the pandoc engine selected by cfg.Backend. The pandoc
// backend falls back to the container image when no binary is installed.
// The version string describes the selected engine.
func Detect(ctx context.Context, cfg types.ConversionConfig, logger *slog.Logger) (Engine, string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case types.BackendContainer:
		eng, desc, err := detectContainer(cfg)
		if err != nil {
			return nil, "", err
		}
		return eng, desc, nil

	case types.BackendPandoc, "":
		bin := NewBinary(cfg.PandocPath, cfg.EngineTimeout)
		version, err := bin.Version(ctx)
		if err == nil {
			logger.Info("found pandoc", "version", version, "path", bin.path)
			return bin, "pandoc " + version, nil
		}
		if !errors.Is(err, ErrNotInstalled) {
			return nil, "", err
		}

		eng, desc, cerr := detectContainer(cfg)
		if cerr != nil {
			return nil, "", fmt.Errorf("%w; container fallback: %v", err, cerr)
		}
		logger.Warn("pandoc binary not found, using container image",
			"image", cfg.PandocImage, "runtime", eng.rt.Name())
		return eng, desc, nil
	}
	return nil, "", fmt.Errorf("backend %q does not use pandoc", cfg.Backend)
}

func detectContainer(cfg types.ConversionConfig) (*Container, string, error) {
	rt, err := detectRuntime()
	if err != nil {
		return nil, "", err
	}
	if err := rt.ImageExists(cfg.PandocImage); err != nil {
		return nil, "", fmt.Errorf("%w (pull it with: %s pull %s)", err, rt.Name(), cfg.PandocImage)
	}
	return NewContainer(rt, cfg.PandocImage, cfg.EngineTimeout),
		fmt.Sprintf("%s image %s", rt.Name(), cfg.PandocImage), nil
}
