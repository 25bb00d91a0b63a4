// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pandoc runs conversions with the pandoc document converter, either
// as a local binary or inside a container image.
package pandoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pdiddy/docconvert/pkg/types"
)

const defaultBinary = "pandoc"

// ErrNotInstalled reports that no pandoc binary could be found.
var ErrNotInstalled = errors.New("pandoc is not installed")

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	// Output runs name and returns its standard output. On failure the
	// error includes the command's standard error.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

var defaultExec executor = osExecutor{}

// Binary converts with a pandoc executable on the local machine.
type Binary struct {
	path    string
	timeout time.Duration
	exec    executor
}

// NewBinary returns an engine running the pandoc binary at path, or the one
// on PATH when path is empty. A positive timeout bounds each conversion.
func NewBinary(path string, timeout time.Duration) *Binary {
	if path == "" {
		path = defaultBinary
	}
	return &Binary{path: path, timeout: timeout, exec: defaultExec}
}

// Name returns "pandoc".
func (b *Binary) Name() string { return defaultBinary }

// Convert runs pandoc once for job. The input path follows "--" so a name
// starting with a dash is not read as an option.
func (b *Binary) Convert(ctx context.Context, job types.ConversionJob) error {
	ctx, cancel := withTimeout(ctx, b.timeout)
	defer cancel()

	args := make([]string, 0, len(job.Args)+5)
	args = append(args, "--from="+string(job.From), "--to="+string(job.To), "--output="+job.OutputPath)
	args = append(args, job.Args...)
	args = append(args, "--", job.InputPath)

	if _, err := b.exec.Output(ctx, b.path, args...); err != nil {
		return runError(ctx, b.timeout, err)
	}
	return nil
}

// Version returns the installed pandoc version, e.g. "3.1.11".
func (b *Binary) Version(ctx context.Context) (string, error) {
	if _, err := b.exec.LookPath(b.path); err != nil {
		return "", fmt.Errorf("%w (%v)", ErrNotInstalled, err)
	}
	out, err := b.exec.Output(ctx, b.path, "--version")
	if err != nil {
		return "", fmt.Errorf("checking pandoc version: %w", err)
	}
	return parseVersion(out)
}

// parseVersion extracts the version from the first line of pandoc --version,
// which reads "pandoc 3.1.11" (or "pandoc.exe 3.1.11" on Windows).
func parseVersion(out []byte) (string, error) {
	line, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "pandoc") {
		return "", fmt.Errorf("unrecognised pandoc version output: %q", line)
	}
	return fields[1], nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// runError reports deadline expiry in place of the killed process's error.
func runError(ctx context.Context, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", timeout, ctx.Err())
	}
	return err
}
