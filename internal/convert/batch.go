// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/docconvert/internal/metrics"
	"github.com/pdiddy/docconvert/pkg/types"
)

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// BatchOptions controls where a batch writes its outputs.
type BatchOptions struct {
	// OutputDir receives one output per input, named after the input's stem.
	OutputDir string
	To        types.Format
	// Force reconverts inputs whose output already exists.
	Force bool
}

// OutputPath returns the output path Batch uses for input.
func (b BatchOptions) OutputPath(input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(b.OutputDir, base+b.To.Extension())
}

// Batch converts inputs one after another, printing per-file status to w and
// returning a summary. Skipped files are not recorded with rec.
func Batch(ctx context.Context, o *Orchestrator, inputs []string, opts BatchOptions, rec metrics.Recorder, w io.Writer) BatchResult {
	var result BatchResult
	for _, in := range inputs {
		out := opts.OutputPath(in)
		name := filepath.Base(in)

		if !opts.Force {
			if _, err := os.Stat(out); err == nil {
				fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
				result.Skipped++
				continue
			}
		}

		outcome := o.Convert(ctx, in, out, rec)
		if !outcome.Succeeded() {
			fmt.Fprintf(w, "failed:  %s (%s)\n", name, outcome.Error)
			result.Failed++
			continue
		}
		fmt.Fprintf(w, "converted: %s -> %s (%.2fs)\n",
			name, outcome.OutputPath, outcome.Details.ConversionTime.Seconds())
		result.Converted++
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

// Discover returns the files under dir whose extension maps to from, sorted
// by path. Subdirectories are searched when recursive is set.
func Discover(dir string, from types.Format, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input directory does not exist or is not a directory: %s", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if f, err := types.FormatFromPath(path); err == nil && f == from {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no matching files found in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}
