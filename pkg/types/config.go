// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig reports a configuration value outside its allowed range.
var ErrInvalidConfig = errors.New("invalid configuration")

// EngineBackend identifies the tool that performs a single conversion.
type EngineBackend string

const (
	// BackendPandoc runs a pandoc binary found on PATH (or PandocPath).
	BackendPandoc EngineBackend = "pandoc"
	// BackendContainer runs pandoc inside a docker or podman image.
	BackendContainer EngineBackend = "container"
	// BackendNative converts HTML to Markdown in-process without pandoc.
	BackendNative EngineBackend = "native"
)

// PandocOptions are translated into pandoc command line flags for every route.
type PandocOptions struct {
	// Wrap is the text wrapping mode: none, auto, or preserve.
	Wrap string `json:"wrap" yaml:"wrap" mapstructure:"wrap"`

	// Standalone produces a complete document with header and footer.
	Standalone bool `json:"standalone" yaml:"standalone" mapstructure:"standalone"`

	// MarkdownHeadings selects atx or setext heading style for Markdown output.
	MarkdownHeadings string `json:"markdown_headings" yaml:"markdown_headings" mapstructure:"markdown_headings"`

	// ReferenceLinks emits reference-style links in Markdown output.
	ReferenceLinks bool `json:"reference_links" yaml:"reference_links" mapstructure:"reference_links"`

	// ResourcePath lists extra directories pandoc searches for images.
	ResourcePath []string `json:"resource_path" yaml:"resource_path" mapstructure:"resource_path"`
}

// RetryConfig bounds how many attempts a single conversion may make.
type RetryConfig struct {
	// MaxConversionRetries is the total number of attempts allowed (default 3).
	MaxConversionRetries int `json:"max_conversion_retries" yaml:"max_conversion_retries" mapstructure:"max_conversion_retries"`

	// ConversionRetryDelay is the fixed pause between attempts (default 1s).
	ConversionRetryDelay time.Duration `json:"conversion_retry_delay" yaml:"conversion_retry_delay" mapstructure:"conversion_retry_delay"`
}

// ValidationConfig controls the checks applied to a produced artifact.
type ValidationConfig struct {
	// MinFileSize is the smallest acceptable output size in bytes (default 50).
	MinFileSize int64 `json:"min_file_size" yaml:"min_file_size" mapstructure:"min_file_size"`

	// ConversionRatioThreshold is the minimum output/input size ratio (default 0.1).
	ConversionRatioThreshold float64 `json:"conversion_ratio_threshold" yaml:"conversion_ratio_threshold" mapstructure:"conversion_ratio_threshold"`

	// VerifyStructure opens the output with a format-aware reader.
	VerifyStructure bool `json:"verify_structure" yaml:"verify_structure" mapstructure:"verify_structure"`

	// CheckLinks additionally fails outputs with broken internal references.
	CheckLinks bool `json:"check_links" yaml:"check_links" mapstructure:"check_links"`
}

// MetricsConfig selects which per-file samples a metrics tracker keeps.
type MetricsConfig struct {
	TrackConversionTime bool `json:"track_conversion_time" yaml:"track_conversion_time" mapstructure:"track_conversion_time"`
	TrackFileSizes      bool `json:"track_file_sizes" yaml:"track_file_sizes" mapstructure:"track_file_sizes"`
}

// ConversionConfig holds every setting the conversion stage reads. It is
// supplied by the caller and never modified during a conversion.
type ConversionConfig struct {
	Pandoc     PandocOptions    `json:"pandoc_options" yaml:"pandoc_options" mapstructure:"pandoc_options"`
	Validation ValidationConfig `json:"validation" yaml:"validation" mapstructure:"validation"`
	Retry      RetryConfig      `json:"retry_mechanism" yaml:"retry_mechanism" mapstructure:"retry_mechanism"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`

	// Per-route arguments appended after the pandoc options.
	HTMLToMarkdownArgs []string `json:"html_to_md_extra_args" yaml:"html_to_md_extra_args" mapstructure:"html_to_md_extra_args"`
	MarkdownToDocxArgs []string `json:"md_to_docx_extra_args" yaml:"md_to_docx_extra_args" mapstructure:"md_to_docx_extra_args"`
	MarkdownToHTMLArgs []string `json:"md_to_html_extra_args" yaml:"md_to_html_extra_args" mapstructure:"md_to_html_extra_args"`
	MarkdownToPDFArgs  []string `json:"md_to_pdf_extra_args" yaml:"md_to_pdf_extra_args" mapstructure:"md_to_pdf_extra_args"`

	// Backend selects the engine: pandoc, container, or native.
	Backend EngineBackend `json:"backend" yaml:"backend" mapstructure:"backend"`

	// PandocPath overrides the pandoc binary looked up on PATH.
	PandocPath string `json:"pandoc_path,omitempty" yaml:"pandoc_path,omitempty" mapstructure:"pandoc_path"`

	// PandocImage is the container image used by the container backend.
	PandocImage string `json:"pandoc_image" yaml:"pandoc_image" mapstructure:"pandoc_image"`

	// EngineTimeout bounds one engine invocation; zero means no limit.
	EngineTimeout time.Duration `json:"engine_timeout" yaml:"engine_timeout" mapstructure:"engine_timeout"`

	// InputEncoding names the text encoding of source files (default utf-8).
	InputEncoding string `json:"input_encoding" yaml:"input_encoding" mapstructure:"input_encoding"`

	// OutputDir is where batch conversions write their artifacts.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// StampProvenance asks the engine to record the source filename in the
	// output document's metadata.
	StampProvenance bool `json:"stamp_provenance" yaml:"stamp_provenance" mapstructure:"stamp_provenance"`

	// AddFrontmatter prepends a YAML block naming the source to Markdown output.
	AddFrontmatter bool `json:"add_frontmatter" yaml:"add_frontmatter" mapstructure:"add_frontmatter"`
}

// DefaultConversionConfig returns the settings used when no config file
// overrides them.
func DefaultConversionConfig() ConversionConfig {
	return ConversionConfig{
		Pandoc: PandocOptions{
			Wrap:             "none",
			Standalone:       true,
			MarkdownHeadings: "atx",
		},
		Validation: ValidationConfig{
			MinFileSize:              50,
			ConversionRatioThreshold: 0.1,
			VerifyStructure:          true,
		},
		Retry: RetryConfig{
			MaxConversionRetries: 3,
			ConversionRetryDelay: time.Second,
		},
		Metrics: MetricsConfig{
			TrackConversionTime: true,
			TrackFileSizes:      true,
		},
		HTMLToMarkdownArgs: []string{"--strip-comments", "--no-highlight"},
		Backend:            BackendPandoc,
		PandocImage:        "pandoc/core:latest",
		EngineTimeout:      2 * time.Minute,
		InputEncoding:      "utf-8",
		OutputDir:          "output",
		StampProvenance:    true,
		AddFrontmatter:     true,
	}
}

// Validate checks the retry and validation policies for out-of-range values.
func (c ConversionConfig) Validate() error {
	switch {
	case c.Retry.MaxConversionRetries < 1:
		return fmt.Errorf("%w: max_conversion_retries must be at least 1, got %d",
			ErrInvalidConfig, c.Retry.MaxConversionRetries)
	case c.Retry.ConversionRetryDelay < 0:
		return fmt.Errorf("%w: conversion_retry_delay must not be negative, got %s",
			ErrInvalidConfig, c.Retry.ConversionRetryDelay)
	case c.Validation.MinFileSize < 0:
		return fmt.Errorf("%w: min_file_size must not be negative, got %d",
			ErrInvalidConfig, c.Validation.MinFileSize)
	case c.Validation.ConversionRatioThreshold <= 0:
		return fmt.Errorf("%w: conversion_ratio_threshold must be positive, got %g",
			ErrInvalidConfig, c.Validation.ConversionRatioThreshold)
	case c.EngineTimeout < 0:
		return fmt.Errorf("%w: engine_timeout must not be negative, got %s",
			ErrInvalidConfig, c.EngineTimeout)
	}

	switch c.Backend {
	case BackendPandoc, BackendContainer, BackendNative:
	default:
		return fmt.Errorf("%w: unknown backend %q (want pandoc, container, or native)",
			ErrInvalidConfig, c.Backend)
	}
	return nil
}

// RouteArgs returns the configured extra arguments for a conversion route.
// Unknown routes have no extra arguments.
func (c ConversionConfig) RouteArgs(from, to Format) []string {
	switch {
	case from == FormatHTML && to == FormatMarkdown:
		return c.HTMLToMarkdownArgs
	case from == FormatMarkdown && to == FormatDocx:
		return c.MarkdownToDocxArgs
	case from == FormatMarkdown && to == FormatHTML:
		return c.MarkdownToHTMLArgs
	case from == FormatMarkdown && to == FormatPDF:
		return c.MarkdownToPDFArgs
	}
	return nil
}
